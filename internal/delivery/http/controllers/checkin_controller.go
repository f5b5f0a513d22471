package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"orbit/internal/delivery/http/helpers"
	"orbit/internal/delivery/http/middleware"
	"orbit/internal/domain"
)

type CheckInController struct {
	Logger  *slog.Logger
	Service domain.CheckInService
	Feed    domain.RosterFeed
}

func NewCheckInController(logger *slog.Logger, svc domain.CheckInService, feed domain.RosterFeed) *CheckInController {
	return &CheckInController{
		Logger:  logger,
		Service: svc,
		Feed:    feed,
	}
}

// CheckInSuccessResponse is the success response envelope for POST /events/{eventID}/checkins.
type CheckInSuccessResponse struct {
	Data  *domain.CheckInResult `json:"data"`
	Error *helpers.APIError     `json:"error"`
}

// CheckIn godoc
// @Summary Check in to an event
// @Description Adds the authenticated user to the event's roster. Returns 201 with created=true for a new check-in, 200 with created=false when already checked in. count_updated and history_updated report the best-effort secondary writes; the check-in itself succeeded whenever this endpoint returns 2xx.
// @Tags checkins
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.CheckInSuccessResponse "Already checked in"
// @Success 201 {object} controllers.CheckInSuccessResponse "Checked in"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/checkins [post]
func (c *CheckInController) CheckIn(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	result, err := c.Service.CheckIn(r.Context(), eventID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUserNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	if result.Created {
		helpers.WriteJSONSuccess(w, http.StatusCreated, &result)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, &result)
}

// CheckOutSuccessResponse is the success response envelope for DELETE /events/{eventID}/checkins.
type CheckOutSuccessResponse struct {
	Data  *domain.CheckOutResult `json:"data"`
	Error *helpers.APIError      `json:"error"`
}

// CheckOut godoc
// @Summary Check out of an event
// @Description Removes the authenticated user from the event's roster. removed=false means the user was not checked in; that is not an error. The attended-event history is not affected.
// @Tags checkins
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.CheckOutSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/checkins [delete]
func (c *CheckInController) CheckOut(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	result, err := c.Service.CheckOut(r.Context(), eventID, userID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, &result)
}

// RosterSuccessResponse is the success response envelope for GET /events/{eventID}/checkins.
type RosterSuccessResponse struct {
	Data  []*domain.CheckInRecord `json:"data"`
	Error *helpers.APIError       `json:"error"`
}

// ListRoster godoc
// @Summary Get the event roster
// @Description Returns the full current roster, in check-in order. The length of this list is the ground truth for "how many people are here now"; prefer it over the event's cached count when exactness matters.
// @Tags checkins
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.RosterSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/checkins [get]
func (c *CheckInController) ListRoster(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	roster, err := c.Service.ListRoster(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, roster)
}

// MyCheckInPayload is the data object for GET /events/{eventID}/checkins/me.
type MyCheckInPayload struct {
	CheckedIn bool `json:"checked_in"`
}

// MyCheckInSuccessResponse is the success response envelope for GET /events/{eventID}/checkins/me.
type MyCheckInSuccessResponse struct {
	Data  *MyCheckInPayload `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// MyCheckIn godoc
// @Summary Am I checked in
// @Tags checkins
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.MyCheckInSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/checkins/me [get]
func (c *CheckInController) MyCheckIn(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	checkedIn, err := c.Service.IsCheckedIn(r.Context(), eventID, userID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, &MyCheckInPayload{CheckedIn: checkedIn})
}

// StreamRoster godoc
// @Summary Live roster stream (SSE)
// @Description Server-Sent Events stream of roster snapshots. The full current roster is sent immediately, then again after every check-in or check-out for this event. Each message is a JSON array of roster entries. The subscription ends when the client disconnects.
// @Tags checkins
// @Produce text/event-stream
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {string} string "event-stream of roster snapshots"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/roster/stream [get]
func (c *CheckInController) StreamRoster(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	// Event existence check before upgrading to a stream.
	if _, err := c.Service.ListRoster(r.Context(), eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}

	flusher, ok := prepareStream(w)
	if !ok {
		return
	}

	snapshots := make(chan []*domain.CheckInRecord, snapshotBuffer)
	unsubscribe, err := c.Feed.Subscribe(eventID, func(roster []*domain.CheckInRecord) {
		enqueueSnapshot(snapshots, roster)
	})
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "roster subscribe failed", "event_id", eventID, "err", err)
		return
	}
	defer unsubscribe()

	for {
		select {
		case roster := <-snapshots:
			if err := writeStreamEvent(w, flusher, "roster", roster); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
