package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"orbit/internal/delivery/http/helpers"
	"orbit/internal/delivery/http/middleware"
	"orbit/internal/domain"
)

// uuidRegex matches a canonical UUID string (8-4-4-4-12 hex).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// eventIDFromPath extracts and validates the eventID path value. On failure it
// writes a 400 and returns false.
func eventIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	eventID := r.PathValue("eventID")
	if eventID == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing eventID")
		return "", false
	}
	if !uuidRegex.MatchString(eventID) {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid eventID")
		return "", false
	}
	return eventID, true
}

type EventController struct {
	Logger   *slog.Logger
	Events   domain.EventService
	Users    domain.UserService
	CheckIns domain.CheckInService
	Feed     domain.EventFeed
}

func NewEventController(logger *slog.Logger, events domain.EventService, users domain.UserService, checkIns domain.CheckInService, feed domain.EventFeed) *EventController {
	return &EventController{
		Logger:   logger,
		Events:   events,
		Users:    users,
		CheckIns: checkIns,
		Feed:     feed,
	}
}

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Title       string  `json:"title"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	Category    *string `json:"category,omitempty"`
	Link        *string `json:"link,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
}

// Validate implements helpers.Validator.
func (r *CreateEventRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, "title is required")
	}
	if strings.TrimSpace(r.Date) == "" {
		errs = append(errs, "date is required")
	}
	if strings.TrimSpace(r.Location) == "" {
		errs = append(errs, "location is required")
	}
	if r.Capacity != nil && *r.Capacity < 0 {
		errs = append(errs, "capacity must not be negative")
	}
	return errs
}

// EventSuccessResponse is the success response envelope for single-event endpoints.
type EventSuccessResponse struct {
	Data  *domain.Event     `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ListEventsPayload is the data object for GET /events.
type ListEventsPayload struct {
	Events     []*domain.Event        `json:"events"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// ListEventsSuccessResponse is the success response envelope for GET /events.
type ListEventsSuccessResponse struct {
	Data  *ListEventsPayload `json:"data"`
	Error *helpers.APIError  `json:"error"`
}

// CreateEvent godoc
// @Summary Create an event
// @Description Creates an event hosted by the authenticated user. Only users with the host role may create events. The checked-in count starts at 0. Capacity is informational; check-ins are not blocked when it is reached.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.CreateEventRequest true "Event details"
// @Success 201 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not a host)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	// The route guard already enforces the host role; the profile is loaded
	// here only to denormalize the host name onto the event.
	host, err := c.Users.GetByID(r.Context(), userID)
	if err != nil {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	event := domain.NewEvent(req.Title, req.Date, req.Location, req.Description, host.ID, host.Name, time.Now())
	event.Category = req.Category
	event.Link = req.Link
	event.Capacity = req.Capacity

	if err := c.Events.CreateEvent(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, event)
}

// ListEvents godoc
// @Summary List events
// @Description Returns a paginated list of events, newest first. The checked-in counts here are the cached values and may lag the roster briefly.
// @Tags events
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.ListEventsSuccessResponse
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [get]
func (c *EventController) ListEvents(w http.ResponseWriter, r *http.Request) {
	params := helpers.ParsePagination(r)
	events, total, err := c.Events.ListEvents(r.Context(), params)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, &ListEventsPayload{
		Events:     events,
		Pagination: helpers.NewPaginationMeta(params.Page, params.PageSize, total),
	})
}

// HostedEventsSuccessResponse is the success response envelope for GET /me/events.
type HostedEventsSuccessResponse struct {
	Data  []*domain.Event   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ListMyEvents godoc
// @Summary List events I host
// @Tags events
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.HostedEventsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me/events [get]
func (c *EventController) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	events, err := c.Events.ListEventsByHost(r.Context(), userID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}

// GetEvent godoc
// @Summary Get an event
// @Description Returns the event. Loading an event reconciles its cached checked-in count against the roster, so this count is exact at read time.
// @Tags events
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	event, err := c.Events.GetEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// StreamEvents godoc
// @Summary Live event list stream (SSE)
// @Description Server-Sent Events stream of event list snapshots, newest first. The current list is sent immediately, then again after every event create, update, delete, or count change. Each message is a JSON array of events. The subscription ends when the client disconnects.
// @Tags events
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "event-stream of event list snapshots"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/stream [get]
func (c *EventController) StreamEvents(w http.ResponseWriter, r *http.Request) {
	snapshots := make(chan []*domain.Event, snapshotBuffer)
	unsubscribe, err := c.Feed.SubscribeList(func(events []*domain.Event) {
		enqueueSnapshot(snapshots, events)
	})
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "event list subscribe failed", "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	defer unsubscribe()

	flusher, ok := prepareStream(w)
	if !ok {
		return
	}

	for {
		select {
		case events := <-snapshots:
			if err := writeStreamEvent(w, flusher, "events", events); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// StreamEvent godoc
// @Summary Live single-event stream (SSE)
// @Description Server-Sent Events stream of one event's state. The current state is sent immediately, then again after every update or count change. Each message is the event as JSON; a null message means the event was deleted and the stream ends.
// @Tags events
// @Produce text/event-stream
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {string} string "event-stream of event snapshots"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/stream [get]
func (c *EventController) StreamEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}

	snapshots := make(chan *domain.Event, snapshotBuffer)
	unsubscribe, err := c.Feed.SubscribeEvent(eventID, func(event *domain.Event) {
		enqueueSnapshot(snapshots, event)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "event subscribe failed", "event_id", eventID, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	defer unsubscribe()

	flusher, ok := prepareStream(w)
	if !ok {
		return
	}

	for {
		select {
		case event := <-snapshots:
			if err := writeStreamEvent(w, flusher, "event", event); err != nil {
				return
			}
			if event == nil {
				// Deleted; nothing further will arrive.
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// UpdateEventRequest is the request body for PATCH /events/{eventID}.
// Absent fields are left unchanged.
type UpdateEventRequest struct {
	Title       *string `json:"title,omitempty"`
	Date        *string `json:"date,omitempty"`
	Location    *string `json:"location,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Link        *string `json:"link,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
}

// Validate implements helpers.Validator.
func (r *UpdateEventRequest) Validate() []string {
	var errs []string
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		errs = append(errs, "title cannot be empty")
	}
	if r.Capacity != nil && *r.Capacity < 0 {
		errs = append(errs, "capacity must not be negative")
	}
	return errs
}

// UpdateEvent godoc
// @Summary Update an event
// @Description Updates event fields. Only the hosting user may update. Absent fields are left unchanged.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Param body body controllers.UpdateEventRequest true "Fields to update"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not the host)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [patch]
func (c *EventController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	var req UpdateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	event, err := c.Events.UpdateEvent(r.Context(), eventID, userID, domain.EventUpdate{
		Title:       req.Title,
		Date:        req.Date,
		Location:    req.Location,
		Description: req.Description,
		Category:    req.Category,
		Link:        req.Link,
		Capacity:    req.Capacity,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		if errors.Is(err, domain.ErrForbidden) {
			helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "forbidden")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Deletes the event and all of its roster entries. Only the hosting user may delete.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 204 "Deleted"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not the host)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	if err := c.Events.DeleteEvent(r.Context(), eventID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		if errors.Is(err, domain.ErrForbidden) {
			helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "forbidden")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncCount godoc
// @Summary Reconcile an event's checked-in count
// @Description Overwrites the event's cached checked-in count with the roster's actual cardinality. Idempotent; intended for host dashboards.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.EventSuccessResponse "Event with the reconciled count"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/sync-count [post]
func (c *EventController) SyncCount(w http.ResponseWriter, r *http.Request) {
	eventID, ok := eventIDFromPath(w, r)
	if !ok {
		return
	}
	if err := c.CheckIns.SyncCheckedInCount(r.Context(), eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	event, err := c.Events.GetEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, event)
}
