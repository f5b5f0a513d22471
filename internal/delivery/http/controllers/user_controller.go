package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"orbit/internal/delivery/http/helpers"
	"orbit/internal/delivery/http/middleware"
	"orbit/internal/domain"
)

type UserController struct {
	Logger  *slog.Logger
	Service domain.UserService
}

func NewUserController(logger *slog.Logger, svc domain.UserService) *UserController {
	return &UserController{
		Logger:  logger,
		Service: svc,
	}
}

// ProfileSuccessResponse is the success response envelope for GET /me and PATCH /me.
type ProfileSuccessResponse struct {
	Data  *domain.UserProfile `json:"data"`
	Error *helpers.APIError   `json:"error"`
}

// GetMe godoc
// @Summary Get my profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.ProfileSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me [get]
func (c *UserController) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	user, err := c.Service.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "user not found")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, user)
}

// UpdateMeRequest is the request body for PATCH /me. Absent fields are left
// unchanged; present fields overwrite.
type UpdateMeRequest struct {
	Name          *string `json:"name,omitempty"`
	Company       *string `json:"company,omitempty"`
	RecruitingFor *string `json:"recruiting_for,omitempty"`
	LookingFor    *string `json:"looking_for,omitempty"`
}

// Validate implements helpers.Validator.
func (r *UpdateMeRequest) Validate() []string {
	var errs []string
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs = append(errs, "name must not be empty")
	}
	if r.Name == nil && r.Company == nil && r.RecruitingFor == nil && r.LookingFor == nil {
		errs = append(errs, "at least one field is required")
	}
	return errs
}

// UpdateMe godoc
// @Summary Update my profile
// @Description Partial update. Only the fields present in the body are changed.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body controllers.UpdateMeRequest true "Fields to update"
// @Success 200 {object} controllers.ProfileSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me [patch]
func (c *UserController) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}

	var req UpdateMeRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	user, err := c.Service.Update(r.Context(), userID, domain.ProfileUpdate{
		Name:          req.Name,
		Company:       req.Company,
		RecruitingFor: req.RecruitingFor,
		LookingFor:    req.LookingFor,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "user not found")
			return
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, user)
}

// AttendedEventsSuccessResponse is the success response envelope for GET /me/attended-events.
type AttendedEventsSuccessResponse struct {
	Data  []*domain.Event   `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// ListAttendedEvents godoc
// @Summary List events I have attended
// @Description Returns every event the user has ever checked in to, in first-check-in order. Checking out does not remove an event from this list. Events deleted by their host are omitted.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.AttendedEventsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /me/attended-events [get]
func (c *UserController) ListAttendedEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return
	}
	events, err := c.Service.ListAttendedEvents(r.Context(), userID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, events)
}
