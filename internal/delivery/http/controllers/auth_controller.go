package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"orbit/internal/delivery/http/helpers"
	"orbit/internal/domain"
)

type AuthController struct {
	Logger  *slog.Logger
	Service domain.UserService
}

func NewAuthController(logger *slog.Logger, svc domain.UserService) *AuthController {
	return &AuthController{
		Logger:  logger,
		Service: svc,
	}
}

// SignUpRequest is the request body for POST /auth/signup.
type SignUpRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Company       string `json:"company,omitempty"`
	RecruitingFor string `json:"recruiting_for,omitempty"`
	LookingFor    string `json:"looking_for,omitempty"`
}

// Validate implements helpers.Validator.
func (r *SignUpRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, "email is required")
	}
	if r.Password == "" {
		errs = append(errs, "password is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !domain.Role(r.Role).Valid() {
		errs = append(errs, "role must be one of: attendee, host, recruiter")
	}
	return errs
}

// AuthPayload is the data object returned by signup and login.
type AuthPayload struct {
	Token string              `json:"token"`
	User  *domain.UserProfile `json:"user"`
}

// AuthSuccessResponse is the success response envelope for POST /auth/signup and POST /auth/login.
type AuthSuccessResponse struct {
	Data  *AuthPayload      `json:"data"`
	Error *helpers.APIError `json:"error"`
}

// SignUp godoc
// @Summary Create an account
// @Description Creates a user account with the chosen role. Recruiter metadata (company, recruiting_for, looking_for) is stored only when non-empty. Returns a bearer token and the profile.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body controllers.SignUpRequest true "Account details"
// @Success 201 {object} controllers.AuthSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (email already in use)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/signup [post]
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	token, user, err := c.Service.SignUp(r.Context(), domain.SignUpInput{
		Email:         req.Email,
		Password:      req.Password,
		Name:          req.Name,
		Role:          domain.Role(req.Role),
		Company:       req.Company,
		RecruitingFor: req.RecruitingFor,
		LookingFor:    req.LookingFor,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			helpers.WriteJSONError(w, http.StatusConflict, helpers.ErrCodeConflict, "email already in use")
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

	helpers.WriteJSONSuccess(w, http.StatusCreated, &AuthPayload{Token: token, User: user})
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate implements helpers.Validator.
func (r *LoginRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(r.Email) == "" {
		errs = append(errs, "email is required")
	}
	if r.Password == "" {
		errs = append(errs, "password is required")
	}
	return errs
}

// Login godoc
// @Summary Log in with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param body body controllers.LoginRequest true "Credentials"
// @Success 200 {object} controllers.AuthSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized (bad credentials)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/login [post]
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}

	token, user, err := c.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "invalid email or password")
			return
		}
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}

	helpers.WriteJSONSuccess(w, http.StatusOK, &AuthPayload{Token: token, User: user})
}
