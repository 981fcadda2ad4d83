package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/promovista/app/internal/app"
	"github.com/promovista/app/internal/backend"
	"github.com/promovista/app/internal/middleware"
	"github.com/promovista/app/internal/phone"
	"github.com/promovista/app/internal/profile"
	"github.com/promovista/app/internal/screen"
	"github.com/promovista/app/internal/session"
	"go.uber.org/zap"
)

// AppHandler exposes the screens of the app over HTTP
type AppHandler struct {
	app          *app.App
	phoneLimiter *middleware.RateLimiter
	log          *zap.Logger
}

// NewAppHandler creates a new app handler. phoneLimiter may be nil to
// disable the per-phone limit on code requests.
func NewAppHandler(a *app.App, phoneLimiter *middleware.RateLimiter, log *zap.Logger) *AppHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AppHandler{app: a, phoneLimiter: phoneLimiter, log: log}
}

// NewPhoneLimiter returns the limiter for code requests: 3 per phone per 10 minutes
func NewPhoneLimiter() *middleware.RateLimiter {
	return middleware.NewRateLimiter(10*time.Minute, 3, nil)
}

// stateResponse is the JSON body of GET /state and every successful action
type stateResponse struct {
	app.View
	Session sessionResponse `json:"session"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Loading       bool   `json:"loading"`
	UserID        string `json:"user_id,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Profile       string `json:"profile"`
}

// loginRequest is the request body for POST /login
type loginRequest struct {
	Phone string `json:"phone"`
}

// verifyRequest is the request body for POST /otp/verify
type verifyRequest struct {
	Code string `json:"code"`
}

// HandleState handles GET /state
func (h *AppHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, r)
}

// HandleLogin handles POST /login
func (h *AppHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.app.LoginScreen()
	if err != nil {
		h.respondUnavailable(w, err)
		return
	}
	if h.phoneLimiter != nil && !h.phoneLimiter.Allow(middleware.GetPhoneKey(req.Phone)) {
		h.log.Warn("otp request rate limited", zap.String("phone", phone.Mask(strings.TrimSpace(req.Phone))))
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	s.SetPhone(req.Phone)
	h.finish(w, r, s.Submit())
}

// HandleVerifyOTP handles POST /otp/verify
func (h *AppHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.app.OTPScreen()
	if err != nil {
		h.respondUnavailable(w, err)
		return
	}
	s.SetCode(req.Code)
	h.finish(w, r, s.Verify())
}

// HandleResendOTP handles POST /otp/resend
func (h *AppHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.OTPScreen()
	if err != nil {
		h.respondUnavailable(w, err)
		return
	}
	h.finish(w, r, s.Resend())
}

// HandleProfile handles POST /profile
func (h *AppHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	var req profile.Draft
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.app.ProfileScreen()
	if err != nil {
		h.respondUnavailable(w, err)
		return
	}
	s.SetDraft(req)
	h.finish(w, r, s.Submit())
}

// HandleSignOut handles POST /signout
func (h *AppHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.HomeScreen()
	if err != nil {
		h.respondUnavailable(w, err)
		return
	}
	h.finish(w, r, s.SignOut())
}

// HandleBack handles POST /back
func (h *AppHandler) HandleBack(w http.ResponseWriter, r *http.Request) {
	if !h.app.Back() {
		respondWithError(w, http.StatusConflict, "cannot go back")
		return
	}
	h.respondState(w, r)
}

// HandleDismissAlerts handles DELETE /alerts
func (h *AppHandler) HandleDismissAlerts(w http.ResponseWriter, r *http.Request) {
	h.app.DismissAlerts()
	h.respondState(w, r)
}

// finish writes the outcome of a screen action. A screen that was unmounted
// while its action ran means the app already moved on, so the new state is
// returned.
func (h *AppHandler) finish(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil || errors.Is(err, screen.ErrNotMounted) {
		h.respondState(w, r)
		return
	}

	var verr *screen.ValidationError
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusUnprocessableEntity, verr.Message)
	case errors.Is(err, screen.ErrBusy):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, screen.ErrResendDisabled):
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &apiErr):
		respondWithError(w, http.StatusBadGateway, apiErr.Message)
	case errors.Is(err, backend.ErrNotConfigured):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("screen action failed", zap.Error(err))
		respondWithError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *AppHandler) respondUnavailable(w http.ResponseWriter, err error) {
	respondWithError(w, http.StatusConflict, err.Error())
}

func (h *AppHandler) respondState(w http.ResponseWriter, r *http.Request) {
	store, err := session.FromContext(r.Context())
	if err != nil {
		h.log.Error("session store missing from request context", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}

	st := store.Current()
	resp := stateResponse{
		View: h.app.View(),
		Session: sessionResponse{
			Authenticated: st.Authenticated(),
			Loading:       st.Loading,
			Profile:       st.Profile.String(),
		},
	}
	if st.User != nil {
		resp.Session.UserID = st.User.ID.String()
		resp.Session.Phone = st.User.Phone
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn("failed to encode state response", zap.Error(err))
	}
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
