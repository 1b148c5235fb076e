package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"warbler/internal/core"
	"warbler/internal/http/handler/middleware"
	"warbler/internal/http/payload"
)

var (
	Authenticate = "POST /api/authenticate"
	GetTimeline  = "GET /api/timeline"
	GetUser      = "GET /api/users/{id}"
	Health       = "GET /healthz"
)

func (h *WarblerHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	requestId := middleware.RequestIDFrom(r.Context())

	var payload payload.Credentials
	err := h.requestValidator.DecodeAndValidateJSONPayload(r, &payload)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not authenticate",
			Error:   fmt.Errorf("invalid request payload: %w", err).Error(),
		}, http.StatusBadRequest,
			requestId)
		h.logs.Errorw("failed to decode and validate request payload",
			"error", err,
			"handler", Authenticate,
			"request_id", requestId)
		return
	}

	token, err := h.warbler.IssueToken(r.Context(), payload.ToAuthMessage())
	if err != nil {
		resp := Response{
			Message: "Login failed",
		}
		httpCode := http.StatusInternalServerError
		if errors.Is(err, core.ErrInvalidCredentials) {
			httpCode = http.StatusUnauthorized
			resp.Error = err.Error()
		} else {
			resp.Error = "unexpected error occurred"
		}

		h.respond(w, resp, httpCode, requestId)
		h.logs.Errorw("authentication failed",
			"error", err,
			"handler", Authenticate,
			"request_id", requestId)
		return
	}

	resp := map[string]string{
		"token": token,
	}
	h.respond(w, resp, http.StatusOK, requestId)
}

func (h *WarblerHandler) HandleGetTimeline(w http.ResponseWriter, r *http.Request) {
	requestId := middleware.RequestIDFrom(r.Context())

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		h.respond(w, Response{
			Message: "Authentication failed",
			Error:   "bearer token is required",
		}, http.StatusUnauthorized,
			requestId)
		return
	}

	user, err := h.warbler.ResolveToken(r.Context(), token)
	if err != nil {
		httpCode := http.StatusInternalServerError
		resp := Response{Message: "Authentication failed", Error: "unexpected error occurred"}
		if errors.Is(err, core.ErrInvalidCredentials) {
			httpCode = http.StatusUnauthorized
			resp.Error = core.ErrInvalidCredentials.Error()
		}

		h.respond(w, resp, httpCode, requestId)
		h.logs.Errorw("failed to resolve token",
			"error", err,
			"handler", GetTimeline,
			"request_id", requestId)
		return
	}

	messages, err := h.warbler.Timeline(r.Context(), user.ID)
	if err != nil {
		h.respond(w, Response{
			Message: "Could not retrieve timeline",
			Error:   "unexpected error occurred",
		}, http.StatusInternalServerError,
			requestId)
		h.logs.Errorw("failed to get timeline",
			"error", err,
			"handler", GetTimeline,
			"request_id", requestId)
		return
	}

	resp := map[string][]MessageResponse{
		"messages": toMessageResponses(messages),
	}
	h.respond(w, resp, http.StatusOK, requestId)
}

func (h *WarblerHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	requestId := middleware.RequestIDFrom(r.Context())

	id, err := parseID(r)
	if err != nil {
		h.respond(w, Response{Message: "User not found", Error: err.Error()}, http.StatusNotFound, requestId)
		return
	}

	user, err := h.warbler.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			h.respond(w, Response{Message: "User not found", Error: err.Error()}, http.StatusNotFound, requestId)
			return
		}

		h.respond(w, Response{
			Message: "Could not retrieve user",
			Error:   "unexpected error occurred",
		}, http.StatusInternalServerError,
			requestId)
		h.logs.Errorw("failed to get user",
			"error", err,
			"handler", GetUser,
			"request_id", requestId)
		return
	}

	h.respond(w, toUserResponse(user), http.StatusOK, requestId)
}

func (h *WarblerHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.warbler.Ping(r.Context()); err != nil {
		h.logs.Errorw("health check failed",
			"error", err,
			"handler", Health,
			"request_id", middleware.RequestIDFrom(r.Context()))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *WarblerHandler) respond(w http.ResponseWriter, resp any, code int, requestId string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, oopsErr, http.StatusInternalServerError)
		h.logs.Errorw("failed to encode response",
			"error", err,
			"request_id", requestId)
	}
}
