package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"garuda-sentry/internal/auth"
	"garuda-sentry/internal/calls"
	"garuda-sentry/internal/config"
	"garuda-sentry/internal/elevenlabs"
	"garuda-sentry/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
//
// All record responses use the {success, data} / {success:false, error}
// envelope. Error messages are surfaced verbatim only because this is an
// internal dispatcher console surface, not a public API.

type Handlers struct {
	Auth       *auth.Manager
	Calls      *calls.Service
	ElevenLabs *elevenlabs.Client
	Dispatch   config.DispatchConfig
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the static dispatcher credential and issues a token pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || !h.Dispatch.Enabled() {
		respondError(c, http.StatusNotImplemented, "login not configured")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid json")
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Dispatch.User)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.Dispatch.Password)) == 1
	if !userOK || !passOK {
		respondError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.Username, auth.RoleDispatcher)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "token issuance failed")
		return
	}
	respondData(c, http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Signed URL passthrough ---

func (h Handlers) GetSignedURL(c *gin.Context) {
	log := logger.FromGin(c)
	if h.ElevenLabs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate signed URL"})
		return
	}
	u, err := h.ElevenLabs.GetSignedURL(c.Request.Context())
	if err != nil {
		log.Error("signed url fetch failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate signed URL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signedUrl": u})
}

// --- Call records ---

type createCallRequest struct {
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent,omitempty"`
	CallerPhone    string `json:"caller_phone,omitempty"`
	Status         string `json:"status,omitempty"`
	PriorityLevel  int    `json:"priority_level,omitempty"`
}

func (h Handlers) CreateCall(c *gin.Context) {
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rec, err := h.Calls.Create(c.Request.Context(), calls.CreateCallRequest{
		ConversationID: req.ConversationID,
		Intent:         req.Intent,
		CallerPhone:    req.CallerPhone,
		Status:         req.Status,
		PriorityLevel:  req.PriorityLevel,
	})
	switch {
	case errors.Is(err, calls.ErrMissingConversationID):
		respondError(c, http.StatusBadRequest, "Missing conversation_id")
	case errors.Is(err, calls.ErrConflict):
		respondError(c, http.StatusConflict, "call already exists")
	case err != nil:
		respondError(c, http.StatusInternalServerError, err.Error())
	default:
		respondData(c, http.StatusCreated, rec)
	}
}

func (h Handlers) ListCalls(c *gin.Context) {
	f := calls.ListFilter{
		Intent: c.Query("intent"),
		Status: c.Query("status"),
	}
	if raw := c.Query("priority_level"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "priority_level must be an integer")
			return
		}
		f.PriorityLevel = &n
	}
	rows, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(c, http.StatusOK, rows)
}

func (h Handlers) ListCallsByPriority(c *gin.Context) {
	rows, err := h.Calls.List(c.Request.Context(), calls.ListFilter{ByPriority: true})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(c, http.StatusOK, rows)
}

func (h Handlers) GetCallsSummary(c *gin.Context) {
	sum, err := h.Calls.Summarize(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondData(c, http.StatusOK, sum)
}

func (h Handlers) GetCall(c *gin.Context) {
	rec, err := h.Calls.GetByConversationID(c.Request.Context(), c.Param("conversation_id"))
	switch {
	case errors.Is(err, calls.ErrNotFound):
		respondError(c, http.StatusNotFound, "Call not found")
	case errors.Is(err, calls.ErrInvalidArgument):
		respondError(c, http.StatusBadRequest, "conversation_id required")
	case err != nil:
		respondError(c, http.StatusInternalServerError, err.Error())
	default:
		respondData(c, http.StatusOK, rec)
	}
}

type updateIntentRequest struct {
	Intent string `json:"intent"`
}

func (h Handlers) UpdateIntent(c *gin.Context) {
	var req updateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Intent == "" {
		respondError(c, http.StatusBadRequest, "intent required")
		return
	}
	rec, err := h.Calls.UpdateIntent(c.Request.Context(), c.Param("conversation_id"), req.Intent)
	h.respondPatch(c, rec, err)
}

type updatePhoneRequest struct {
	CallerPhone string `json:"caller_phone"`
}

func (h Handlers) UpdatePhone(c *gin.Context) {
	var req updatePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallerPhone == "" {
		respondError(c, http.StatusBadRequest, "caller_phone required")
		return
	}
	rec, err := h.Calls.UpdatePhone(c.Request.Context(), c.Param("conversation_id"), req.CallerPhone)
	h.respondPatch(c, rec, err)
}

func (h Handlers) respondPatch(c *gin.Context, rec calls.CallRecord, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		respondError(c, http.StatusNotFound, "Call not found")
	case errors.Is(err, calls.ErrInvalidArgument):
		respondError(c, http.StatusBadRequest, "invalid request")
	case err != nil:
		respondError(c, http.StatusInternalServerError, err.Error())
	default:
		respondData(c, http.StatusOK, rec)
	}
}
