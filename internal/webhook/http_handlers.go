package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"garuda-sentry/internal/calls"
	"garuda-sentry/pkg/logger"
	"garuda-sentry/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Handler receives provider webhooks, verifies them, and hands verified
// events to the call-record reconciler.
//
// No business logic here beyond dispatch; reconciliation lives in
// internal/calls.

type Handler struct {
	Calls *calls.Service

	// Secret signs inbound deliveries. Empty means verification always fails
	// with a configuration error (degraded deployments surface it as 401s).
	Secret string

	// Redis optionally short-circuits exact duplicate deliveries. Nil
	// disables the guard; the reconciler upsert stays idempotent without it.
	Redis utils.DeliveryStore

	Now func() time.Time
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Status answers GET probes on the webhook path.
func (h Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "webhook listening"})
}

// HandlePostCall processes signed provider deliveries.
//
// The body is read raw before any JSON binding: the signature covers the
// exact bytes on the wire.
func (h Handler) HandlePostCall(c *gin.Context) {
	log := logger.FromGin(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ev, err := ConstructEvent(body, c.GetHeader(SignatureHeader), h.Secret, h.now())
	if err != nil {
		log.Warn("webhook verification failed", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	if ev.Type != EventTypePostCallTranscription {
		// Acknowledge everything else so the provider does not retry.
		log.Debug("ignoring webhook event", "type", ev.Type)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if ev.Data.ConversationID == "" {
		log.Warn("webhook payload missing conversation_id")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing conversation_id"})
		return
	}

	ctx := c.Request.Context()

	var claimKey string
	if h.Redis != nil {
		claimKey = deliveryKey(ev.Data.ConversationID, body)
		fresh, err := utils.ClaimDelivery(ctx, h.Redis, claimKey, signatureTolerance)
		switch {
		case err != nil:
			// The guard is an optimization; reconcile anyway.
			log.Warn("delivery claim failed", "err", err)
		case !fresh:
			log.Info("duplicate webhook delivery suppressed", "conversation_id", ev.Data.ConversationID)
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
	}

	rec, err := h.Calls.ReconcilePostCall(ctx, calls.PostCallEvent{
		ConversationID: ev.Data.ConversationID,
		Intent:         ev.Data.Intent(),
		CallerPhone:    ev.Data.Phone(),
		Status:         lifecycleStatus(ev.Data.Status),
		OccurredAt:     ev.Data.OccurredAt(),
	})
	if err != nil {
		// The claim must not outlive a failed attempt, or the provider's
		// retry within the TTL would be suppressed as a duplicate.
		if claimKey != "" {
			if relErr := utils.ReleaseDelivery(ctx, h.Redis, claimKey); relErr != nil {
				log.Warn("delivery claim release failed", "err", relErr)
			}
		}
		if errors.Is(err, calls.ErrMissingConversationID) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing conversation_id"})
			return
		}
		log.Error("webhook reconciliation failed", "conversation_id", ev.Data.ConversationID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		return
	}

	log.Info("webhook processed", "conversation_id", rec.ConversationID, "intent", rec.Intent)
	c.JSON(http.StatusOK, gin.H{
		"received":        true,
		"success":         true,
		"conversation_id": rec.ConversationID,
	})
}

// HandleLegacyEvent processes the unsigned legacy event stream. It always
// acknowledges with 200 so the upstream does not retry; failures are reported
// in the body only.
func (h Handler) HandleLegacyEvent(c *gin.Context) {
	log := logger.FromGin(c)

	var ev LegacyEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		log.Warn("legacy webhook parse failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "invalid json"})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch ev.EventType {
	case LegacyEventConversationStarted:
		var phone string
		if ev.Conversation != nil {
			phone = ev.Conversation.CallerPhone
		}
		_, err = h.Calls.MarkConversationStarted(ctx, ev.ConversationID, phone)
	case LegacyEventConversationEnded:
		_, err = h.Calls.ApplyConversationText(ctx, ev.ConversationID, ev.Conversation.FullText(), true)
	case LegacyEventConversationUpdated:
		_, err = h.Calls.ApplyConversationText(ctx, ev.ConversationID, ev.Conversation.FullText(), false)
	default:
		log.Debug("unhandled legacy event type", "type", ev.EventType)
	}

	if err != nil {
		log.Error("legacy webhook processing failed", "type", ev.EventType, "conversation_id", ev.ConversationID, "err", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook processed"})
}

func deliveryKey(conversationID string, body []byte) string {
	sum := sha256.Sum256(body)
	return "webhook:delivery:" + conversationID + ":" + hex.EncodeToString(sum[:])
}

// lifecycleStatus maps the provider's call status onto the record lifecycle
// labels; unrecognized values pass through.
func lifecycleStatus(s string) string {
	switch s {
	case "completed":
		return calls.StatusCallCompleted
	case "failed":
		return calls.StatusCallFailed
	case "timeout":
		return calls.StatusCallTimeout
	default:
		return s
	}
}
