package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/gateway"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/service"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/logger"
)

// WebhookHandler handles Stripe webhook events. Webhooks only advance the
// payment record; reservation status changes stay with their operations.
type WebhookHandler struct {
	reservations  ReservationLifecycle
	webhookSecret string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(reservations ReservationLifecycle, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		reservations:  reservations,
		webhookSecret: webhookSecret,
	}
}

// HandleStripeWebhook handles POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	log := logger.WithContext(c.Request.Context())

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		log.Warn("missing Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		log.Error("failed to verify webhook signature", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.amount_capturable_updated",
		"payment_intent.succeeded",
		"payment_intent.payment_failed",
		"payment_intent.canceled",
		"payment_intent.requires_action":
		h.handlePaymentIntentEvent(c, event)
	default:
		log.Info("unhandled webhook event type", zap.String("type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "event type not handled"})
	}
}

func (h *WebhookHandler) handlePaymentIntentEvent(c *gin.Context, event stripe.Event) {
	log := logger.WithContext(c.Request.Context())

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		log.Error("failed to parse payment intent event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to parse event data"})
		return
	}

	upd := &service.IntentUpdate{
		IntentID: intent.ID,
		Status:   gateway.IntentStatus(intent.Status),
	}
	if intent.LatestCharge != nil {
		upd.ChargeID = intent.LatestCharge.ID
	}
	if intent.LastPaymentError != nil {
		upd.ErrorCode = string(intent.LastPaymentError.Code)
		upd.ErrorMessage = intent.LastPaymentError.Msg
	}

	if err := h.reservations.ApplyIntentUpdate(c.Request.Context(), upd); err != nil {
		// Acknowledge anyway; Stripe retries on non-2xx and the update is
		// idempotent, but a poisoned event should not retry forever
		log.Error("failed to apply intent update",
			zap.String("intent_id", intent.ID),
			zap.String("intent_status", string(intent.Status)),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
