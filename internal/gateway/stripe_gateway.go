package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/retry"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// StripeGateway implements PaymentGateway using Stripe with manual capture.
// Funds are authorized at reservation creation and captured only on host
// confirmation.
type StripeGateway struct {
	config  *StripeGatewayConfig
	retrier *retry.Retrier
}

// StripeGatewayConfig holds configuration for the Stripe gateway
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	stripe.Key = config.SecretKey

	return &StripeGateway{
		config: config,
		retrier: retry.New(&retry.Config{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		}),
	}, nil
}

// CreateIntent creates a manual-capture PaymentIntent. When a saved payment
// method is supplied the intent is confirmed off-session in the same call;
// otherwise the caller's client confirms it with the returned client secret.
func (g *StripeGateway) CreateIntent(ctx context.Context, p *CreateIntentParams) (*Intent, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.stripe.create_intent")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("amount", p.Amount),
		attribute.String("currency", p.Currency),
		attribute.Bool("off_session", p.OffSession),
	)

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.Amount),
		Currency:      stripe.String(p.Currency),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Metadata:      p.Metadata,
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}

	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(p.PaymentMethodID)
		params.Confirm = stripe.Bool(true)
		if p.CustomerID != "" {
			params.Customer = stripe.String(p.CustomerID)
		}
		if p.OffSession {
			params.OffSession = stripe.Bool(true)
		}
	} else {
		params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		}
	}

	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		// A missing customer means our stored processor reference went
		// stale (test-mode data resets do this). Recreate and retry once.
		if isResourceMissing(err) && p.CustomerID != "" {
			span.AddEvent("stripe customer missing, retrying without customer")
			params.Customer = nil
			params.PaymentMethod = nil
			params.Confirm = nil
			params.OffSession = nil
			params.AutomaticPaymentMethods = &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			}
			pi, err = paymentintent.New(params)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, mapStripeError(err)
		}
	}

	span.SetAttributes(attribute.String("intent_id", pi.ID), attribute.String("intent_status", string(pi.Status)))
	span.SetStatus(codes.Ok, "")
	return intentFromStripe(pi), nil
}

// GetIntent retrieves the current state of an intent
func (g *StripeGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.stripe.get_intent")
	defer span.End()

	span.SetAttributes(attribute.String("intent_id", intentID))

	pi, err := paymentintent.Get(intentID, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, mapStripeError(err)
	}

	span.SetStatus(codes.Ok, "")
	return intentFromStripe(pi), nil
}

// CaptureIntent captures an authorized intent. Transient processor errors
// are retried with backoff; card and state errors are surfaced immediately.
func (g *StripeGateway) CaptureIntent(ctx context.Context, intentID, idempotencyKey string) (*Intent, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.stripe.capture_intent")
	defer span.End()

	span.SetAttributes(attribute.String("intent_id", intentID))

	params := &stripe.PaymentIntentCaptureParams{}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	var pi *stripe.PaymentIntent
	result := g.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		pi, err = paymentintent.Capture(intentID, params)
		if err != nil {
			if isTransient(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		return nil
	})

	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		return nil, mapStripeError(result.Err)
	}

	span.SetAttributes(attribute.String("intent_status", string(pi.Status)))
	span.SetStatus(codes.Ok, "")
	return intentFromStripe(pi), nil
}

// CancelIntent voids an uncaptured intent
func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.stripe.cancel_intent")
	defer span.End()

	span.SetAttributes(attribute.String("intent_id", intentID))

	pi, err := paymentintent.Cancel(intentID, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, mapStripeError(err)
	}

	span.SetStatus(codes.Ok, "")
	return intentFromStripe(pi), nil
}

// CreateRefund refunds (part of) a captured intent
func (g *StripeGateway) CreateRefund(ctx context.Context, p *RefundParams) (*Refund, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.stripe.create_refund")
	defer span.End()

	span.SetAttributes(
		attribute.String("intent_id", p.IntentID),
		attribute.Int64("amount", p.Amount),
	)

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(p.IntentID),
		Amount:        stripe.Int64(p.Amount),
	}
	if p.Reason != "" {
		params.Reason = stripe.String(p.Reason)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	var rf *stripe.Refund
	result := g.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		rf, err = refund.New(params)
		if err != nil {
			if isTransient(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		return nil
	})

	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		return nil, mapStripeError(result.Err)
	}

	span.SetAttributes(attribute.String("refund_id", rf.ID))
	span.SetStatus(codes.Ok, "")
	return &Refund{
		ID:     rf.ID,
		Amount: rf.Amount,
		Status: string(rf.Status),
	}, nil
}

// CreateCustomer registers a customer with Stripe
func (g *StripeGateway) CreateCustomer(ctx context.Context, p *CustomerParams) (*Customer, error) {
	ctx, span := telemetry.StartSpan(ctx, "gateway.stripe.create_customer")
	defer span.End()

	params := &stripe.CustomerParams{
		Email: stripe.String(p.Email),
		Metadata: map[string]string{
			"user_id": p.UserID,
		},
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}

	cust, err := customer.New(params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, mapStripeError(err)
	}

	span.SetAttributes(attribute.String("customer_id", cust.ID))
	span.SetStatus(codes.Ok, "")
	return &Customer{
		ID:    cust.ID,
		Email: cust.Email,
		Name:  cust.Name,
	}, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       IntentStatus(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.LatestCharge != nil {
		intent.LatestChargeID = pi.LatestCharge.ID
	}
	return intent
}

// mapStripeError converts a Stripe error into a domain payment error with
// the processor's own code preserved for the caller.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := string(stripeErr.Code)
		if code == "" {
			code = string(stripeErr.Type)
		}
		return domain.PaymentFailure(normalizeStripeCode(code), err)
	}
	return domain.PaymentFailure("", err)
}

func normalizeStripeCode(code string) string {
	switch code {
	case string(stripe.ErrorCodeCardDeclined):
		return "CARD_DECLINED"
	case string(stripe.ErrorCodeExpiredCard):
		return "CARD_EXPIRED"
	case string(stripe.ErrorCodeAuthenticationRequired):
		return "AUTHENTICATION_REQUIRED"
	case string(stripe.ErrorCodeAmountTooSmall):
		return "AMOUNT_TOO_SMALL"
	default:
		return "PAYMENT_FAILED"
	}
}

func isTransient(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeAPI:
			return true
		}
		if stripeErr.HTTPStatusCode == 429 || stripeErr.HTTPStatusCode >= 500 {
			return true
		}
		return false
	}
	// Network-level errors arrive unwrapped
	return true
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}
