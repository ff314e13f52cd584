package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/domain"
)

// alphanumericChars for generating processor-compatible IDs
const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return string(b)
}

// MockGateway implements PaymentGateway in memory for development and load
// testing. Intents follow the manual-capture lifecycle: created intents go
// straight to requires_capture when confirmed, succeeded on capture.
type MockGateway struct {
	config *MockGatewayConfig

	mu      sync.RWMutex
	intents map[string]*Intent
	// replay cache keyed by idempotency key
	byIdemKey map[string]string
}

// MockGatewayConfig holds configuration for the mock gateway
type MockGatewayConfig struct {
	// SuccessRate is the probability an authorization succeeds (0.0 to 1.0)
	SuccessRate float64
}

// DefaultMockGatewayConfig returns default configuration
func DefaultMockGatewayConfig() *MockGatewayConfig {
	return &MockGatewayConfig{SuccessRate: 1.0}
}

// NewMockGateway creates a new mock gateway
func NewMockGateway(config *MockGatewayConfig) *MockGateway {
	if config == nil {
		config = DefaultMockGatewayConfig()
	}
	if config.SuccessRate < 0 {
		config.SuccessRate = 0
	}
	if config.SuccessRate > 1 {
		config.SuccessRate = 1
	}

	return &MockGateway{
		config:    config,
		intents:   make(map[string]*Intent),
		byIdemKey: make(map[string]string),
	}
}

// CreateIntent creates a mock intent
func (g *MockGateway) CreateIntent(ctx context.Context, p *CreateIntentParams) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p.IdempotencyKey != "" {
		if id, ok := g.byIdemKey[p.IdempotencyKey]; ok {
			return cloneIntent(g.intents[id]), nil
		}
	}

	if rand.Float64() > g.config.SuccessRate {
		return nil, domain.PaymentFailure("CARD_DECLINED", fmt.Errorf("mock decline"))
	}

	intent := &Intent{
		ID:           "pi_mock_" + randomAlphanumeric(24),
		ClientSecret: "pi_mock_secret_" + randomAlphanumeric(24),
		Amount:       p.Amount,
		Currency:     p.Currency,
	}

	// Saved-card flow confirms immediately; new-card flow waits for the
	// client
	if p.PaymentMethodID != "" {
		intent.Status = IntentStatusRequiresCapture
	} else {
		intent.Status = IntentStatusRequiresPaymentMethod
	}

	g.intents[intent.ID] = intent
	if p.IdempotencyKey != "" {
		g.byIdemKey[p.IdempotencyKey] = intent.ID
	}

	return cloneIntent(intent), nil
}

// GetIntent retrieves a mock intent
func (g *MockGateway) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	intent, ok := g.intents[intentID]
	if !ok {
		return nil, domain.PaymentFailure("PAYMENT_FAILED", fmt.Errorf("mock intent %s not found", intentID))
	}
	return cloneIntent(intent), nil
}

// ConfirmIntent simulates the client-side confirmation step
func (g *MockGateway) ConfirmIntent(intentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if intent, ok := g.intents[intentID]; ok && intent.Status == IntentStatusRequiresPaymentMethod {
		intent.Status = IntentStatusRequiresCapture
	}
}

// CaptureIntent captures an authorized mock intent
func (g *MockGateway) CaptureIntent(ctx context.Context, intentID, idempotencyKey string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[intentID]
	if !ok {
		return nil, domain.PaymentFailure("PAYMENT_FAILED", fmt.Errorf("mock intent %s not found", intentID))
	}

	if intent.Status == IntentStatusSucceeded {
		return cloneIntent(intent), nil
	}
	if intent.Status != IntentStatusRequiresCapture {
		return nil, domain.PaymentFailure("PAYMENT_FAILED", fmt.Errorf("mock intent %s is %s, not capturable", intentID, intent.Status))
	}

	intent.Status = IntentStatusSucceeded
	intent.LatestChargeID = "ch_mock_" + randomAlphanumeric(24)
	return cloneIntent(intent), nil
}

// CancelIntent voids an uncaptured mock intent
func (g *MockGateway) CancelIntent(ctx context.Context, intentID string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[intentID]
	if !ok {
		return nil, domain.PaymentFailure("PAYMENT_FAILED", fmt.Errorf("mock intent %s not found", intentID))
	}

	intent.Status = IntentStatusCanceled
	return cloneIntent(intent), nil
}

// CreateRefund refunds a captured mock intent
func (g *MockGateway) CreateRefund(ctx context.Context, p *RefundParams) (*Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[p.IntentID]
	if !ok {
		return nil, domain.PaymentFailure("PAYMENT_FAILED", fmt.Errorf("mock intent %s not found", p.IntentID))
	}
	if intent.Status != IntentStatusSucceeded {
		return nil, domain.PaymentFailure("PAYMENT_FAILED", fmt.Errorf("mock intent %s has no captured funds", p.IntentID))
	}

	return &Refund{
		ID:     "re_mock_" + randomAlphanumeric(24),
		Amount: p.Amount,
		Status: "succeeded",
	}, nil
}

// CreateCustomer registers a mock customer
func (g *MockGateway) CreateCustomer(ctx context.Context, p *CustomerParams) (*Customer, error) {
	return &Customer{
		ID:    "cus_mock_" + randomAlphanumeric(14),
		Email: p.Email,
		Name:  p.Name,
	}, nil
}

func cloneIntent(i *Intent) *Intent {
	c := *i
	return &c
}
