// Package gateway abstracts the payment processor. The engine only speaks
// this vocabulary; Stripe specifics stay behind the StripeGateway.
package gateway

import "context"

// IntentStatus is the normalized payment intent status vocabulary
type IntentStatus string

const (
	IntentStatusRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentStatusRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentStatusRequiresAction        IntentStatus = "requires_action"
	IntentStatusProcessing            IntentStatus = "processing"
	IntentStatusRequiresCapture       IntentStatus = "requires_capture"
	IntentStatusSucceeded             IntentStatus = "succeeded"
	IntentStatusCanceled              IntentStatus = "canceled"
)

// Authorized reports whether funds are reserved and a capture may follow
func (s IntentStatus) Authorized() bool {
	return s == IntentStatusRequiresCapture
}

// CreateIntentParams are the inputs for creating a manual-capture intent
type CreateIntentParams struct {
	Amount         int64
	Currency       string
	IdempotencyKey string
	// CustomerID and PaymentMethodID drive the saved-card off-session
	// flow; leave both empty for the new-card client-confirmation flow
	CustomerID      string
	PaymentMethodID string
	OffSession      bool
	Description     string
	Metadata        map[string]string
}

// Intent is the processor's view of a payment intent
type Intent struct {
	ID             string
	ClientSecret   string
	Status         IntentStatus
	Amount         int64
	Currency       string
	LatestChargeID string
}

// RefundParams are the inputs for refunding a captured intent
type RefundParams struct {
	IntentID       string
	Amount         int64
	IdempotencyKey string
	Reason         string
}

// Refund is the processor's view of a refund
type Refund struct {
	ID     string
	Amount int64
	Status string
}

// CustomerParams are the inputs for creating a processor customer
type CustomerParams struct {
	UserID string
	Email  string
	Name   string
}

// Customer is the processor's view of a customer
type Customer struct {
	ID    string
	Email string
	Name  string
}

// PaymentGateway is the processor interface the reservation engine depends
// on. All mutating calls accept an idempotency key so network retries never
// double-charge.
type PaymentGateway interface {
	// CreateIntent creates a manual-capture intent. With a saved payment
	// method the intent is confirmed off-session in the same call.
	CreateIntent(ctx context.Context, params *CreateIntentParams) (*Intent, error)
	// GetIntent retrieves the current intent state from the processor
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
	// CaptureIntent captures an authorized intent
	CaptureIntent(ctx context.Context, intentID, idempotencyKey string) (*Intent, error)
	// CancelIntent voids an uncaptured intent
	CancelIntent(ctx context.Context, intentID string) (*Intent, error)
	// CreateRefund refunds (part of) a captured intent
	CreateRefund(ctx context.Context, params *RefundParams) (*Refund, error)
	// CreateCustomer registers a customer with the processor
	CreateCustomer(ctx context.Context, params *CustomerParams) (*Customer, error)
}
