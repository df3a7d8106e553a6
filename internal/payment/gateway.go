// Package payment abstracts the external payment gateway.  The core
// only models the effect of a charge or refund outcome on the booking
// state machine; gateway retries, webhooks and pricing rules live on
// the provider side.
package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Gateway is the external payment collaborator.  Charge returns an
// opaque payment reference on success; failures are plain errors the
// orchestrator records and surfaces.
type Gateway interface {
	// Charge debits the amount and returns the provider's payment
	// reference.
	Charge(ctx context.Context, amountCents uint32, reference string) (string, error)

	// Refund reverses a previous charge.  Best effort: the booking is
	// cancelled regardless and the outcome is recorded.
	Refund(ctx context.Context, paymentRef string, amountCents uint32) error
}

// Sandbox is a gateway stand-in for development and tests.  It
// approves every charge and mints provider-looking references.  Set
// Decline to force charge failures.
type Sandbox struct {
	Decline bool
}

// NewSandbox returns an approving sandbox gateway.
func NewSandbox() *Sandbox { return &Sandbox{} }

// Charge implements Gateway.
func (g *Sandbox) Charge(ctx context.Context, amountCents uint32, reference string) (string, error) {
	if g.Decline {
		return "", fmt.Errorf("charge declined for %s", reference)
	}
	return "pay_" + uuid.NewString(), nil
}

// Refund implements Gateway.
func (g *Sandbox) Refund(ctx context.Context, paymentRef string, amountCents uint32) error {
	return nil
}
