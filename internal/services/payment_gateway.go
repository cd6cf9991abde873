// internal/services/payment_gateway.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/config"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

type ChargeRequest struct {
	BuyerID        uuid.UUID
	Amount         models.Cents
	Method         string
	IdempotencyKey string
}

type ChargeResult struct {
	TransactionID string
}

// PaymentGateway is the external payment capability: it either confirms or
// rejects a charge. Callers must supply a fresh idempotency key per attempt
// and never reuse a key after a decline.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

type StripeGateway struct {
	config *config.Config
}

func NewStripeGateway(config *config.Config) *StripeGateway {
	stripe.Key = config.Payment.StripeSecretKey

	return &StripeGateway{config: config}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(req.Amount)),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethod: stripe.String(req.Method),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("buyer_id", req.BuyerID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return nil, apperrors.Wrap(apperrors.KindPayment, "payment declined", err)
		}
		return nil, apperrors.Wrap(apperrors.KindPayment, "payment processing failed", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, apperrors.Payment(fmt.Sprintf("payment not completed (status %s)", pi.Status))
	}

	return &ChargeResult{TransactionID: pi.ID}, nil
}
