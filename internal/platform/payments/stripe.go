// Package payments wraps Stripe payment intents for the pay-now booking
// flow. Refunds are issued here too, for cancellations of prepaid work.
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"

	"github.com/stillpoint/massage-bookings/pkg/config"
	"github.com/stillpoint/massage-bookings/pkg/logger"
)

type StripeClient struct {
	enabled bool
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &StripeClient{enabled: cfg.SecretKey != ""}
}

// CreateIntent raises a payment intent for a booking draft. The draft ID
// rides along as metadata so webhook processing can find its way back.
func (c *StripeClient) CreateIntent(ctx context.Context, draftID string, amountCents int64, description string) (string, string, error) {
	if !c.enabled {
		return "", "", fmt.Errorf("payments disabled (missing STRIPE_SECRET_KEY)")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String(description),
	}
	params.Context = ctx
	params.AddMetadata("draft_id", draftID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe payment intent: %w", err)
	}

	logger.InfoContext(ctx, "Payment intent created", "intent_id", pi.ID, "amount_cents", amountCents, "draft_id", draftID)
	return pi.ID, pi.ClientSecret, nil
}

// Refund issues a full refund against a payment intent.
func (c *StripeClient) Refund(ctx context.Context, paymentIntentID string) error {
	if !c.enabled {
		return fmt.Errorf("payments disabled (missing STRIPE_SECRET_KEY)")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx

	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("stripe refund: %w", err)
	}

	logger.InfoContext(ctx, "Payment refunded", "intent_id", paymentIntentID)
	return nil
}
