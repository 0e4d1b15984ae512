package gateway

import (
	"context"
	"fmt"
)

// CreateRequest describes a payment intent handed to a provider.
type CreateRequest struct {
	OrderID     string
	AmountCents int64
	Currency    string
	Description string
	ReturnURL   string
	Metadata    map[string]interface{}
}

type CreateResult struct {
	ConfirmationURL string
	Status          string
}

// WebhookResult is the provider-agnostic view of a webhook callback.
type WebhookResult struct {
	OrderID           string
	Status            string
	ProviderPaymentID string
}

// Gateway is the only surface the booking core sees of a payment
// provider; implementations are selected once at startup.
type Gateway interface {
	Name() string
	CreatePayment(ctx context.Context, req CreateRequest) (*CreateResult, error)
	ParseWebhook(raw []byte) (*WebhookResult, error)
}

func New(provider, returnURL string) (Gateway, error) {
	switch provider {
	case "stub":
		return NewStub(returnURL), nil
	case "yookassa":
		return NewYooKassa(returnURL), nil
	case "telegram":
		return NewTelegram(), nil
	default:
		return nil, fmt.Errorf("unsupported payment provider %q", provider)
	}
}
