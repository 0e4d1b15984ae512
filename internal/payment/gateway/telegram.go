package gateway

import (
	"context"
	"encoding/json"
)

// Telegram covers Bot API invoice payments. Invoices are created by the
// bot itself, so the backend only issues order identifiers and accepts
// confirmation callbacks relayed by the bot; no confirmation URL exists.
type Telegram struct{}

func NewTelegram() *Telegram {
	return &Telegram{}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) CreatePayment(_ context.Context, req CreateRequest) (*CreateResult, error) {
	return &CreateResult{Status: "pending"}, nil
}

func (t *Telegram) ParseWebhook(raw []byte) (*WebhookResult, error) {
	var payload struct {
		OrderID           string `json:"order_id"`
		Status            string `json:"status"`
		ProviderPaymentID string `json:"provider_payment_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	status := payload.Status
	if status == "" {
		status = "paid"
	}

	return &WebhookResult{
		OrderID:           payload.OrderID,
		Status:            status,
		ProviderPaymentID: payload.ProviderPaymentID,
	}, nil
}
