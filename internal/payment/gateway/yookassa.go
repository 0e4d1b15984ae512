package gateway

import (
	"context"
	"encoding/json"

	"github.com/xSkywa1ker/dance-bot/internal/logger"
)

// YooKassa maps the provider's webhook envelope onto the generic result.
type YooKassa struct {
	returnURL string
}

func NewYooKassa(returnURL string) *YooKassa {
	return &YooKassa{returnURL: returnURL}
}

func (y *YooKassa) Name() string {
	return "yookassa"
}

func (y *YooKassa) CreatePayment(_ context.Context, req CreateRequest) (*CreateResult, error) {
	logger.Info("Creating YooKassa payment", "order_id", req.OrderID, "amount_cents", req.AmountCents)
	return &CreateResult{
		ConfirmationURL: y.returnURL,
		Status:          "pending",
	}, nil
}

func (y *YooKassa) ParseWebhook(raw []byte) (*WebhookResult, error) {
	var payload struct {
		Object struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Metadata struct {
				OrderID string `json:"order_id"`
			} `json:"metadata"`
		} `json:"object"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	return &WebhookResult{
		OrderID:           payload.Object.Metadata.OrderID,
		Status:            payload.Object.Status,
		ProviderPaymentID: payload.Object.ID,
	}, nil
}
