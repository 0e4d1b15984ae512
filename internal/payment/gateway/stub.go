package gateway

import (
	"context"
	"encoding/json"
)

// Stub pretends every payment succeeds. Used in development and tests.
type Stub struct {
	returnURL string
}

func NewStub(returnURL string) *Stub {
	return &Stub{returnURL: returnURL}
}

func (s *Stub) Name() string {
	return "stub"
}

func (s *Stub) CreatePayment(_ context.Context, req CreateRequest) (*CreateResult, error) {
	return &CreateResult{
		ConfirmationURL: s.returnURL,
		Status:          "succeeded",
	}, nil
}

func (s *Stub) ParseWebhook(raw []byte) (*WebhookResult, error) {
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
		status = "succeeded"
	}

	return &WebhookResult{
		OrderID:           payload.OrderID,
		Status:            status,
		ProviderPaymentID: payload.ProviderPaymentID,
	}, nil
}
