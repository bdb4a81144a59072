package adapter

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
)

// PaymentHTTPAdapter implements port.PaymentService against the payment
// gateway's HTTP API.
type PaymentHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewPaymentHTTPAdapter(client *httpclient.Client, baseURL string) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client, baseURL: baseURL}
}

type paymentRequest struct {
	OrderID    string  `json:"orderId"`
	CustomerID string  `json:"customerId"`
	PaymentRef string  `json:"paymentRef"`
	Amount     float64 `json:"amount"`
}

type paymentResponse struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

func (a *PaymentHTTPAdapter) ProcessPayment(ctx context.Context, order *domain.Order) (bool, error) {
	req := paymentRequest{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		PaymentRef: order.PaymentRef,
		Amount:     order.TotalAmount,
	}
	var resp paymentResponse
	if err := a.client.PostJSON(ctx, a.baseURL+"/payments/capture", req, &resp); err != nil {
		return false, errors.Wrapf(err, "capture payment for order %s", order.ID)
	}
	return resp.Approved, nil
}

func (a *PaymentHTTPAdapter) RefundPayment(ctx context.Context, order *domain.Order, amount float64) (bool, error) {
	req := paymentRequest{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		PaymentRef: order.PaymentRef,
		Amount:     amount,
	}
	var resp paymentResponse
	if err := a.client.PostJSON(ctx, a.baseURL+"/payments/refund", req, &resp); err != nil {
		return false, errors.Wrapf(err, "refund payment for order %s", order.ID)
	}
	return resp.Approved, nil
}
