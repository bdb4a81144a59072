package adapter

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
)

// ShippingHTTPAdapter implements port.ShippingService against the shipping
// system's HTTP API.
type ShippingHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewShippingHTTPAdapter(client *httpclient.Client, baseURL string) *ShippingHTTPAdapter {
	return &ShippingHTTPAdapter{client: client, baseURL: baseURL}
}

type shippingRequest struct {
	OrderID    string `json:"orderId"`
	TrackingID string `json:"trackingId,omitempty"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type shippingResponse struct {
	Booked bool `json:"booked"`
}

func (a *ShippingHTTPAdapter) ArrangeShipping(ctx context.Context, order *domain.Order) (bool, error) {
	req := shippingRequest{
		OrderID:    order.ID,
		Line1:      order.ShippingAddress.Line1,
		City:       order.ShippingAddress.City,
		Region:     order.ShippingAddress.Region,
		PostalCode: order.ShippingAddress.PostalCode,
		Country:    order.ShippingAddress.Country,
	}
	var resp shippingResponse
	if err := a.client.PostJSON(ctx, a.baseURL+"/shipments/arrange", req, &resp); err != nil {
		return false, errors.Wrapf(err, "arrange shipping for order %s", order.ID)
	}
	return resp.Booked, nil
}

func (a *ShippingHTTPAdapter) CancelShipping(ctx context.Context, order *domain.Order) error {
	req := shippingRequest{OrderID: order.ID, TrackingID: order.TrackingID}
	if err := a.client.PostJSON(ctx, a.baseURL+"/shipments/cancel", req, nil); err != nil {
		return errors.Wrapf(err, "cancel shipping for order %s", order.ID)
	}
	return nil
}
