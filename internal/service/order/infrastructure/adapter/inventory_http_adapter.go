package adapter

import (
	"context"

	"github.com/pkg/errors"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
)

// InventoryHTTPAdapter implements port.InventoryService against the inventory
// system's HTTP API. Reservation and release are keyed by order ID, which the
// inventory system uses to keep both idempotent.
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

func NewInventoryHTTPAdapter(client *httpclient.Client, baseURL string) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, baseURL: baseURL}
}

type inventoryLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type inventoryRequest struct {
	OrderID string          `json:"orderId,omitempty"`
	Lines   []inventoryLine `json:"lines"`
}

type inventoryResponse struct {
	OK bool `json:"ok"`
}

func lines(items []domain.OrderItem) []inventoryLine {
	agg := make(map[string]int, len(items))
	for _, item := range items {
		agg[item.ProductID] += item.Quantity
	}
	out := make([]inventoryLine, 0, len(agg))
	for productID, qty := range agg {
		out = append(out, inventoryLine{ProductID: productID, Quantity: qty})
	}
	return out
}

func (a *InventoryHTTPAdapter) CheckAvailability(ctx context.Context, items []domain.OrderItem) (bool, error) {
	var resp inventoryResponse
	if err := a.client.PostJSON(ctx, a.baseURL+"/inventory/check", inventoryRequest{Lines: lines(items)}, &resp); err != nil {
		return false, errors.Wrap(err, "check availability")
	}
	return resp.OK, nil
}

func (a *InventoryHTTPAdapter) ReserveInventory(ctx context.Context, order *domain.Order) (bool, error) {
	req := inventoryRequest{OrderID: order.ID, Lines: lines(order.Items)}
	var resp inventoryResponse
	if err := a.client.PostJSON(ctx, a.baseURL+"/inventory/reserve", req, &resp); err != nil {
		return false, errors.Wrapf(err, "reserve inventory for order %s", order.ID)
	}
	return resp.OK, nil
}

func (a *InventoryHTTPAdapter) ReleaseInventory(ctx context.Context, order *domain.Order) error {
	req := inventoryRequest{OrderID: order.ID, Lines: lines(order.Items)}
	if err := a.client.PostJSON(ctx, a.baseURL+"/inventory/release", req, nil); err != nil {
		return errors.Wrapf(err, "release inventory for order %s", order.ID)
	}
	return nil
}
