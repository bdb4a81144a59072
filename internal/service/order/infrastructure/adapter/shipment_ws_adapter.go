package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ShipmentWSAdapter implements port.ShipmentStatusNotifier by pushing tracking
// updates over a WebSocket to the shipment-status system. The connection is
// dialed lazily and redialed after a write failure; pushes are best effort and
// the caller logs, never propagates, failures.
type ShipmentWSAdapter struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewShipmentWSAdapter(url string) *ShipmentWSAdapter {
	return &ShipmentWSAdapter{url: url}
}

type trackingUpdate struct {
	OrderID    string    `json:"orderId"`
	TrackingID string    `json:"trackingId"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

func (a *ShipmentWSAdapter) PushTrackingUpdate(ctx context.Context, orderID, trackingID, status string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, err := a.connLocked(ctx)
	if err != nil {
		return err
	}

	update := trackingUpdate{
		OrderID:    orderID,
		TrackingID: trackingID,
		Status:     status,
		At:         time.Now(),
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
	if err := conn.WriteJSON(update); err != nil {
		// Drop the connection; the next push redials.
		conn.Close()
		a.conn = nil
		return errors.Wrap(err, "push tracking update")
	}
	return nil
}

func (a *ShipmentWSAdapter) connLocked(ctx context.Context) (*websocket.Conn, error) {
	if a.conn != nil {
		return a.conn, nil
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial shipment status endpoint %s", a.url)
	}
	a.conn = conn
	return conn, nil
}

// Close tears down the connection if one is open.
func (a *ShipmentWSAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
