package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
)

// BroadcastService fans host-authored events out to player transports.
// Sends to different recipients are independent: one dead socket never
// aborts delivery to the rest. Per recipient, frames go out in call order
// because each transport is a single ordered stream.
type BroadcastService struct {
	registry *ConnectionRegistry
	store    *SessionStore
	metrics  *observability.RelayMetrics // nil in tests
	logger   *observability.Logger
}

// NewBroadcastService creates a fan-out engine over the given registry and
// session store. metrics may be nil.
func NewBroadcastService(registry *ConnectionRegistry, store *SessionStore, metrics *observability.RelayMetrics) *BroadcastService {
	return &BroadcastService{
		registry: registry,
		store:    store,
		metrics:  metrics,
		logger:   observability.WithField("component", "broadcast"),
	}
}

// BroadcastToApproved sends a typed event to every approved team. Teams
// without a live transport, and teams whose send fails, end up in
// FailedDeviceIDs; neither aborts the rest of the fan-out.
func (b *BroadcastService) BroadcastToApproved(eventType string, data interface{}) models.BroadcastResult {
	frame, err := b.marshal(models.OutboundMessage{Type: eventType, Data: data})
	if err != nil {
		b.logger.Errorf("marshal %s: %v", eventType, err)
		return models.BroadcastResult{FailedDeviceIDs: []models.DeviceID{}}
	}

	result := models.BroadcastResult{FailedDeviceIDs: []models.DeviceID{}}
	for _, sess := range b.store.ListByStatus(models.StatusApproved) {
		conn := b.registry.LiveConnectionFor(sess.DeviceID)
		if conn == nil {
			result.FailedDeviceIDs = append(result.FailedDeviceIDs, sess.DeviceID)
			continue
		}
		if err := conn.Send(frame); err != nil {
			b.logger.WithField("device_id", string(sess.DeviceID)).Warnf("send %s failed: %v", eventType, err)
			result.FailedDeviceIDs = append(result.FailedDeviceIDs, sess.DeviceID)
			continue
		}
		result.SuccessCount++
	}

	if b.metrics != nil {
		b.metrics.RecordBroadcast(context.Background(), eventType, result.SuccessCount, len(result.FailedDeviceIDs))
	}
	return result
}

// SendToOne delivers a typed event to a single device's live transport
func (b *BroadcastService) SendToOne(deviceID models.DeviceID, eventType string, data interface{}) error {
	conn := b.registry.LiveConnectionFor(deviceID)
	if conn == nil {
		return models.ErrNoLiveConnection
	}

	frame, err := b.marshal(models.OutboundMessage{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	if err := conn.Send(frame); err != nil {
		if b.metrics != nil {
			b.metrics.RecordSendFailure(context.Background(), eventType)
		}
		return err
	}
	return nil
}

// SendToOthers delivers a message to every open connection except the one
// it originated from. Used for the lobby mirror events (PLAYER_JOIN,
// TEAM_PHOTO_UPDATED) so the host UI and spectators see new arrivals.
func (b *BroadcastService) SendToOthers(excludeConnectionID string, msg models.OutboundMessage) {
	frame, err := b.marshal(msg)
	if err != nil {
		b.logger.Errorf("marshal %s: %v", msg.Type, err)
		return
	}

	for _, conn := range b.registry.Connections() {
		if conn.ID == excludeConnectionID {
			continue
		}
		if err := conn.Send(frame); err != nil {
			b.logger.WithField("connection_id", conn.ID).Warnf("send %s failed: %v", msg.Type, err)
		}
	}
}

// SendToAll delivers a message to every open connection, bound or not.
// Used for DEBUG_ERROR / DEBUG_INFO diagnostics.
func (b *BroadcastService) SendToAll(msg models.OutboundMessage) {
	b.SendToOthers("", msg)
}

func (b *BroadcastService) marshal(msg models.OutboundMessage) ([]byte, error) {
	msg.Timestamp = time.Now().UnixMilli()
	return json.Marshal(msg)
}
