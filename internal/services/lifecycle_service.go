package services

import (
	"fmt"
	"time"

	"github.com/partyquiz/server/internal/models"
	"github.com/partyquiz/server/internal/observability"
)

// PhotoStore is the external collaborator that persists a raw team photo
// and hands back an opaque reference. The relay never interprets the
// reference's structure.
type PhotoStore interface {
	Store(encoded string, deviceID models.DeviceID) (string, error)
}

// LifecycleService drives the join/approve/decline state machine:
// Pending -> Approved or Pending -> Declined, with a fresh join resetting a
// Declined team back to Pending, and approved teams reconnecting without
// re-approval.
type LifecycleService struct {
	registry    *ConnectionRegistry
	store       *SessionStore
	broadcaster *BroadcastService
	photos      PhotoStore
	logger      *observability.Logger
}

// NewLifecycleService wires the controller to its collaborators
func NewLifecycleService(registry *ConnectionRegistry, store *SessionStore, broadcaster *BroadcastService, photos PhotoStore) *LifecycleService {
	return &LifecycleService{
		registry:    registry,
		store:       store,
		broadcaster: broadcaster,
		photos:      photos,
		logger:      observability.WithField("component", "lifecycle"),
	}
}

// OnJoin handles a PLAYER_JOIN from a transport. It binds the connection to
// the device, persists the photo if one was sent, upserts the session, and
// mirrors the join to every other connection so the host UI sees the
// arrival. The mirror carries the raw photo bytes for immediate preview;
// the persisted reference is what later playback uses.
//
// An already-approved device rejoining gets a direct TEAM_APPROVED push so
// its client can restore the approved view without host action.
func (l *LifecycleService) OnJoin(connectionID string, msg models.InboundMessage) models.PlayerSession {
	deviceID := models.DeviceID(msg.DeviceID)
	l.registry.Bind(connectionID, deviceID)

	var photoPath string
	if msg.TeamPhoto != "" {
		path, err := l.photos.Store(msg.TeamPhoto, deviceID)
		if err != nil {
			l.logger.WithField("device_id", msg.DeviceID).Errorf("photo persist failed on join: %v", err)
			l.broadcaster.SendToAll(models.OutboundMessage{
				Type:    models.EventDebugError,
				Message: fmt.Sprintf("failed to store photo for team %q: %v", msg.TeamName, err),
			})
		} else {
			photoPath = path
		}
	}

	sess := l.store.UpsertOnJoin(deviceID, msg.PlayerID, msg.TeamName, connectionID)
	if photoPath != "" {
		l.store.UpdatePhoto(deviceID, photoPath)
		sess.PhotoPath = photoPath
	}

	l.logger.WithFields(map[string]interface{}{
		"device_id": msg.DeviceID,
		"team":      msg.TeamName,
		"status":    string(sess.Status),
	}).Info("player joined")

	l.broadcaster.SendToOthers(connectionID, models.OutboundMessage{
		Type:      models.EventPlayerJoin,
		PlayerID:  msg.PlayerID,
		DeviceID:  msg.DeviceID,
		TeamName:  msg.TeamName,
		TeamPhoto: msg.TeamPhoto,
	})

	if sess.IsApproved() {
		// Reconnection: push current state so the client leaves the lobby.
		if err := l.broadcaster.SendToOne(deviceID, models.EventTeamApproved, models.ApprovedData{
			TeamName: sess.TeamName,
			DeviceID: msg.DeviceID,
		}); err != nil {
			l.logger.WithField("device_id", msg.DeviceID).Warnf("state push on reconnect failed: %v", err)
		}
	}

	return sess
}

// OnPhotoUpdate handles a TEAM_PHOTO_UPDATE: persist the new photo, update
// the session reference, and mirror the new reference to everyone else. On
// persistence failure the session is left untouched and a DEBUG_ERROR goes
// out instead.
func (l *LifecycleService) OnPhotoUpdate(connectionID string, msg models.InboundMessage) {
	deviceID := l.resolveDevice(connectionID, msg.DeviceID)
	if deviceID == "" {
		l.logger.Warnf("photo update from unbound connection %s", connectionID)
		return
	}

	photoPath, err := l.photos.Store(msg.PhotoData, deviceID)
	if err != nil {
		l.logger.WithField("device_id", string(deviceID)).Errorf("photo persist failed: %v", err)
		l.broadcaster.SendToAll(models.OutboundMessage{
			Type:    models.EventDebugError,
			Message: fmt.Sprintf("failed to store photo for team %q: %v", msg.TeamName, err),
		})
		return
	}

	if !l.store.UpdatePhoto(deviceID, photoPath) {
		return
	}

	l.broadcaster.SendToOthers(connectionID, models.OutboundMessage{
		Type:      models.EventTeamPhotoUpdated,
		PlayerID:  msg.PlayerID,
		DeviceID:  string(deviceID),
		TeamName:  msg.TeamName,
		PhotoPath: photoPath,
	})
}

// Approve admits a team. Liveness is checked before the status flip so a
// session can never be stuck Approved without having received its approval
// message. The TEAM_APPROVED goes to the approved device only.
func (l *LifecycleService) Approve(deviceID models.DeviceID, teamName string, displayData interface{}) error {
	if l.registry.LiveConnectionFor(deviceID) == nil {
		return models.ErrNoLiveConnection
	}

	now := time.Now().UTC()
	if !l.store.SetStatus(deviceID, models.StatusApproved, &now) {
		return models.ErrNoSession
	}

	l.logger.WithFields(map[string]interface{}{
		"device_id": string(deviceID),
		"team":      teamName,
	}).Info("team approved")

	if err := l.broadcaster.SendToOne(deviceID, models.EventTeamApproved, models.ApprovedData{
		TeamName:    teamName,
		DeviceID:    string(deviceID),
		DisplayData: displayData,
	}); err != nil {
		// Status stands; the device will get its state pushed on reconnect.
		return fmt.Errorf("approved but delivery failed: %w", err)
	}
	return nil
}

// Decline rejects a team. The record is kept (a re-decline is idempotent)
// and a later fresh join resets it to Pending.
func (l *LifecycleService) Decline(deviceID models.DeviceID, teamName string) error {
	if l.registry.LiveConnectionFor(deviceID) == nil {
		return models.ErrNoLiveConnection
	}

	if !l.store.SetStatus(deviceID, models.StatusDeclined, nil) {
		return models.ErrNoSession
	}

	l.logger.WithFields(map[string]interface{}{
		"device_id": string(deviceID),
		"team":      teamName,
	}).Info("team declined")

	if err := l.broadcaster.SendToOne(deviceID, models.EventTeamDeclined, models.DeclinedData{
		TeamName: teamName,
		DeviceID: string(deviceID),
	}); err != nil {
		return fmt.Errorf("declined but delivery failed: %w", err)
	}
	return nil
}

// resolveDevice prefers the registry binding over the client-supplied id
func (l *LifecycleService) resolveDevice(connectionID string, claimed string) models.DeviceID {
	if conn := l.registry.Get(connectionID); conn != nil && conn.DeviceID != "" {
		return conn.DeviceID
	}
	return models.DeviceID(claimed)
}
