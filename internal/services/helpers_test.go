package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/partyquiz/server/internal/models"
)

// fakeSender captures frames in place of a websocket
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("socket closed")
	}
	f.frames = append(f.frames, data)
	return nil
}

// sent decodes every captured frame as a generic envelope
func (f *fakeSender) sent(t *testing.T) []map[string]interface{} {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]interface{}, 0, len(f.frames))
	for _, frame := range f.frames {
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(frame, &msg))
		out = append(out, msg)
	}
	return out
}

// sentOfType filters captured frames by envelope type
func (f *fakeSender) sentOfType(t *testing.T, eventType string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, msg := range f.sent(t) {
		if msg["type"] == eventType {
			out = append(out, msg)
		}
	}
	return out
}

// fakePhotoStore stands in for the photo-storage collaborator
type fakePhotoStore struct {
	mu     sync.Mutex
	stored int
	fail   bool
}

func (f *fakePhotoStore) Store(encoded string, deviceID models.DeviceID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errors.New("disk full")
	}
	f.stored++
	return "photos/" + string(deviceID) + ".jpg", nil
}

// connectDevice registers a fake transport and binds it to a device
func connectDevice(registry *ConnectionRegistry, deviceID models.DeviceID) (*Connection, *fakeSender) {
	sender := &fakeSender{}
	conn := registry.Register(sender)
	registry.Bind(conn.ID, deviceID)
	return conn, sender
}
