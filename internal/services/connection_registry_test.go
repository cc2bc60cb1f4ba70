package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyquiz/server/internal/models"
)

func TestConnectionRegistry_RegisterAndCount(t *testing.T) {
	registry := NewConnectionRegistry()
	assert.Equal(t, 0, registry.Count())

	conn1 := registry.Register(&fakeSender{})
	conn2 := registry.Register(&fakeSender{})

	assert.Equal(t, 2, registry.Count())
	assert.NotEqual(t, conn1.ID, conn2.ID)
	assert.Empty(t, conn1.DeviceID)
}

func TestConnectionRegistry_Bind(t *testing.T) {
	t.Run("resolves device to live connection", func(t *testing.T) {
		registry := NewConnectionRegistry()
		conn := registry.Register(&fakeSender{})

		registry.Bind(conn.ID, "d1")

		live := registry.LiveConnectionFor("d1")
		require.NotNil(t, live)
		assert.Equal(t, conn.ID, live.ID)
	})

	t.Run("rebinding same pair is a no-op", func(t *testing.T) {
		registry := NewConnectionRegistry()
		conn := registry.Register(&fakeSender{})

		registry.Bind(conn.ID, "d1")
		registry.Bind(conn.ID, "d1")

		require.NotNil(t, registry.LiveConnectionFor("d1"))
		assert.Equal(t, 1, registry.Count())
	})

	t.Run("rebinding to a different device overwrites", func(t *testing.T) {
		registry := NewConnectionRegistry()
		conn := registry.Register(&fakeSender{})

		registry.Bind(conn.ID, "d1")
		registry.Bind(conn.ID, "d2")

		assert.Nil(t, registry.LiveConnectionFor("d1"))
		require.NotNil(t, registry.LiveConnectionFor("d2"))
		assert.Equal(t, models.DeviceID("d2"), conn.DeviceID)
	})

	t.Run("newer connection wins an existing device claim", func(t *testing.T) {
		registry := NewConnectionRegistry()
		old := registry.Register(&fakeSender{})
		registry.Bind(old.ID, "d1")

		fresh := registry.Register(&fakeSender{})
		registry.Bind(fresh.ID, "d1")

		live := registry.LiveConnectionFor("d1")
		require.NotNil(t, live)
		assert.Equal(t, fresh.ID, live.ID)
	})
}

func TestConnectionRegistry_Unregister(t *testing.T) {
	t.Run("clears device lookup and fires close hook", func(t *testing.T) {
		registry := NewConnectionRegistry()

		var hookDevice models.DeviceID
		var hookConn string
		registry.OnClose(func(deviceID models.DeviceID, connectionID string) {
			hookDevice = deviceID
			hookConn = connectionID
		})

		conn := registry.Register(&fakeSender{})
		registry.Bind(conn.ID, "d1")
		registry.Unregister(conn.ID)

		assert.Nil(t, registry.LiveConnectionFor("d1"))
		assert.Equal(t, 0, registry.Count())
		assert.Equal(t, models.DeviceID("d1"), hookDevice)
		assert.Equal(t, conn.ID, hookConn)
	})

	t.Run("does not panic for unbound or unknown connections", func(t *testing.T) {
		registry := NewConnectionRegistry()
		conn := registry.Register(&fakeSender{})

		registry.Unregister(conn.ID)
		registry.Unregister(conn.ID)
		registry.Unregister("never-existed")

		assert.Equal(t, 0, registry.Count())
	})

	t.Run("stale close does not release a newer claim", func(t *testing.T) {
		registry := NewConnectionRegistry()
		old := registry.Register(&fakeSender{})
		registry.Bind(old.ID, "d1")

		fresh := registry.Register(&fakeSender{})
		registry.Bind(fresh.ID, "d1")

		// The old transport closes after the device already reconnected.
		registry.Unregister(old.ID)

		live := registry.LiveConnectionFor("d1")
		require.NotNil(t, live)
		assert.Equal(t, fresh.ID, live.ID)
	})
}
