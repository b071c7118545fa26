package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-booking-api/models"
	"tour-booking-api/storage"
)

func TestManager_SessionReuseAndIsolation(t *testing.T) {
	m := NewManager(nil, storage.NewMemory(), time.Hour)
	defer m.Close()

	a := m.Session("sid-a")
	require.NotNil(t, a)
	assert.Same(t, a, m.Session("sid-a"))

	b := m.Session("sid-b")
	assert.NotSame(t, a, b)

	_, err := a.Cart.AddItem(context.Background(), Identity{}, addReq("s1", 10000, 2))
	require.NoError(t, err)
	assert.Empty(t, b.Cart.Cart(context.Background()).Items)
}

func TestManager_SweepEvictsIdleSessionsAndStopsPollers(t *testing.T) {
	m := NewManager(nil, storage.NewMemory(), time.Hour)
	defer m.Close()

	s := m.Session("sid-a")
	s.Payment.StartPolling(Identity{}, "pay-1", time.Minute)
	require.True(t, s.Payment.IsPolling())

	m.mu.Lock()
	s.lastSeen = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()
	m.sweep()

	assert.False(t, s.Payment.IsPolling())
	assert.NotSame(t, s, m.Session("sid-a"))
}

func TestManager_ExpirePayment(t *testing.T) {
	m := NewManager(nil, storage.NewMemory(), time.Hour)
	defer m.Close()

	// Evicted or never-seen session: nothing to expire. The lookup must
	// not create a fresh bundle as a side effect.
	assert.False(t, m.ExpirePayment("sid-gone", "pay-1"))
	m.mu.Lock()
	assert.Empty(t, m.sessions)
	m.mu.Unlock()

	s := m.Session("sid-a")
	s.Payment.mu.Lock()
	s.Payment.current = &models.PaymentSession{PaymentID: "pay-1", Status: models.PaymentStatusPending}
	s.Payment.mu.Unlock()

	assert.True(t, m.ExpirePayment("sid-a", "pay-1"))
	assert.Equal(t, models.PaymentStatusExpired, s.Payment.Current().Status)

	// Already terminal: left alone.
	assert.False(t, m.ExpirePayment("sid-a", "pay-1"))
	assert.Equal(t, models.PaymentStatusExpired, s.Payment.Current().Status)
}

func TestManager_CloseStopsEverything(t *testing.T) {
	m := NewManager(nil, storage.NewMemory(), time.Hour)

	s := m.Session("sid-a")
	s.Payment.StartPolling(Identity{}, "pay-1", time.Minute)

	m.Close()
	assert.False(t, s.Payment.IsPolling())

	// Close is idempotent.
	m.Close()
}
