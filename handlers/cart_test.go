package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-booking-api/models"
)

func cartAddBody(scheduleID string, price int64, participants int) models.AddCartItemRequest {
	return models.AddCartItemRequest{
		ScheduleID:          scheduleID,
		TourID:              "tour-1",
		TourName:            "Valle de la Luna Sunset",
		StartDatetime:       "2026-02-10T17:00:00Z",
		NumParticipants:     participants,
		PricePerParticipant: price,
		DurationHours:       4,
	}
}

func TestCartEndpoints_AnonymousFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/cart/items", cartAddBody("s1", 10000, 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	envelope := env.envelope(rec)
	assert.Equal(t, "success", envelope.Status)
	assert.Equal(t, "Added to cart", envelope.Message)

	rec = env.do(http.MethodPost, "/api/cart/items", cartAddBody("s2", 5000, 1))
	require.Equal(t, http.StatusCreated, rec.Code)

	// The session cookie carries the cart across requests.
	rec = env.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart models.Cart
	envelope = env.envelope(rec)
	require.NoError(t, jsonUnmarshal(envelope.Data, &cart))
	require.Len(t, cart.Items, 2)
	assert.Equal(t, models.CartModeLocal, cart.Mode)
	assert.Equal(t, int64(25000), cart.CartTotal)

	rec = env.do(http.MethodDelete, "/api/cart/items/"+cart.Items[0].ItemID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	envelope = env.envelope(rec)
	require.NoError(t, jsonUnmarshal(envelope.Data, &cart))
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int64(5000), cart.CartTotal)
}

func TestCartEndpoints_PostCartAliasesAddItem(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/cart", cartAddBody("s1", 10000, 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart models.Cart
	require.NoError(t, jsonUnmarshal(env.envelope(rec).Data, &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(20000), cart.CartTotal)
}

func TestCartEndpoints_AddItemValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/cart/items", map[string]interface{}{"tour_id": "tour-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schedule_id is required", env.envelope(rec).Message)

	rec = env.do(http.MethodPost, "/api/cart/items", cartAddBody("s1", 10000, 0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartEndpoints_SeparateSessionsAreIsolated(t *testing.T) {
	envA := newTestEnv(t)
	envB := newTestEnv(t)

	rec := envA.do(http.MethodPost, "/api/cart/items", cartAddBody("s1", 10000, 2))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = envB.do(http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart models.Cart
	require.NoError(t, jsonUnmarshal(envB.envelope(rec).Data, &cart))
	assert.Empty(t, cart.Items)
}
