// Package storage is the key-value persistence port behind the session
// stores. Values are JSON blobs keyed per session (anonymous_cart,
// checkout_contact, checkout_participants, checkout_step). Callers treat
// storage failures as soft: log and fall back to in-memory state.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: key not found")

const (
	KeyAnonymousCart        = "anonymous_cart"
	KeyCheckoutContact      = "checkout_contact"
	KeyCheckoutParticipants = "checkout_participants"
	KeyCheckoutStep         = "checkout_step"
)

type Store interface {
	// Get unmarshals the value at key into out, returning ErrNotFound when
	// the key has never been set or has expired.
	Get(ctx context.Context, key string, out interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// SessionKey namespaces a logical key by session id so one Store instance
// can back every session.
func SessionKey(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}
