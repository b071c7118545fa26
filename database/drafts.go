package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tour-booking-api/models"
)

var ErrDraftNotFound = errors.New("checkout draft not found")

// Checkout drafts give resumability across browsers and devices: the wizard
// snapshot (credentials already stripped) is stored as a JSON blob keyed by
// a draft id the client keeps. Schema:
//
//	CREATE TABLE checkout_drafts (
//	    draft_id   CHAR(36) PRIMARY KEY,
//	    payload    JSON NOT NULL,
//	    created_at DATETIME NOT NULL,
//	    updated_at DATETIME NOT NULL
//	);

func (c *Connection) SaveCheckoutDraft(ctx context.Context, draft models.CheckoutDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = c.db.ExecContext(ctx, `
        INSERT INTO checkout_drafts (draft_id, payload, created_at, updated_at)
        VALUES (?, ?, NOW(), NOW())
        ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated_at = NOW()
    `, draft.DraftID, payload)
	if err != nil {
		return fmt.Errorf("failed to save checkout draft: %v", err)
	}
	return nil
}

func (c *Connection) GetCheckoutDraft(ctx context.Context, draftID string) (*models.CheckoutDraft, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM checkout_drafts WHERE draft_id = ?`, draftID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout draft: %v", err)
	}

	var draft models.CheckoutDraft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, fmt.Errorf("corrupt checkout draft %s: %v", draftID, err)
	}
	draft.DraftID = draftID
	return &draft, nil
}

func (c *Connection) DeleteCheckoutDraft(ctx context.Context, draftID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `DELETE FROM checkout_drafts WHERE draft_id = ?`, draftID)
	if err != nil {
		return fmt.Errorf("failed to delete checkout draft: %v", err)
	}
	return nil
}

// PurgeStaleDrafts removes drafts untouched for longer than maxAge.
func (c *Connection) PurgeStaleDrafts(ctx context.Context, maxAge time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM checkout_drafts WHERE updated_at < ?`, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale drafts: %v", err)
	}
	return res.RowsAffected()
}
