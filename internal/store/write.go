package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateRelay is returned when a relay ID is already stored.
var ErrDuplicateRelay = errors.New("relay already stored")

// WriteRelay stores a relay with its boots and events in one transaction.
func (s *Store) WriteRelay(ctx context.Context, r Relay) error {
	if r.ID == "" {
		return fmt.Errorf("write relay: id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write relay: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM relays WHERE id = ?`, r.ID).Scan(&exists); err != nil {
		return fmt.Errorf("write relay: check existing: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("write relay %s: %w", r.ID, ErrDuplicateRelay)
	}

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM relays`).Scan(&next); err != nil {
		return fmt.Errorf("write relay: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO relays (id, seq, scenario, verdict, boot_count, digest)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, next, r.Scenario, r.Verdict, len(r.Boots), r.Digest)
	if err != nil {
		return fmt.Errorf("write relay: %w", err)
	}

	for _, b := range r.Boots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO boots (relay_id, idx, reset_info, cause, result)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, b.Index, b.ResetInfo, b.Cause, b.Result)
		if err != nil {
			return fmt.Errorf("write relay: boot %d: %w", b.Index, err)
		}
	}

	for _, e := range r.Events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (relay_id, seq, boot, kind, level, text)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, e.Seq, e.Boot, string(e.Kind), e.Level, e.Text)
		if err != nil {
			return fmt.Errorf("write relay: event seq %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write relay: commit: %w", err)
	}
	return nil
}
