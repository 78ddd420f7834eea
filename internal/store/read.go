package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/escalate/internal/trace"
)

// ErrRelayNotFound is returned by ReadRelay for an unknown ID.
var ErrRelayNotFound = errors.New("relay not found")

// ListRelays returns every stored relay in insertion order.
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) ListRelays(ctx context.Context) ([]RelaySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, verdict, boot_count, digest
		FROM relays
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query relays: %w", err)
	}
	defer rows.Close()

	relays := []RelaySummary{}
	for rows.Next() {
		var r RelaySummary
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Verdict, &r.BootCount, &r.Digest); err != nil {
			return nil, fmt.Errorf("scan relay: %w", err)
		}
		relays = append(relays, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relays: %w", err)
	}
	return relays, nil
}

// ReadRelay loads one relay with its boots and ordered events.
func (s *Store) ReadRelay(ctx context.Context, id string) (*Relay, error) {
	r := &Relay{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT scenario, verdict, digest FROM relays WHERE id = ?
	`, id).Scan(&r.Scenario, &r.Verdict, &r.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read relay %s: %w", id, ErrRelayNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read relay %s: %w", id, err)
	}

	if r.Boots, err = s.readBoots(ctx, id); err != nil {
		return nil, err
	}
	if r.Events, err = s.readEvents(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

// LatestRelayID returns the most recently stored relay ID.
func (s *Store) LatestRelayID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM relays ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRelayNotFound
	}
	if err != nil {
		return "", fmt.Errorf("latest relay: %w", err)
	}
	return id, nil
}

func (s *Store) readBoots(ctx context.Context, id string) ([]Boot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, reset_info, cause, result
		FROM boots
		WHERE relay_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query boots: %w", err)
	}
	defer rows.Close()

	boots := []Boot{}
	for rows.Next() {
		var b Boot
		if err := rows.Scan(&b.Index, &b.ResetInfo, &b.Cause, &b.Result); err != nil {
			return nil, fmt.Errorf("scan boot: %w", err)
		}
		boots = append(boots, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boots: %w", err)
	}
	return boots, nil
}

func (s *Store) readEvents(ctx context.Context, id string) ([]trace.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, boot, kind, level, text
		FROM events
		WHERE relay_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []trace.Event{}
	for rows.Next() {
		var e trace.Event
		var kind string
		if err := rows.Scan(&e.Seq, &e.Boot, &kind, &e.Level, &e.Text); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = trace.Kind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
