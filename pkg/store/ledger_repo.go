package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jbdevprimary/triage/pkg/ledger"
)

// AppendEntry persists one cost entry.
func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) error {
	var desc sql.NullString
	if e.Description != "" {
		desc = sql.NullString{String: e.Description, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO ledger_entries (task_id, agent_id, amount, description, timestamp) VALUES (?, ?, ?, ?, ?)",
		e.TaskID, e.AgentID, e.Amount, desc, e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return nil
}

// ReplaceEntries overwrites the persisted ledger with the given entries,
// atomically.
func (s *Store) ReplaceEntries(ctx context.Context, entries []ledger.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ledger_entries"); err != nil {
		return fmt.Errorf("failed to clear ledger entries: %w", err)
	}
	for _, e := range entries {
		var desc sql.NullString
		if e.Description != "" {
			desc = sql.NullString{String: e.Description, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ledger_entries (task_id, agent_id, amount, description, timestamp) VALUES (?, ?, ?, ?, ?)",
			e.TaskID, e.AgentID, e.Amount, desc, e.Timestamp.UTC(),
		); err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger entries: %w", err)
	}
	return nil
}

// LoadEntries returns all persisted ledger entries in append order.
func (s *Store) LoadEntries(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT task_id, agent_id, amount, description, timestamp FROM ledger_entries ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e    ledger.Entry
			desc sql.NullString
			ts   time.Time
		)
		if err := rows.Scan(&e.TaskID, &e.AgentID, &e.Amount, &desc, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Description = desc.String
		e.Timestamp = ts.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}

	return entries, nil
}
