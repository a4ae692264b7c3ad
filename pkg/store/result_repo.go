package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jbdevprimary/triage/pkg/engine"
	"github.com/jbdevprimary/triage/pkg/task"
)

// SaveResult archives one routing run. The trail is stored as JSON.
func (s *Store) SaveResult(ctx context.Context, res *engine.Result) error {
	trail, err := json.Marshal(res.Trail)
	if err != nil {
		return fmt.Errorf("failed to encode trail: %w", err)
	}

	var agentID, data, errMsg sql.NullString
	if res.AgentID != "" {
		agentID = sql.NullString{String: res.AgentID, Valid: true}
	}
	if res.Data != "" {
		data = sql.NullString{String: res.Data, Valid: true}
	}
	if res.Error != "" {
		errMsg = sql.NullString{String: res.Error, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO results (task_id, success, level, agent_id, data, error, attempts, total_cost, trail) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		res.TaskID, res.Success, int(res.Level), agentID, data, errMsg, res.Attempts, res.TotalCost, string(trail),
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

// ListResults returns the most recent routing results, newest first.
// limit <= 0 means no limit.
func (s *Store) ListResults(ctx context.Context, limit int) ([]*engine.Result, error) {
	query := "SELECT task_id, success, level, agent_id, data, error, attempts, total_cost, trail FROM results ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// ResultsForTask returns every archived run for a task, newest first.
func (s *Store) ResultsForTask(ctx context.Context, taskID string) ([]*engine.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT task_id, success, level, agent_id, data, error, attempts, total_cost, trail FROM results WHERE task_id = ? ORDER BY id DESC",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for task %s: %w", taskID, err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]*engine.Result, error) {
	var results []*engine.Result
	for rows.Next() {
		var (
			res                   engine.Result
			level                 int
			agentID, data, errMsg sql.NullString
			trail                 string
		)
		if err := rows.Scan(&res.TaskID, &res.Success, &level, &agentID, &data, &errMsg, &res.Attempts, &res.TotalCost, &trail); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Level = task.Level(level)
		res.AgentID = agentID.String
		res.Data = data.String
		res.Error = errMsg.String
		if err := json.Unmarshal([]byte(trail), &res.Trail); err != nil {
			return nil, fmt.Errorf("failed to decode trail: %w", err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	return results, nil
}
