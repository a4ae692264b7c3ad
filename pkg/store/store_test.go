package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/jbdevprimary/triage/pkg/engine"
	"github.com/jbdevprimary/triage/pkg/ledger"
	"github.com/jbdevprimary/triage/pkg/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "triage.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestLedgerRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{
		{TaskID: "t1", AgentID: "cloud-agent", Amount: 1.25, Description: "first pass", Timestamp: ts},
		{TaskID: "t2", AgentID: "local-model", Amount: 0, Timestamp: ts.Add(time.Minute)},
	}
	for _, e := range entries {
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].TaskID != "t1" || got[0].AgentID != "cloud-agent" || got[0].Description != "first pass" {
		t.Fatalf("entry mismatch: %+v", got[0])
	}
	if math.Abs(got[0].Amount-1.25) > 1e-9 {
		t.Fatalf("amount mismatch: %f", got[0].Amount)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Fatalf("timestamp mismatch: %v", got[0].Timestamp)
	}
	if got[1].Description != "" {
		t.Fatalf("empty description must round-trip empty: %q", got[1].Description)
	}
}

func TestReplaceEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AppendEntry(ctx, ledger.Entry{TaskID: "old", AgentID: "a", Amount: 1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("append: %v", err)
	}

	replacement := []ledger.Entry{
		{TaskID: "new1", AgentID: "a", Amount: 2, Timestamp: time.Now()},
		{TaskID: "new2", AgentID: "b", Amount: 3, Timestamp: time.Now()},
	}
	if err := s.ReplaceEntries(ctx, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].TaskID != "new1" || got[1].TaskID != "new2" {
		t.Fatalf("replacement not applied: %+v", got)
	}
}

func TestLedgerFeedsBudgetAccounting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := s.AppendEntry(ctx, ledger.Entry{TaskID: "t1", AgentID: "cloud-agent", Amount: 600, Timestamp: now}); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := s.LoadEntries(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	led := ledger.New(1000)
	led.Load(entries)
	if led.CanAfford(1000) {
		t.Fatal("restored spend must count against today's budget")
	}
	if !led.CanAfford(400) {
		t.Fatal("remaining budget must be spendable")
	}
}

func TestResultRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res := &engine.Result{
		TaskID:    "t1",
		Success:   true,
		Level:     task.Moderate,
		AgentID:   "local-model",
		Data:      "patched",
		Attempts:  3,
		TotalCost: 0.02,
		Trail: []engine.TrailEntry{
			{Level: task.Trivial, AgentID: "lint-fix", Success: false, Error: "no fix"},
			{Level: task.Simple, Success: false, Error: engine.MsgNoAgent},
			{Level: task.Moderate, AgentID: "local-model", Success: true},
		},
	}
	if err := s.SaveResult(ctx, res); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.ResultsForTask(ctx, "t1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	r := got[0]
	if !r.Success || r.Level != task.Moderate || r.AgentID != "local-model" || r.Attempts != 3 {
		t.Fatalf("result mismatch: %+v", r)
	}
	if len(r.Trail) != 3 || r.Trail[1].Error != engine.MsgNoAgent || !r.Trail[2].Success {
		t.Fatalf("trail mismatch: %+v", r.Trail)
	}
}

func TestListResultsNewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"t1", "t2", "t3"} {
		res := &engine.Result{TaskID: id, Success: i%2 == 0, Level: task.Trivial}
		if err := s.SaveResult(ctx, res); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	got, err := s.ListResults(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].TaskID != "t3" || got[1].TaskID != "t2" {
		t.Fatalf("ordering mismatch: %+v", got)
	}

	all, err := s.ListResults(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 results, got %d", len(all))
	}
}
