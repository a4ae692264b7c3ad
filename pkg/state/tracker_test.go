package state

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/jbdevprimary/triage/pkg/task"
)

func TestGetStateCreatesFreshState(t *testing.T) {
	tr := NewTracker()
	st := tr.GetState("t1")

	if st.TaskID != "t1" {
		t.Fatalf("task id mismatch: %s", st.TaskID)
	}
	if st.CurrentLevel != task.Trivial {
		t.Fatalf("fresh state must start at level 0, got %s", st.CurrentLevel)
	}
	if st.Resolved || st.Approved {
		t.Fatal("fresh state must be unresolved and unapproved")
	}
	if len(st.Attempts) != 0 || len(st.Errors) != 0 || st.Cost != 0 {
		t.Fatal("fresh state must be zero-valued")
	}
	if st.CreatedAt.IsZero() || st.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be set")
	}
}

func TestGetStateIsIdempotent(t *testing.T) {
	tr := NewTracker()
	a := tr.GetState("t1")
	b := tr.GetState("t1")
	if a != b {
		t.Fatal("same id must yield the same state object")
	}
}

func TestMutatorsUpdateState(t *testing.T) {
	tr := NewTracker()
	tr.RecordAttempt("t1", task.Moderate)
	tr.RecordAttempt("t1", task.Moderate)
	tr.RecordError("t1", "boom")
	tr.AddCost("t1", 1.25)
	tr.SetApproval("t1", true)

	st := tr.GetState("t1")
	if got := st.AttemptsAt(task.Moderate); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if len(st.Errors) != 1 || st.Errors[0] != "boom" {
		t.Fatalf("error history mismatch: %v", st.Errors)
	}
	if math.Abs(st.Cost-1.25) > 1e-9 {
		t.Fatalf("cost mismatch: %f", st.Cost)
	}
	if !st.Approved {
		t.Fatal("approval not recorded")
	}
}

func TestLockedAccessors(t *testing.T) {
	tr := NewTracker()
	tr.SetApproval("t1", true)
	tr.AddCost("t1", 0.75)
	tr.RaiseLevel("t1", task.Moderate)
	tr.Resolve("t1")

	st := tr.GetState("t1")
	if !st.IsApproved() || !st.IsResolved() {
		t.Fatal("approval and resolution must be readable through accessors")
	}
	if got := st.Level(); got != task.Moderate {
		t.Fatalf("expected level %s, got %s", task.Moderate, got)
	}
	if math.Abs(st.SpentCost()-0.75) > 1e-9 {
		t.Fatalf("cost mismatch: %f", st.SpentCost())
	}
}

func TestEscalateClampsAtMax(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < int(task.MaxLevel)+5; i++ {
		tr.Escalate("t1")
	}
	if got := tr.GetState("t1").CurrentLevel; got != task.MaxLevel {
		t.Fatalf("expected clamp at max, got %s", got)
	}
}

func TestEscalateNeverDecreases(t *testing.T) {
	tr := NewTracker()
	prev := tr.GetState("t1").CurrentLevel
	for i := 0; i < 10; i++ {
		tr.Escalate("t1")
		cur := tr.GetState("t1").CurrentLevel
		if cur < prev {
			t.Fatalf("level decreased from %s to %s", prev, cur)
		}
		prev = cur
	}
}

func TestRaiseLevelIsMonotone(t *testing.T) {
	tr := NewTracker()
	tr.RaiseLevel("t1", task.Complex)
	tr.RaiseLevel("t1", task.Simple)
	if got := tr.GetState("t1").CurrentLevel; got != task.Complex {
		t.Fatalf("raise must not lower the level, got %s", got)
	}
	tr.RaiseLevel("t1", task.Level(99))
	if got := tr.GetState("t1").CurrentLevel; got != task.MaxLevel {
		t.Fatalf("raise must clamp, got %s", got)
	}
}

func TestResetState(t *testing.T) {
	tr := NewTracker()
	tr.RecordAttempt("t1", task.Trivial)
	tr.Resolve("t1")
	tr.ResetState("t1")

	st := tr.GetState("t1")
	if st.Resolved || st.AttemptsAt(task.Trivial) != 0 {
		t.Fatal("reset must discard all progress")
	}
}

func TestAggregates(t *testing.T) {
	tr := NewTracker()
	tr.AddCost("a", 1)
	tr.AddCost("b", 2)
	tr.Resolve("a")
	tr.GetState("c")

	if got := len(tr.AllStates()); got != 3 {
		t.Fatalf("expected 3 states, got %d", got)
	}
	unresolved := tr.UnresolvedStates()
	if len(unresolved) != 2 {
		t.Fatalf("expected 2 unresolved, got %d", len(unresolved))
	}
	if got := tr.TotalCost(); math.Abs(got-3) > 1e-9 {
		t.Fatalf("expected total cost 3, got %f", got)
	}
}

func TestConcurrentRecordAttemptSameID(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordAttempt("t1", task.Moderate)
		}()
	}
	wg.Wait()

	if got := tr.GetState("t1").AttemptsAt(task.Moderate); got != 100 {
		t.Fatalf("lost increments: %d", got)
	}
}

func TestConcurrentDifferentIDs(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", n)
			tr.RecordAttempt(id, task.Trivial)
			tr.AddCost(id, 1)
		}(i)
	}
	wg.Wait()

	if got := len(tr.AllStates()); got != 50 {
		t.Fatalf("expected 50 states, got %d", got)
	}
	if got := tr.TotalCost(); math.Abs(got-50) > 1e-9 {
		t.Fatalf("expected total 50, got %f", got)
	}
}
