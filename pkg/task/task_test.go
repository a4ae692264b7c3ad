package task

import "testing"

func TestLevelClamp(t *testing.T) {
	if got := Level(-3).Clamp(); got != Trivial {
		t.Fatalf("expected clamp to trivial, got %s", got)
	}
	if got := Level(42).Clamp(); got != MaxLevel {
		t.Fatalf("expected clamp to max level, got %s", got)
	}
	if got := Moderate.Clamp(); got != Moderate {
		t.Fatalf("in-range level changed by clamp: %s", got)
	}
}

func TestLevelNextClampsAtMax(t *testing.T) {
	if got := MaxLevel.Next(); got != MaxLevel {
		t.Fatalf("next past max should stay at max, got %s", got)
	}
	if got := Trivial.Next(); got != Simple {
		t.Fatalf("expected simple, got %s", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"trivial", Trivial, true},
		{"EXPERT", Expert, true},
		{" moderate ", Moderate, true},
		{"4", Advanced, true},
		{"nope", Trivial, false},
		{"99", Trivial, false},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseLevel(%q): unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseLevel(%q): expected error", tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestHasLabel(t *testing.T) {
	tk := &Task{ID: "t1", Labels: []string{"approved:cloud-agent", "p1"}}
	if !tk.HasLabel("approved:cloud-agent") {
		t.Fatal("expected label match")
	}
	if tk.HasLabel("approved:") {
		t.Fatal("prefix must not match")
	}
}

func TestClassifySignals(t *testing.T) {
	tk := &Task{
		ID:          "t1",
		Description: "Fix the race condition in the connection pool",
	}
	c := Classify(tk)
	if c.Level != Complex {
		t.Fatalf("expected complex, got %s (%s)", c.Level, c.Reasoning)
	}
	if c.Reasoning == "" {
		t.Fatal("expected reasoning")
	}
}

func TestClassifyHighestSignalWins(t *testing.T) {
	tk := &Task{
		ID:          "t2",
		Description: "typo in the security policy caused data loss",
	}
	c := Classify(tk)
	if c.Level != Expert {
		t.Fatalf("expected expert, got %s (%s)", c.Level, c.Reasoning)
	}
}

func TestClassifyFallsBackToSize(t *testing.T) {
	tk := &Task{ID: "t3", Description: "something unusual"}
	c := Classify(tk)
	if c.Level < Trivial || c.Level > MaxLevel {
		t.Fatalf("level out of range: %d", c.Level)
	}
	if c.Reasoning != "no signals matched; classified by payload size" {
		t.Fatalf("unexpected reasoning: %s", c.Reasoning)
	}
}

func TestContainsPhraseWordBoundaries(t *testing.T) {
	if containsPhrase("resplinter the wood", "lint") {
		t.Fatal("matched inside a word")
	}
	if !containsPhrase("run lint, then commit", "lint") {
		t.Fatal("expected boundary match")
	}
}
