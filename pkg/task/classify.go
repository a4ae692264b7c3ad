package task

import (
	"fmt"
	"sort"
	"strings"
)

// levelSignals maps escalation levels to trigger phrases that suggest a
// task needs at least that level of capability.
var levelSignals = map[Level][]string{
	Trivial:  {"typo", "whitespace", "format", "lint", "rename"},
	Simple:   {"comment", "docstring", "log message", "constant", "config value"},
	Moderate: {"bug", "fix", "null check", "off by one", "error handling"},
	Complex:  {"refactor", "race condition", "deadlock", "memory leak", "regression"},
	Advanced: {"migrate", "redesign", "protocol", "concurrency", "performance"},
	Expert:   {"architecture", "security", "data loss", "corruption", "distributed"},
	Critical: {"outage", "incident", "production down", "emergency"},
}

type signalMatch struct {
	level   Level
	matched []string
}

// Classify produces a complexity classification for a task by scoring
// trigger phrases in its description and context, weighted by payload
// size. The engine consumes the result but never calls this itself.
func Classify(t *Task) Classification {
	text := strings.ToLower(t.Description + "\n" + t.Context)

	var matches []signalMatch
	for level, signals := range levelSignals {
		var matched []string
		for _, signal := range signals {
			if containsPhrase(text, signal) {
				matched = append(matched, signal)
			}
		}
		if len(matched) > 0 {
			matches = append(matches, signalMatch{level: level, matched: matched})
		}
	}

	if len(matches) == 0 {
		score := sizeScore(len(t.Context))
		return Classification{
			Level:     levelForScore(score),
			Score:     score,
			Reasoning: "no signals matched; classified by payload size",
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].matched) == len(matches[j].matched) {
			return matches[i].level > matches[j].level
		}
		return len(matches[i].matched) > len(matches[j].matched)
	})

	top := matches[0]
	highest := top.level
	for _, m := range matches {
		if m.level > highest {
			highest = m.level
		}
	}

	score := float64(highest)/float64(MaxLevel)*0.8 + sizeScore(len(t.Context))*0.2
	return Classification{
		Level:     highest,
		Score:     score,
		Reasoning: fmt.Sprintf("matched %s signals: %s", highest, strings.Join(top.matched, ", ")),
	}
}

func levelForScore(score float64) Level {
	return Level(score * float64(MaxLevel)).Clamp()
}

// sizeScore maps context payload size onto [0,1]; bigger diffs are
// assumed harder.
func sizeScore(n int) float64 {
	switch {
	case n < 256:
		return 0.1
	case n < 2048:
		return 0.3
	case n < 16384:
		return 0.6
	default:
		return 0.9
	}
}

// containsPhrase checks for the phrase at word boundaries, so "lint"
// does not match inside "splinter".
func containsPhrase(text, phrase string) bool {
	idx := strings.Index(text, phrase)
	if idx == -1 {
		return false
	}
	if idx > 0 && isWordChar(text[idx-1]) {
		return false
	}
	end := idx + len(phrase)
	if end < len(text) && isWordChar(text[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
