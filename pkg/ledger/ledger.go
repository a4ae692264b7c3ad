// Package ledger records spend as an append-only log of cost entries and
// answers daily budget questions. Daily totals are always derivable from
// the entry log; a per-day cache only short-circuits the scan.
package ledger

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Entry is an immutable cost record.
type Entry struct {
	TaskID      string    `json:"task_id"`
	AgentID     string    `json:"agent_id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// DailyStats aggregates the entries of one calendar day.
type DailyStats struct {
	Total   float64
	Count   int
	ByAgent map[string]float64
}

// Ledger is safe for concurrent use. A daily budget of 0 means unlimited.
type Ledger struct {
	mu          sync.Mutex
	entries     []Entry
	dailyBudget float64

	// dayTotals caches the running total per calendar day so CanAfford
	// does not rescan the full entry log; stale days age out on their own.
	dayTotals *gocache.Cache

	now func() time.Time
}

// New creates a ledger with the given daily budget (0 = unlimited).
func New(dailyBudget float64) *Ledger {
	return &Ledger{
		dailyBudget: dailyBudget,
		dayTotals:   gocache.New(48*time.Hour, time.Hour),
		now:         time.Now,
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Record appends a cost entry. Never fails; amount may be zero.
func (l *Ledger) Record(taskID, agentID string, amount float64, description string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		TaskID:      taskID,
		AgentID:     agentID,
		Amount:      amount,
		Description: description,
		Timestamp:   l.now().UTC(),
	}
	l.entries = append(l.entries, entry)

	key := dayKey(entry.Timestamp)
	if _, found := l.dayTotals.Get(key); found {
		_, _ = l.dayTotals.IncrementFloat64(key, amount)
	} else {
		l.dayTotals.Set(key, l.sumDayLocked(entry.Timestamp), gocache.DefaultExpiration)
	}
	return entry
}

// DailyStats sums all entries whose timestamp falls on the given day.
func (l *Ledger) DailyStats(day time.Time) DailyStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := DailyStats{ByAgent: make(map[string]float64)}
	key := dayKey(day)
	for _, e := range l.entries {
		if dayKey(e.Timestamp) != key {
			continue
		}
		stats.Total += e.Amount
		stats.Count++
		stats.ByAgent[e.AgentID] += e.Amount
	}
	return stats
}

// TodayStats returns the stats for the current calendar day.
func (l *Ledger) TodayStats() DailyStats {
	return l.DailyStats(l.now())
}

// CanAfford reports whether spending amount stays within today's budget.
// Always true when the budget is unlimited.
func (l *Ledger) CanAfford(amount float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dailyBudget == 0 {
		return true
	}
	return l.todayTotalLocked()+amount <= l.dailyBudget
}

// RemainingBudget returns what may still be spent today, or +Inf when the
// budget is unlimited.
func (l *Ledger) RemainingBudget() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.dailyBudget == 0 {
		return math.Inf(1)
	}
	remaining := l.dailyBudget - l.todayTotalLocked()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SetDailyBudget changes the ceiling for subsequent CanAfford calls.
// Not retroactive: already-recorded entries are untouched.
func (l *Ledger) SetDailyBudget(n float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyBudget = n
}

// GetDailyBudget returns the configured ceiling (0 = unlimited).
func (l *Ledger) GetDailyBudget() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dailyBudget
}

// Entries returns a copy of the full entry log, in append order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Export serializes the entry log verbatim.
func (l *Ledger) Export() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.Marshal(l.entries)
}

// Import replaces the entry log with a previously exported one.
func (l *Ledger) Import(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = entries
	l.dayTotals.Flush()
	return nil
}

// Load replaces the entry log with entries restored from external storage.
func (l *Ledger) Load(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]Entry(nil), entries...)
	l.dayTotals.Flush()
}

// todayTotalLocked returns today's running total, from the cache when
// warm. Caller holds l.mu.
func (l *Ledger) todayTotalLocked() float64 {
	today := l.now().UTC()
	key := dayKey(today)
	if v, found := l.dayTotals.Get(key); found {
		if total, ok := v.(float64); ok {
			return total
		}
	}
	total := l.sumDayLocked(today)
	l.dayTotals.Set(key, total, gocache.DefaultExpiration)
	return total
}

func (l *Ledger) sumDayLocked(day time.Time) float64 {
	key := dayKey(day)
	var total float64
	for _, e := range l.entries {
		if dayKey(e.Timestamp) == key {
			total += e.Amount
		}
	}
	return total
}
