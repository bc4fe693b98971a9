package localstore

import (
	"time"

	"github.com/alexanderramin/smartplan/internal/domain"
)

// LastGoalKey is the key holding the most recently generated plan.
const LastGoalKey = "lastGoal"

// LastGoalEntry is the stored form of the last plan.
type LastGoalEntry struct {
	GoalPlan  domain.GoalPlan `json:"goalPlan"`
	Timestamp int64           `json:"timestamp"` // unix millis
}

// SavedAt returns the entry's timestamp.
func (e LastGoalEntry) SavedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// LastGoal reads and writes the last-plan entry of a Store.
type LastGoal struct {
	store *Store
	now   func() time.Time
}

// NewLastGoal returns a LastGoal backed by store.
func NewLastGoal(store *Store) *LastGoal {
	return &LastGoal{store: store, now: time.Now}
}

// Save replaces the stored plan.
func (l *LastGoal) Save(plan domain.GoalPlan) error {
	return l.store.Put(LastGoalKey, LastGoalEntry{
		GoalPlan:  plan,
		Timestamp: l.now().UnixMilli(),
	})
}

// Exists reports whether a plan is stored. The value is not decoded.
func (l *LastGoal) Exists() bool {
	return l.store.Has(LastGoalKey)
}

// Load returns the stored entry, or ErrNotFound.
func (l *LastGoal) Load() (*LastGoalEntry, error) {
	var entry LastGoalEntry
	if err := l.store.Get(LastGoalKey, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
