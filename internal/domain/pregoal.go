package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinWhatLength = 10
	MinWhyLength  = 20

	// DateLayout is the calendar date format accepted for a target date.
	DateLayout = "2006-01-02"
)

// PreGoal is the raw goal input collected before any generation happens.
type PreGoal struct {
	What    string         `json:"what"`
	Why     string         `json:"why"`
	When    string         `json:"when"`
	Profile map[string]any `json:"profile,omitempty"`
}

// FieldErrors maps a PreGoal field name ("what", "why", "when") to the
// message shown next to that field.
type FieldErrors map[string]string

// Error joins the messages in field order so FieldErrors can be returned as
// an error value.
func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidatePreGoal checks the three user-facing fields against now. The
// target date must be strictly after the calendar date of now, so today is
// rejected and tomorrow is accepted. An empty map means the input is valid.
func ValidatePreGoal(p PreGoal, now time.Time) FieldErrors {
	errs := FieldErrors{}
	if err := ValidateWhat(p.What); err != nil {
		errs["what"] = err.Error()
	}
	if err := ValidateWhy(p.Why); err != nil {
		errs["why"] = err.Error()
	}
	if err := ValidateWhen(p.When, now); err != nil {
		errs["when"] = err.Error()
	}
	return errs
}

// ValidateWhat enforces the minimum goal description length.
func ValidateWhat(s string) error {
	if utf8.RuneCountInString(strings.TrimSpace(s)) < MinWhatLength {
		return fmt.Errorf("describe the goal in at least %d characters", MinWhatLength)
	}
	return nil
}

// ValidateWhy enforces the minimum motivation length.
func ValidateWhy(s string) error {
	if utf8.RuneCountInString(strings.TrimSpace(s)) < MinWhyLength {
		return fmt.Errorf("explain your motivation in at least %d characters", MinWhyLength)
	}
	return nil
}

// ValidateWhen requires a YYYY-MM-DD date strictly after the date of now.
func ValidateWhen(s string, now time.Time) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("pick a target date")
	}
	target, err := time.ParseInLocation(DateLayout, s, now.Location())
	if err != nil {
		return fmt.Errorf("use the YYYY-MM-DD format")
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if !target.After(today) {
		return fmt.Errorf("the target date must be in the future")
	}
	return nil
}
