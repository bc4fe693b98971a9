package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

func validPreGoal() PreGoal {
	return PreGoal{
		What: "Run a full marathon",
		Why:  "I want to prove to myself I can do it",
		When: "2027-04-01",
	}
}

func TestValidatePreGoal_Valid(t *testing.T) {
	errs := ValidatePreGoal(validPreGoal(), fixedNow)
	assert.Empty(t, errs)
}

func TestValidatePreGoal_WhatBoundary(t *testing.T) {
	p := validPreGoal()

	p.What = strings.Repeat("a", 9)
	assert.Contains(t, ValidatePreGoal(p, fixedNow), "what")

	p.What = strings.Repeat("a", 10)
	assert.NotContains(t, ValidatePreGoal(p, fixedNow), "what")
}

func TestValidatePreGoal_WhyBoundary(t *testing.T) {
	p := validPreGoal()

	p.Why = strings.Repeat("b", 19)
	assert.Contains(t, ValidatePreGoal(p, fixedNow), "why")

	p.Why = strings.Repeat("b", 20)
	assert.NotContains(t, ValidatePreGoal(p, fixedNow), "why")
}

func TestValidatePreGoal_CountsCharactersNotBytes(t *testing.T) {
	p := validPreGoal()
	p.What = strings.Repeat("é", 10)
	assert.NotContains(t, ValidatePreGoal(p, fixedNow), "what")
}

func TestValidatePreGoal_WhenBoundary(t *testing.T) {
	p := validPreGoal()

	p.When = "2026-10-14"
	errs := ValidatePreGoal(p, fixedNow)
	assert.Contains(t, errs, "when", "today is not in the future")

	p.When = "2026-10-13"
	assert.Contains(t, ValidatePreGoal(p, fixedNow), "when")

	p.When = "2026-10-15"
	assert.NotContains(t, ValidatePreGoal(p, fixedNow), "when")
}

func TestValidatePreGoal_WhenFormat(t *testing.T) {
	p := validPreGoal()
	for _, v := range []string{"", "next year", "01/04/2027"} {
		p.When = v
		assert.Contains(t, ValidatePreGoal(p, fixedNow), "when", "input %q", v)
	}
}

func TestValidatePreGoal_ReportsEveryField(t *testing.T) {
	errs := ValidatePreGoal(PreGoal{}, fixedNow)
	assert.Len(t, errs, 3)
	assert.Contains(t, errs.Error(), "what:")
	assert.Contains(t, errs.Error(), "why:")
	assert.Contains(t, errs.Error(), "when:")
}
