package results

import (
	"strings"
	"time"
)

// Outcome is the recorded result of a single test case.
type Outcome string

// Supported outcomes.
const (
	OutcomePass    Outcome = "PASS"
	OutcomeFail    Outcome = "FAIL"
	OutcomeBlocked Outcome = "BLOCKED"
	OutcomePending Outcome = "PENDING"
)

// Outcomes lists every valid outcome in display order.
var Outcomes = []Outcome{OutcomePass, OutcomeFail, OutcomeBlocked, OutcomePending}

// ParseOutcome maps a raw status string to an Outcome, ignoring case.
// The value is not trimmed.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToUpper(s))
	if !o.Valid() {
		return "", ErrUnknownStatus
	}

	return o, nil
}

// Valid reports whether o is one of the four known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeBlocked, OutcomePending:
		return true
	default:
		return false
	}
}

// Build identifies a batch of test results, typically one software version.
type Build struct {
	ID          uint      `json:"id"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Record is one test's outcome within one build.
type Record struct {
	ID          uint     `json:"id"`
	BuildID     uint     `json:"buildId"`
	TestName    string   `json:"name"`
	Module      string   `json:"module"`
	Description string   `json:"description,omitempty"`
	Outcome     Outcome  `json:"status"`
	Duration    *float64 `json:"duration"`
}

// ImportedRow is a parsed but not yet validated row of an import file.
// Status is kept as the raw string found in the input.
type ImportedRow struct {
	TestCaseName string   `json:"testCaseName"`
	Module       string   `json:"module"`
	Status       string   `json:"status"`
	Duration     *float64 `json:"duration"`
}

// AggregateStats summarizes a record set by outcome.
type AggregateStats struct {
	Total          int64   `json:"totalTests"`
	Passed         int64   `json:"passed"`
	Failed         int64   `json:"failed"`
	Blocked        int64   `json:"blocked"`
	Pending        int64   `json:"pending"`
	PassPercentage float64 `json:"passPercentage"`
}

// StatusAbsent is reported in a comparison row for a build that has no
// record with the row's test name.
const StatusAbsent = "N/A"

// StatusChange classifies how a test's outcome moved between two builds.
type StatusChange string

// Status change classifications.
const (
	ChangeSame       StatusChange = "SAME"
	ChangeRegression StatusChange = "REGRESSION"
	ChangeFixed      StatusChange = "FIXED"
	ChangeChanged    StatusChange = "CHANGED"
)

// ComparisonRow is the per-test result of diffing two builds.
type ComparisonRow struct {
	TestName       string       `json:"testCaseName"`
	Module         string       `json:"module"`
	Status1        string       `json:"build1Status"`
	Status2        string       `json:"build2Status"`
	Duration1      *float64     `json:"build1Duration"`
	Duration2      *float64     `json:"build2Duration"`
	StatusChange   StatusChange `json:"statusChange"`
	DurationChange *float64     `json:"durationChange"`
}

// RegressionRun is a point-in-time snapshot of a build's aggregate counts.
type RegressionRun struct {
	ID         uint      `json:"id"`
	BuildID    uint      `json:"buildId"`
	TotalTests int       `json:"totalTests"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	ExecutedAt time.Time `json:"executedAt"`
}
