package store

import (
	"time"

	"github.com/MidhunPalanisamy/Regression-Testing-Dashboard/pkg/results"
)

// User source constants.
const (
	SourceConfig = "config"
	SourceAdmin  = "admin"
)

// Build is a versioned batch of test results.
type Build struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Version     string    `gorm:"not null" json:"version"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (b *Build) toResult() *results.Build {
	return &results.Build{
		ID:          b.ID,
		Version:     b.Version,
		Description: b.Description,
		CreatedAt:   b.CreatedAt,
	}
}

// TestCase is a stored test outcome. BuildID is nil for test cases created
// without a build.
type TestCase struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Name        string   `gorm:"not null;index" json:"name"`
	Module      string   `json:"module"`
	Description string   `json:"description"`
	Status      string   `gorm:"not null;index" json:"status"`
	Duration    *float64 `json:"duration"`
	BuildID     *uint    `gorm:"index" json:"buildId"`
}

func (tc *TestCase) toRecord() results.Record {
	r := results.Record{
		ID:          tc.ID,
		TestName:    tc.Name,
		Module:      tc.Module,
		Description: tc.Description,
		Outcome:     results.Outcome(tc.Status),
		Duration:    tc.Duration,
	}

	if tc.BuildID != nil {
		r.BuildID = *tc.BuildID
	}

	return r
}

// RegressionRun is a stored snapshot of a build's aggregate counts.
type RegressionRun struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	BuildID    uint      `gorm:"not null;index" json:"buildId"`
	TotalTests int       `json:"totalTests"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	ExecutedAt time.Time `gorm:"not null;index" json:"executedAt"`
}

// User represents an authenticated user in the system.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null" json:"role"`
	Source       string    `gorm:"not null" json:"source"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session represents an active user session.
type Session struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"uniqueIndex;not null" json:"-"`
	UserID       uint       `gorm:"not null" json:"user_id"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// IngestedFile is a ledger entry for a result file picked up from storage.
// A file is attempted once; Error is set when the import failed.
type IngestedFile struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	DiscoveryPath string    `gorm:"uniqueIndex:idx_ingest_path_key;not null" json:"discovery_path"`
	ObjectKey     string    `gorm:"uniqueIndex:idx_ingest_path_key;not null" json:"key"`
	BuildID       uint      `gorm:"not null;index" json:"build_id"`
	Records       int       `json:"records"`
	Error         string    `json:"error,omitempty"`
	IngestedAt    time.Time `gorm:"not null" json:"ingested_at"`
}
