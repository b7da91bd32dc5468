package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/emfcontracting/fieldsync/internal/model"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("work order not found")

// DuplicateError is returned when a create would violate work-order
// number uniqueness. Expected and benign during scheduled re-scans; a
// hard rejection for manual imports.
type DuplicateError struct {
	Number string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("work order %s already exists", e.Number)
}

// IsDuplicate reports whether err (or any error in its chain) is a
// DuplicateError.
func IsDuplicate(err error) bool {
	var dup *DuplicateError
	return errors.As(err, &dup)
}

// Store is the narrow interface to the work-order record sink. No
// business logic lives behind it; the pipeline owns all decisions.
type Store interface {
	// CreateWorkOrder inserts a new record and returns its ID. The
	// sink enforces number uniqueness itself, so a race between two
	// pollers still cannot produce two records.
	CreateWorkOrder(ctx context.Context, wo model.WorkOrder) (string, error)

	// FindByNumber is the dedup guard's point lookup.
	FindByNumber(ctx context.Context, number string) (*model.WorkOrder, error)

	// UpdateStatus transitions the lifecycle status. Last write wins.
	UpdateStatus(ctx context.Context, number string, status model.LifecycleStatus) error

	// AppendComment adds an audit-trail entry to an existing record.
	AppendComment(ctx context.Context, number, comment string) error

	// UpdateNTE replaces the not-to-exceed ceiling after an approval.
	UpdateNTE(ctx context.Context, number string, nte float64) error

	// LogImportRun persists the structured summary of one pass.
	LogImportRun(ctx context.Context, run model.ImportRun) error

	// RecentImportRuns returns the latest run summaries, newest first.
	RecentImportRuns(ctx context.Context, limit int) ([]model.ImportRun, error)

	Close() error
}
