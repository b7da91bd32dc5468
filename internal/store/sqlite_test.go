package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/emfcontracting/fieldsync/internal/model"
	"github.com/emfcontracting/fieldsync/internal/store"
	"github.com/emfcontracting/fieldsync/tests/testutil"
)

func sampleWorkOrder(number string) model.WorkOrder {
	return model.WorkOrder{
		Number:         number,
		Building:       "SCCAE - WEST COLUMBIA AIR RAMP",
		Address:        "125 Summer Lake Drive",
		City:           "West Columbia",
		State:          "SC",
		Priority:       model.PriorityHigh,
		DateEntered:    time.Date(2025, 9, 25, 18, 22, 0, 0, time.UTC),
		Description:    "Faulty Outlet or Switch",
		RequestorName:  "Lindsay Keck",
		RequestorPhone: "9719406826",
		NTE:            250,
		Status:         model.StatusPending,
	}
}

func TestCreateAndFindWorkOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	id, err := s.CreateWorkOrder(ctx, sampleWorkOrder("C2959324"))
	if err != nil {
		t.Fatalf("CreateWorkOrder() error: %v", err)
	}
	if id == "" {
		t.Fatal("CreateWorkOrder() returned empty id")
	}

	wo, err := s.FindByNumber(ctx, "C2959324")
	if err != nil {
		t.Fatalf("FindByNumber() error: %v", err)
	}

	if wo.ID != id {
		t.Errorf("ID = %q, want %q", wo.ID, id)
	}
	if wo.Building != "SCCAE - WEST COLUMBIA AIR RAMP" {
		t.Errorf("Building = %q", wo.Building)
	}
	if wo.Priority != model.PriorityHigh {
		t.Errorf("Priority = %q, want %q", wo.Priority, model.PriorityHigh)
	}
	if wo.NTE != 250 {
		t.Errorf("NTE = %v, want 250", wo.NTE)
	}
	if wo.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", wo.Status, model.StatusPending)
	}
	if wo.CreatedAt.IsZero() || wo.UpdatedAt.IsZero() {
		t.Error("CreatedAt/UpdatedAt not set")
	}
}

func TestCreateWorkOrder_Duplicate(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateWorkOrder(ctx, sampleWorkOrder("C2959324")); err != nil {
		t.Fatalf("first CreateWorkOrder() error: %v", err)
	}

	_, err := s.CreateWorkOrder(ctx, sampleWorkOrder("C2959324"))
	if err == nil {
		t.Fatal("second CreateWorkOrder() succeeded, want DuplicateError")
	}
	if !store.IsDuplicate(err) {
		t.Errorf("IsDuplicate(%v) = false, want true", err)
	}

	var dup *store.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("error %v is not a *DuplicateError", err)
	}
	if dup.Number != "C2959324" {
		t.Errorf("DuplicateError.Number = %q, want C2959324", dup.Number)
	}
}

func TestFindByNumber_NotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.FindByNumber(context.Background(), "C0000000")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindByNumber() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateWorkOrder(ctx, sampleWorkOrder("C2959324")); err != nil {
		t.Fatalf("CreateWorkOrder() error: %v", err)
	}

	if err := s.UpdateStatus(ctx, "C2959324", model.StatusEscalation); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}

	wo, err := s.FindByNumber(ctx, "C2959324")
	if err != nil {
		t.Fatalf("FindByNumber() error: %v", err)
	}
	if wo.Status != model.StatusEscalation {
		t.Errorf("Status = %q, want %q", wo.Status, model.StatusEscalation)
	}
	if wo.StatusUpdatedAt.IsZero() {
		t.Error("StatusUpdatedAt not set after status change")
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	s := testutil.NewTestStore(t)

	err := s.UpdateStatus(context.Background(), "C0000000", model.StatusCancelled)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrNotFound", err)
	}
}

func TestAppendComment(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	wo := sampleWorkOrder("C2959324")
	wo.Comments = ""
	if _, err := s.CreateWorkOrder(ctx, wo); err != nil {
		t.Fatalf("CreateWorkOrder() error: %v", err)
	}

	if err := s.AppendComment(ctx, "C2959324", "first note"); err != nil {
		t.Fatalf("AppendComment() error: %v", err)
	}
	if err := s.AppendComment(ctx, "C2959324", "second note"); err != nil {
		t.Fatalf("AppendComment() error: %v", err)
	}

	got, err := s.FindByNumber(ctx, "C2959324")
	if err != nil {
		t.Fatalf("FindByNumber() error: %v", err)
	}

	want := "first note\n\nsecond note"
	if got.Comments != want {
		t.Errorf("Comments = %q, want %q", got.Comments, want)
	}

	if err := s.AppendComment(ctx, "C0000000", "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("AppendComment(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateNTE(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateWorkOrder(ctx, sampleWorkOrder("C2959324")); err != nil {
		t.Fatalf("CreateWorkOrder() error: %v", err)
	}

	if err := s.UpdateNTE(ctx, "C2959324", 1250); err != nil {
		t.Fatalf("UpdateNTE() error: %v", err)
	}

	wo, err := s.FindByNumber(ctx, "C2959324")
	if err != nil {
		t.Fatalf("FindByNumber() error: %v", err)
	}
	if wo.NTE != 1250 {
		t.Errorf("NTE = %v, want 1250", wo.NTE)
	}

	if err := s.UpdateNTE(ctx, "C0000000", 100); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateNTE(missing) error = %v, want ErrNotFound", err)
	}
}

func TestImportRunLog(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 9, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := model.ImportRun{
			Kind:      "cycle",
			Success:   true,
			Message:   "imported 1 work order(s)",
			Fetched:   1,
			Parsed:    1,
			Created:   1,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Duration:  1500 * time.Millisecond,
		}
		if err := s.LogImportRun(ctx, run); err != nil {
			t.Fatalf("LogImportRun() error: %v", err)
		}
	}

	runs, err := s.RecentImportRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentImportRuns() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Errorf("runs not newest first: %v then %v", runs[0].StartedAt, runs[1].StartedAt)
	}
	if runs[0].Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", runs[0].Duration)
	}
	if !strings.Contains(runs[0].Message, "imported") {
		t.Errorf("Message = %q", runs[0].Message)
	}
}
