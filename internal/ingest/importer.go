// Package ingest orchestrates the mailbox-to-record-store pipeline:
// scheduled import cycles, label reconciliation, manual single-number
// imports, and the diagnostics report.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/emfcontracting/fieldsync/internal/classify"
	"github.com/emfcontracting/fieldsync/internal/decode"
	"github.com/emfcontracting/fieldsync/internal/extract"
	"github.com/emfcontracting/fieldsync/internal/mail"
	"github.com/emfcontracting/fieldsync/internal/model"
	"github.com/emfcontracting/fieldsync/internal/store"
)

// Mailbox is the mail-source contract the pipeline depends on. The
// IMAP client satisfies it; tests substitute a fake.
type Mailbox interface {
	SelectScope(ctx context.Context, folder string, mode mail.Mode) (*mail.Scope, error)
	SearchDispatch(ctx context.Context, folder string, since time.Time, unseenOnly bool) (*mail.Scope, error)
	SearchSubject(ctx context.Context, folder, substring string, since time.Time) (*mail.Scope, error)
	Fetch(ctx context.Context, folder string, uids []imap.UID, full bool, limit int) ([]mail.RawMessage, []mail.MessageError, error)
	MarkSeen(ctx context.Context, folder string, uid imap.UID) error
	ListFolders(ctx context.Context) ([]mail.FolderInfo, error)
}

// Importer runs the ingestion flows against an injected mailbox and
// record store. Messages are processed sequentially within a pass so
// the dedup guard needs no locking; the store's uniqueness constraint
// covers any overlap between concurrent invocations.
type Importer struct {
	mailbox Mailbox
	store   store.Store
	mailCfg model.MailConfig
	cfg     model.ImportConfig
	log     *slog.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// NewImporter wires the pipeline together.
func NewImporter(
	mailbox Mailbox,
	st store.Store,
	cfg *model.AppConfig,
	log *slog.Logger,
) *Importer {
	return &Importer{
		mailbox: mailbox,
		store:   st,
		mailCfg: cfg.Mail,
		cfg:     cfg.Import,
		log:     log,
		now:     time.Now,
	}
}

// RunCycle executes one scheduled import pass: search unread dispatch
// emails, decode and extract each, and create any work order not
// already in the store. A connection-level failure aborts the cycle
// (the next scheduled run retries); a single bad message does not.
func (im *Importer) RunCycle(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{StartedAt: im.now()}
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	since := im.now().AddDate(0, 0, -im.cfg.SinceDays)
	scope, err := im.mailbox.SearchDispatch(ctx, im.mailCfg.DispatchFolder, since, true)
	if err != nil {
		summary.Message = "dispatch search failed"
		im.logRun(ctx, summary.toRun("cycle", false))
		return summary, err
	}

	if len(scope.UIDs) == 0 {
		summary.Message = "no new dispatch emails found"
		im.logRun(ctx, summary.toRun("cycle", true))
		return summary, nil
	}

	// Safety cap: a mailbox with a large unread backlog means someone
	// stopped the poller or redirected the feed. Bulk-importing it
	// unattended is worse than reporting it.
	if im.cfg.MaxCycleMessages > 0 && len(scope.UIDs) > im.cfg.MaxCycleMessages {
		summary.Skipped = len(scope.UIDs)
		summary.Message = fmt.Sprintf(
			"%d unread messages exceeds cycle cap of %d; run a manual import or clear the backlog",
			len(scope.UIDs), im.cfg.MaxCycleMessages,
		)
		im.log.Warn("cycle cap exceeded",
			"unread", len(scope.UIDs), "cap", im.cfg.MaxCycleMessages)
		im.logRun(ctx, summary.toRun("cycle", false))
		return summary, nil
	}

	msgs, msgErrs, err := im.mailbox.Fetch(
		ctx, scope.Folder, scope.UIDs, true, im.cfg.FetchLimit,
	)
	if err != nil {
		summary.Message = "fetch failed"
		im.logRun(ctx, summary.toRun("cycle", false))
		return summary, err
	}

	summary.Fetched = len(msgs)
	for _, me := range msgErrs {
		im.log.Error("message fetch failed", "subject", me.Subject, "error", me.Err)
		summary.recordError(me)
	}

	for _, msg := range msgs {
		im.processDispatch(ctx, scope.Folder, msg, summary)
	}

	summary.Message = fmt.Sprintf("imported %d work order(s)", summary.Created)
	im.logRun(ctx, summary.toRun("cycle", true))

	im.log.Info("cycle complete",
		"fetched", summary.Fetched,
		"created", summary.Created,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
	)

	return summary, nil
}

// processDispatch handles one fetched dispatch email. Every outcome is
// terminal for the message: imported, duplicate, or skipped messages
// are marked seen so the next unseen scan moves past them.
func (im *Importer) processDispatch(
	ctx context.Context,
	folder string,
	msg mail.RawMessage,
	summary *CycleSummary,
) {
	body := decode.Decode(msg.Body)

	wo, err := extract.Parse(msg.Subject, body, im.now(), "Auto-imported")
	if err != nil {
		if errors.Is(err, extract.ErrNotDispatch) {
			im.log.Debug("not a dispatch email, skipping", "subject", msg.Subject)
			summary.Skipped++
			im.markSeen(ctx, folder, msg.UID)
			return
		}
		summary.recordError(&MalformedMessageError{Subject: msg.Subject, Err: err})
		return
	}
	summary.Parsed++

	// Dedup guard: point lookup immediately before the create. The
	// store's unique constraint is the real arbiter; this avoids the
	// noise of constraint errors during routine re-scans.
	if _, err := im.store.FindByNumber(ctx, wo.Number); err == nil {
		im.log.Debug("work order already exists", "number", wo.Number)
		summary.Duplicates++
		im.markSeen(ctx, folder, msg.UID)
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		summary.recordError(&SinkError{Op: "lookup", Number: wo.Number, Err: err})
		return
	}

	if _, err := im.store.CreateWorkOrder(ctx, *wo); err != nil {
		if store.IsDuplicate(err) {
			// Lost a race with another poller; same outcome as the
			// guard catching it.
			summary.Duplicates++
			im.markSeen(ctx, folder, msg.UID)
			return
		}
		summary.recordError(&SinkError{Op: "create", Number: wo.Number, Err: err})
		return
	}

	summary.Created++
	summary.Imported = append(summary.Imported, wo.Number)
	im.markSeen(ctx, folder, msg.UID)

	im.log.Info("imported work order",
		"number", wo.Number,
		"building", wo.Building,
		"priority", wo.Priority,
		"pm", wo.PreventiveMaintenance,
	)
}

// Reconcile runs the label-to-status pass: for each configured status
// label, map unread messages to lifecycle transitions on existing work
// orders. It never creates records; numbers without a record count as
// not-found and the message is still marked seen.
func (im *Importer) Reconcile(ctx context.Context) (*ReconcileSummary, error) {
	summary := &ReconcileSummary{StartedAt: im.now()}
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	for _, label := range im.mailCfg.StatusLabels {
		status := classify.StatusOf(label)
		if status == model.StatusUnknown {
			im.log.Warn("label not in status vocabulary, skipping", "label", label)
			continue
		}

		if err := im.reconcileLabel(ctx, label, status, summary); err != nil {
			// Connection-level failure: report and let the next
			// label try; one broken folder must not block the rest.
			im.log.Error("label pass failed", "label", label, "error", err)
			summary.recordError(fmt.Errorf("label %s: %w", label, err))
		}
	}

	im.logReconcileRun(ctx, summary)

	im.log.Info("reconcile complete",
		"processed", summary.Processed,
		"updated", summary.Updated,
		"not_found", summary.NotFound,
		"errors", summary.Errors,
	)

	return summary, nil
}

func (im *Importer) reconcileLabel(
	ctx context.Context,
	label string,
	status model.LifecycleStatus,
	summary *ReconcileSummary,
) error {
	scope, err := im.mailbox.SelectScope(ctx, label, mail.ModeUnseen)
	if err != nil {
		return err
	}
	if len(scope.UIDs) == 0 {
		return nil
	}

	// Quote labels carry dollar amounts in the body; everything else
	// needs headers only.
	needBody := classify.ExtractsApprovedNTE(label) || classify.ExtractsQuoteAmount(label)

	msgs, msgErrs, err := im.mailbox.Fetch(
		ctx, scope.Folder, scope.UIDs, needBody, im.cfg.FetchLimit,
	)
	if err != nil {
		return err
	}
	for _, me := range msgErrs {
		summary.recordError(me)
	}

	for _, msg := range msgs {
		summary.Processed++
		im.processStatusEvent(ctx, scope.Folder, label, status, msg, summary)
	}

	return nil
}

// processStatusEvent applies one labeled message to its work order.
func (im *Importer) processStatusEvent(
	ctx context.Context,
	folder, label string,
	status model.LifecycleStatus,
	msg mail.RawMessage,
	summary *ReconcileSummary,
) {
	body := decode.Decode(msg.Body)

	number := extract.FindNumber(msg.Subject, body)
	if number == "" {
		summary.recordError(fmt.Errorf(
			"no work-order number in %q (label %s)", msg.Subject, label,
		))
		im.markSeen(ctx, folder, msg.UID)
		return
	}

	wo, err := im.store.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			im.log.Warn("status email for unknown work order",
				"number", number, "label", label)
			summary.NotFound++
			im.markSeen(ctx, folder, msg.UID)
			return
		}
		summary.recordError(&SinkError{Op: "lookup", Number: number, Err: err})
		return
	}

	if err := im.store.UpdateStatus(ctx, number, status); err != nil {
		summary.recordError(&SinkError{Op: "status update", Number: number, Err: err})
		return
	}

	update := StatusUpdate{Number: number, Label: label, Status: status}

	comment := fmt.Sprintf(
		"[%s] %s\nEmail: %s",
		status, im.now().In(time.UTC).Format("2006-01-02 15:04:05 MST"), msg.Subject,
	)

	if classify.ExtractsApprovedNTE(label) {
		if amount := extract.ApprovedAmount(msg.Subject, body); amount > 0 {
			if err := im.store.UpdateNTE(ctx, number, amount); err != nil {
				summary.recordError(&SinkError{Op: "NTE update", Number: number, Err: err})
			} else {
				update.ApprovedNTE = amount
				comment += fmt.Sprintf("\nNTE updated: %.2f -> %.2f", wo.NTE, amount)
			}
		}
	}
	if classify.ExtractsQuoteAmount(label) {
		if amount := extract.SubmittedAmount(msg.Subject, body); amount > 0 {
			update.QuoteAmount = amount
			comment += fmt.Sprintf("\nQuote submitted: %.2f", amount)
		}
	}

	if err := im.store.AppendComment(ctx, number, comment); err != nil {
		summary.recordError(&SinkError{Op: "comment append", Number: number, Err: err})
	}

	im.markSeen(ctx, folder, msg.UID)

	summary.Updated++
	summary.Updates = append(summary.Updates, update)

	im.log.Info("status updated",
		"number", number, "label", label, "status", status)
}

// ManualImport re-runs extraction for a single work-order number,
// searching the mailbox regardless of read status. Rejections are
// structured: DuplicateError when the record exists, ErrMessageNotFound
// when no email matches, NumberMismatchError when the email parses to a
// different number.
func (im *Importer) ManualImport(
	ctx context.Context, number string,
) (*model.WorkOrder, error) {
	if _, err := im.store.FindByNumber(ctx, number); err == nil {
		return nil, &store.DuplicateError{Number: number}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking for existing %s: %w", number, err)
	}

	since := im.now().AddDate(0, 0, -im.cfg.ManualWindowDays)
	scope, err := im.mailbox.SearchSubject(
		ctx, im.mailCfg.DispatchFolder, number, since,
	)
	if err != nil {
		return nil, err
	}
	if len(scope.UIDs) == 0 {
		return nil, ErrMessageNotFound
	}

	msgs, msgErrs, err := im.mailbox.Fetch(
		ctx, scope.Folder, scope.UIDs[:1], true, 1,
	)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		if len(msgErrs) > 0 {
			return nil, &MalformedMessageError{Subject: number, Err: msgErrs[0].Err}
		}
		return nil, ErrMessageNotFound
	}

	msg := msgs[0]
	body := decode.Decode(msg.Body)

	wo, err := extract.Parse(msg.Subject, body, im.now(), "Manually imported")
	if err != nil {
		return nil, &MalformedMessageError{Subject: msg.Subject, Err: err}
	}

	// The parsed number must match what the operator asked for; a
	// subject-substring search can catch reply chains and quotes that
	// mention a different work order.
	if wo.Number != number {
		return nil, &NumberMismatchError{Requested: number, Parsed: wo.Number}
	}

	if _, err := im.store.CreateWorkOrder(ctx, *wo); err != nil {
		return nil, err
	}
	im.markSeen(ctx, scope.Folder, msg.UID)

	im.logRun(ctx, model.ImportRun{
		Kind:      "manual",
		Success:   true,
		Message:   "manually imported " + wo.Number,
		Fetched:   1,
		Parsed:    1,
		Created:   1,
		StartedAt: im.now(),
	})

	im.log.Info("manually imported work order", "number", wo.Number)
	return wo, nil
}

// Inspect builds the read-only diagnostics report: folder inventory
// with unseen counts plus the most recent dispatch messages and their
// flags. It verifies the mailbox's shape, not the ingestion logic.
func (im *Importer) Inspect(ctx context.Context) (*MailboxReport, error) {
	folders, err := im.mailbox.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	report := &MailboxReport{Folders: folders}

	since := im.now().AddDate(0, 0, -im.cfg.SinceDays)
	scope, err := im.mailbox.SearchDispatch(
		ctx, im.mailCfg.DispatchFolder, since, false,
	)
	if err != nil {
		return report, err
	}

	msgs, _, err := im.mailbox.Fetch(
		ctx, scope.Folder, scope.UIDs, false, im.cfg.RecentCount,
	)
	if err != nil {
		return report, err
	}

	// Newest first.
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		report.Recent = append(report.Recent, RecentMessage{
			UID:     msg.UID,
			Subject: msg.Subject,
			From:    msg.From,
			Date:    msg.Date,
			Unseen:  msg.Unseen(),
		})
	}

	return report, nil
}

// markSeen flags a processed message; failures are logged, not fatal,
// since the dedup guard makes a re-scan harmless.
func (im *Importer) markSeen(ctx context.Context, folder string, uid imap.UID) {
	if err := im.mailbox.MarkSeen(ctx, folder, uid); err != nil {
		im.log.Warn("marking message seen failed", "uid", uid, "error", err)
	}
}

func (im *Importer) logRun(ctx context.Context, run model.ImportRun) {
	if err := im.store.LogImportRun(ctx, run); err != nil {
		im.log.Warn("recording import run failed", "error", err)
	}
}

func (im *Importer) logReconcileRun(ctx context.Context, s *ReconcileSummary) {
	im.logRun(ctx, model.ImportRun{
		Kind:    "reconcile",
		Success: s.Errors == 0,
		Message: fmt.Sprintf(
			"processed %d status emails, updated %d work orders", s.Processed, s.Updated,
		),
		Fetched:   s.Processed,
		Parsed:    s.Updated,
		Skipped:   s.NotFound,
		Errors:    s.Errors,
		StartedAt: s.StartedAt,
		Duration:  s.Duration,
	})
}
