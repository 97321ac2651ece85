package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/mailchimp"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/model"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/observer"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/internal/storage"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/logger"
	"gitlab.com/skinviva/api/pabau-mailchimp-sync/pkg/utils"
)

// Pass names used in logs and metrics.
const (
	passUnsubscribes = "unsubscribes"
	passPull         = "pull"
	passPush         = "push"
)

// PabauSource is the slice of the CRM adapter the engine needs.
type PabauSource interface {
	PageSize() int
	ListClients(ctx context.Context, page int) ([]model.PabauClientPayload, error)
	ListLeads(ctx context.Context, page int) ([]model.PabauLeadPayload, error)
}

// MailchimpSink is the slice of the audience adapter the engine needs.
type MailchimpSink interface {
	ListMembers(ctx context.Context, status string) ([]mailchimp.MemberInfo, error)
	BatchSubscribe(ctx context.Context, members []mailchimp.Member) (*mailchimp.BatchResult, error)
}

// Engine runs one reconciliation cycle: three ordered passes, strictly
// sequential, each isolated so a failure in one never aborts the others.
type Engine struct {
	clients storage.ClientRepo
	leads   storage.LeadRepo
	appts   storage.AppointmentRepo
	logs    storage.SyncLogRepo
	cursors storage.CursorRepo

	source PabauSource
	sink   MailchimpSink

	pushBatchSize  int
	pushBatchPause time.Duration
}

// NewEngine wires a reconciliation engine from its collaborators.
func NewEngine(repo storage.Repository, source PabauSource, sink MailchimpSink, pushBatchSize int, pushBatchPause time.Duration) *Engine {
	if pushBatchSize <= 0 {
		pushBatchSize = 500
	}
	return &Engine{
		clients:        repo.ClientRepo(),
		leads:          repo.LeadRepo(),
		appts:          repo.AppointmentRepo(),
		logs:           repo.SyncLogRepo(),
		cursors:        repo.CursorRepo(),
		source:         source,
		sink:           sink,
		pushBatchSize:  pushBatchSize,
		pushBatchPause: pushBatchPause,
	}
}

// RunCycle executes one full cycle: unsubscribe pull, source pull, sink
// push. Pass errors are logged and collected but never stop the cycle; the
// returned error is the joined set of pass errors, nil when all passed.
func (e *Engine) RunCycle(ctx context.Context) error {
	runID := uuid.New().String()
	log := logger.FromContext(ctx).With(zap.String("run_id", runID))
	ctx = logger.WithLogger(ctx, log)

	observer.IncCycleStarted()
	log.Info("Sync cycle started")
	start := utils.Now()

	errA := e.runPass(ctx, passUnsubscribes, func(ctx context.Context) error {
		return e.syncUnsubscribes(ctx, runID)
	})
	errB := e.runPass(ctx, passPull, func(ctx context.Context) error {
		return e.pullFromPabau(ctx, runID)
	})
	errC := e.runPass(ctx, passPush, func(ctx context.Context) error {
		return e.pushToMailchimp(ctx, runID)
	})

	err := errors.Join(errA, errB, errC)
	observer.IncCycleCompleted(err)
	log.Info("Sync cycle finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("clean", err == nil))
	return err
}

// runPass isolates one pass: panics are recovered and converted to errors,
// durations are recorded, failures logged. The cycle always reaches the next
// pass.
func (e *Engine) runPass(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	start := utils.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.FromContext(ctx).Error("Sync pass panicked",
				zap.String("pass", name),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"))
			err = errors.New("pass " + name + " panicked")
		}
		observer.ObservePassDuration(name, time.Since(start))
	}()

	logger.FromContext(ctx).Info("Sync pass started", zap.String("pass", name))
	if err = fn(ctx); err != nil {
		logger.FromContext(ctx).Error("Sync pass failed",
			zap.String("pass", name),
			zap.Error(err))
		return err
	}
	logger.FromContext(ctx).Info("Sync pass completed",
		zap.String("pass", name),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// appendLog writes an audit row, logging but swallowing failures: the log is
// an audit aid, a missed entry must not fail the record it describes.
func (e *Engine) appendLog(ctx context.Context, entry *model.SyncLog) {
	if err := e.logs.Append(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("Failed to append sync log entry",
			zap.String("action", entry.Action),
			zap.String("status", entry.Status),
			zap.Error(err))
	}
}
