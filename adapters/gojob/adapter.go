package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-pids/adapters/gologger"
	"github.com/goliatone/go-pids/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const JobIDReconcilePage = "pids.reconcile.page"

const (
	ParamConfigID = "config_id"
	ParamAfterID  = "after_id"
)

// RetryPolicy bounds redelivery of failed reconcile pages.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       2 * time.Second,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
	}
}

// Backoff doubles BaseDelay per attempt, capped at MaxDelay. attempt is 1-based.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation. An
// empty disposition means retry. A retry on the last attempt becomes a dead
// letter when DeadLetterOnMax is set and a terminal failure otherwise. Only
// retries keep a delay.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	if out.Disposition != queue.NackDispositionRetry || out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	return out
}

// NewReconcilePageMessage builds the job message for the page after afterID.
// The idempotency key carries the cursor so every page is a distinct job.
func NewReconcilePageMessage(configID string, afterID string) *job.ExecutionMessage {
	configID = strings.TrimSpace(configID)
	afterID = strings.TrimSpace(afterID)
	return &job.ExecutionMessage{
		JobID:      JobIDReconcilePage,
		ScriptPath: JobIDReconcilePage,
		Parameters: map[string]any{
			ParamConfigID: configID,
			ParamAfterID:  afterID,
		},
		IdempotencyKey: JobIDReconcilePage + "::" + configID + "::" + afterID,
	}
}

// ConfigIDFromMessage validates a reconcile page message and returns its
// config id.
func ConfigIDFromMessage(msg *job.ExecutionMessage) (string, error) {
	if msg == nil {
		return "", core.BadInputError("gojob: execution message is required", nil)
	}
	if strings.TrimSpace(msg.JobID) != JobIDReconcilePage {
		return "", core.BadInputError(fmt.Sprintf("gojob: unexpected job id %q", msg.JobID), map[string]any{
			"job_id": msg.JobID,
		})
	}
	configID := strings.TrimSpace(fmt.Sprint(msg.Parameters[ParamConfigID]))
	if configID == "" || configID == "<nil>" {
		return "", core.BadInputError("gojob: config_id parameter is required", map[string]any{
			"job_id": msg.JobID,
		})
	}
	return configID, nil
}

type ReconcileAdvancer interface {
	AdvanceReconcile(ctx context.Context, configID string) (core.ReconcilePageResult, error)
}

type ReconcileJobRunner struct {
	service  ReconcileAdvancer
	enqueuer queue.Enqueuer
	policy   RetryPolicy
	logger   glog.Logger
}

type RunnerOption func(*ReconcileJobRunner)

func WithRetryPolicy(policy RetryPolicy) RunnerOption {
	return func(r *ReconcileJobRunner) {
		r.policy = policy
	}
}

func WithLogger(logger glog.Logger) RunnerOption {
	return func(r *ReconcileJobRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLoggerProvider takes the runner logger from provider under the reconcile
// job logger name.
func WithLoggerProvider(provider glog.LoggerProvider) RunnerOption {
	return func(r *ReconcileJobRunner) {
		if provider != nil {
			r.logger = gologger.ReconcileJobLogger(provider, r.logger)
		}
	}
}

func NewReconcileJobRunner(service ReconcileAdvancer, enqueuer queue.Enqueuer, opts ...RunnerOption) (*ReconcileJobRunner, error) {
	if service == nil {
		return nil, fmt.Errorf("gojob: reconcile service is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("gojob: enqueuer is required")
	}
	runner := &ReconcileJobRunner{
		service:  service,
		enqueuer: enqueuer,
		policy:   DefaultRetryPolicy(),
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	runner.logger = glog.Ensure(runner.logger)
	return runner, nil
}

// Start enqueues the first page of a reconcile run.
func (r *ReconcileJobRunner) Start(ctx context.Context, configID string) error {
	if r == nil || r.enqueuer == nil {
		return fmt.Errorf("gojob: reconcile runner is not configured")
	}
	if strings.TrimSpace(configID) == "" {
		return core.BadInputError("gojob: config id is required", nil)
	}
	receipt, err := r.enqueuer.Enqueue(ctx, NewReconcilePageMessage(configID, ""))
	if err != nil {
		return fmt.Errorf("gojob: enqueue first reconcile page: %w", err)
	}
	r.logger.Info("reconcile run enqueued",
		"config_id", strings.TrimSpace(configID),
		"dispatch_id", receipt.DispatchID,
	)
	return nil
}

// Run advances the persisted cursor by one page and enqueues the next page
// until the run is finished.
func (r *ReconcileJobRunner) Run(ctx context.Context, msg *job.ExecutionMessage) (core.ReconcilePageResult, error) {
	if r == nil || r.service == nil {
		return core.ReconcilePageResult{}, fmt.Errorf("gojob: reconcile runner is not configured")
	}
	configID, err := ConfigIDFromMessage(msg)
	if err != nil {
		return core.ReconcilePageResult{}, err
	}

	page, err := r.service.AdvanceReconcile(ctx, configID)
	if err != nil {
		return page, err
	}
	r.logger.Info("reconcile page advanced",
		"config_id", configID,
		"results", len(page.Results),
		"mismatches", len(page.Mismatches()),
		"progress", page.Progress,
		"finished", page.Finished,
	)
	if page.Finished {
		return page, nil
	}
	next := NewReconcilePageMessage(configID, page.Cursor.LastProcessedID)
	receipt, err := r.enqueuer.Enqueue(ctx, next)
	if err != nil {
		return page, fmt.Errorf("gojob: enqueue next reconcile page: %w", err)
	}
	r.logger.Debug("reconcile page enqueued",
		"config_id", configID,
		"after_id", page.Cursor.LastProcessedID,
		"dispatch_id", receipt.DispatchID,
	)
	return page, nil
}

// Handle runs a delivery and settles it. Conflicts are acked because another
// runner already moved the cursor. Invalid messages are dead-lettered. Other
// failures are nacked with backoff until the retry policy gives up. attempt is
// 1-based.
func (r *ReconcileJobRunner) Handle(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	_, err := r.Run(ctx, delivery.Message())
	switch {
	case err == nil:
		return delivery.Ack(ctx)
	case core.IsReconcileConflict(err):
		r.logger.Warn("reconcile page skipped, cursor moved concurrently", "error", err.Error())
		return delivery.Ack(ctx)
	case core.IsBadInput(err):
		r.logger.Error("reconcile job rejected", "error", err.Error())
		return delivery.Nack(ctx, queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      err.Error(),
		})
	}

	opts := r.policy.NormalizeAttempt(queue.NackOptions{
		Disposition: queue.NackDispositionRetry,
		Delay:       r.policy.Backoff(attempt),
		Reason:      err.Error(),
	}, attempt)
	r.logger.Warn("reconcile page failed",
		"attempt", attempt,
		"disposition", string(opts.Disposition),
		"delay", opts.Delay,
		"error", err.Error(),
	)
	return delivery.Nack(ctx, opts)
}


// ProcessNext dequeues one delivery and handles it as the given attempt.
func (r *ReconcileJobRunner) ProcessNext(ctx context.Context, dequeuer queue.Dequeuer, attempt int) error {
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is required")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	return r.Handle(ctx, delivery, attempt)
}

// ObservabilityHook reports worker lifecycle events for pids jobs through the
// logger and metrics recorder.
type ObservabilityHook struct {
	logger  glog.Logger
	metrics core.MetricsRecorder
}

func NewObservabilityHook(logger glog.Logger, metrics core.MetricsRecorder) *ObservabilityHook {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &ObservabilityHook{logger: glog.Ensure(logger), metrics: metrics}
}

func (h *ObservabilityHook) OnStart(ctx context.Context, event worker.Event) {
	h.observe(ctx, "started", event)
}

func (h *ObservabilityHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.observe(ctx, "succeeded", event)
}

func (h *ObservabilityHook) OnFailure(ctx context.Context, event worker.Event) {
	h.observe(ctx, "failed", event)
}

func (h *ObservabilityHook) OnRetry(ctx context.Context, event worker.Event) {
	h.observe(ctx, "retried", event)
}

func (h *ObservabilityHook) observe(ctx context.Context, status string, event worker.Event) {
	if h == nil {
		return
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	jobID := ""
	configID := ""
	if message != nil {
		jobID = strings.TrimSpace(message.JobID)
		if value, ok := message.Parameters[ParamConfigID].(string); ok {
			configID = strings.TrimSpace(value)
		}
	}
	tags := map[string]string{"job_id": jobID, core.TagStatus: status}
	if configID != "" {
		tags[core.TagConfigID] = configID
	}
	h.metrics.IncCounter(ctx, core.OperationCounterName("job"), 1, tags)
	if event.Duration > 0 {
		h.metrics.ObserveHistogram(ctx, core.OperationDurationName("job"), float64(event.Duration.Milliseconds()), tags)
	}

	args := []any{"job_id", jobID, "config_id", configID, "attempt", event.Attempt}
	if event.Delay > 0 {
		args = append(args, "delay", event.Delay.String())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	logger := h.logger.WithContext(ctx)
	switch status {
	case "failed":
		logger.Error("job "+status, args...)
	case "retried":
		logger.Warn("job "+status, args...)
	default:
		logger.Debug("job "+status, args...)
	}
}

var (
	_ worker.Hook       = (*ObservabilityHook)(nil)
	_ ReconcileAdvancer = (*core.Service)(nil)
)
