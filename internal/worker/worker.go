// Package worker implements the per-pipe background poll loop (spec §5):
// one Worker per RUNNING pipe, exponential backoff on error, reset on
// success, cooperative cancellation.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
	"github.com/arc-self/apps/pipes-service/internal/poller"
	"github.com/arc-self/apps/pipes-service/internal/processor"
)

const maxBackoffOnErrorSec = 300

// StateReporter is the registry surface a Worker (and its Manager) reports
// lifecycle transitions back through. *pipes.Registry implements it; tests
// substitute fakes. The registry in turn reaches workers only through the
// pipes.WorkerLifecycle interface, so pipes never imports this package.
type StateReporter interface {
	MarkRunning(accountID, region, name string)
	MarkStopped(accountID, region, name, reason string)
	// MarkCreateFailed reports that the worker could not be built/started
	// for a pipe whose desired state is RUNNING (spec §4.5/§7).
	MarkCreateFailed(accountID, region, name, reason string)
	// MarkStopFailed reports that a requested stop did not complete within
	// the Manager's stop timeout (spec §4.5/§7).
	MarkStopFailed(accountID, region, name, reason string)
}

// Worker owns one pipe's poll loop: poll, process, ack, sleep, repeat, until
// shut down. PIPES_POLL_INTERVAL_SEC gates the base poll interval.
type Worker struct {
	pipeName     string
	accountID    string
	region       string
	source       string
	poller       poller.Poller
	processor    *processor.EventProcessor
	reporter     StateReporter
	log          *zap.Logger
	baseInterval time.Duration

	mu       sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
}

func New(
	pipeName, accountID, region, source string,
	p poller.Poller,
	proc *processor.EventProcessor,
	reporter StateReporter,
	log *zap.Logger,
	baseInterval time.Duration,
) *Worker {
	if baseInterval <= 0 {
		baseInterval = time.Second
	}
	return &Worker{
		pipeName:     pipeName,
		accountID:    accountID,
		region:       region,
		source:       source,
		poller:       p,
		processor:    proc,
		reporter:     reporter,
		log:          log,
		baseInterval: baseInterval,
	}
}

// Start begins the poll loop in its own goroutine. Safe to call once per
// logical "start"; calling it again while already running is a no-op.
func (w *Worker) Start(parent context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop requests the poll loop exit. It does not block until the loop has
// actually exited — control-plane operations must not block on the worker
// (spec §5).
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the poll loop has exited. Used by the manager during
// process shutdown, where blocking briefly is acceptable.
func (w *Worker) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Done returns the channel that closes once the poll loop has exited, for
// callers that need to wait on it alongside a timeout (select) rather than
// blocking unconditionally the way Wait does.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		close(w.done)
		w.mu.Unlock()
	}()

	if w.reporter != nil {
		w.reporter.MarkRunning(w.accountID, w.region, w.pipeName)
	}

	errorBackoff := backoff.NewExponentialBackOff()
	errorBackoff.InitialInterval = 2 * time.Second
	errorBackoff.MaxInterval = maxBackoffOnErrorSec * time.Second
	errorBackoff.MaxElapsedTime = 0 // never give up; the worker keeps retrying until stopped
	errorBackoff.Reset()

	interval := w.baseInterval

	for {
		select {
		case <-ctx.Done():
			w.shutdown("")
			return
		default:
		}

		events, err := w.poller.Poll(ctx)
		switch {
		case err == nil:
			if sendErr := w.processBatch(ctx, events); sendErr != nil {
				w.log.Error("pipe target invocation failed",
					zap.String("pipe", w.pipeName), zap.Error(sendErr))
				interval = errorBackoff.NextBackOff()
			} else {
				errorBackoff.Reset()
				interval = w.baseInterval
			}
		case err == pipes.EmptyPollResults || isEmptyPoll(err):
			interval = w.baseInterval
		default:
			w.log.Error("error polling pipe source",
				zap.String("pipe", w.pipeName), zap.String("source", w.source), zap.Error(err))
			interval = errorBackoff.NextBackOff()
		}

		select {
		case <-ctx.Done():
			w.shutdown("")
			return
		case <-time.After(interval):
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, events []poller.PolledEvent) error {
	if len(events) == 0 {
		return nil
	}
	raw := make([][]byte, len(events))
	for i, e := range events {
		raw[i] = e.Data
	}
	if err := w.processor.Process(ctx, raw); err != nil {
		var custErr *pipes.CustomerInvocationError
		if !errors.As(err, &custErr) {
			return err
		}
		// A customer invocation error is not retried: the batch is logged
		// with its failure context and then acked, which drops it.
		w.log.Warn("dropping batch rejected by pipe target",
			zap.String("pipe", w.pipeName),
			zap.Any("failure_context", w.processor.FailureContext("CustomerInvocationError", err)))
	}
	return w.poller.Ack(ctx, events)
}

func (w *Worker) shutdown(reason string) {
	if w.reporter != nil {
		w.reporter.MarkStopped(w.accountID, w.region, w.pipeName, reason)
	}
}

func isEmptyPoll(err error) bool {
	_, ok := err.(*pipes.ErrEmptyPoll)
	return ok
}
