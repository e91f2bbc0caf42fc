package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

// defaultStopTimeout bounds how long Manager waits for a worker's poll loop
// to actually exit after StopWorker before reporting STOP_FAILED, mirroring
// provider.py's _stop_pipe_worker catching a failed worker.stop() call.
const defaultStopTimeout = 30 * time.Second

// key identifies a worker slot the same way the registry partitions pipes.
type key struct {
	AccountID string
	Region    string
	Name      string
}

// Manager indexes the live Worker per running pipe and implements
// pipes.WorkerLifecycle, grounded on provider.py's _pipe_workers dict plus
// its on_before_stop shutdown hook. Tracks outstanding worker goroutines with
// a conc.WaitGroup so process shutdown can wait for every loop to actually
// exit instead of merely requesting cancellation.
type Manager struct {
	factory *Factory
	log     *zap.Logger

	mu      sync.Mutex
	workers map[key]*Worker
	wg      conc.WaitGroup

	baseCtx     context.Context
	stopTimeout time.Duration
}

func NewManager(factory *Factory, log *zap.Logger, baseCtx context.Context) *Manager {
	return &Manager{
		factory:     factory,
		log:         log,
		workers:     make(map[key]*Worker),
		baseCtx:     baseCtx,
		stopTimeout: defaultStopTimeout,
	}
}

// StartWorker implements pipes.WorkerLifecycle. It builds (or reuses) the
// Worker for pipe and starts its poll loop in a tracked goroutine. A factory
// build failure reports CREATE_FAILED back to the registry instead of just
// logging, matching provider.py's _start_pipe_worker.
func (m *Manager) StartWorker(pipe *pipes.PipeEntity) {
	k := key{AccountID: pipe.AccountID, Region: pipe.Region, Name: pipe.Name}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.workers[k]; ok {
		m.wg.Go(func() {
			existing.Start(m.baseCtx)
			existing.Wait()
		})
		return
	}

	w, err := m.factory.Build(pipe)
	if err != nil {
		m.log.Error("failed to build pipe worker", zap.String("pipe", pipe.Name), zap.Error(err))
		if m.factory.Reporter != nil {
			m.factory.Reporter.MarkCreateFailed(pipe.AccountID, pipe.Region, pipe.Name, err.Error())
		}
		return
	}
	m.workers[k] = w
	m.wg.Go(func() {
		w.Start(m.baseCtx)
		w.Wait()
	})
}

// StopWorker implements pipes.WorkerLifecycle. It requests the worker's poll
// loop stop but does not wait for it — callers that need to wait use
// Shutdown. A background watch reports STOP_FAILED if the loop has not
// actually exited within stopTimeout, matching provider.py's
// _stop_pipe_worker catching a failed worker.stop() call.
func (m *Manager) StopWorker(accountID, region, name string) {
	m.mu.Lock()
	w, ok := m.workers[key{AccountID: accountID, Region: region, Name: name}]
	m.mu.Unlock()
	if !ok {
		return
	}
	w.Stop()
	go m.watchStop(accountID, region, name, w)
}

func (m *Manager) watchStop(accountID, region, name string, w *Worker) {
	select {
	case <-w.Done():
	case <-time.After(m.stopTimeout):
		m.log.Error("pipe worker did not stop within timeout",
			zap.String("pipe", name), zap.Duration("timeout", m.stopTimeout))
		if m.factory.Reporter != nil {
			m.factory.Reporter.MarkStopFailed(accountID, region, name, "worker did not stop within timeout")
		}
	}
}

// Shutdown stops every tracked worker and waits for all of their loops to
// exit, grounded on on_before_stop's "stop everything, then clear" shape.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for name, w := range m.workers {
		w.Stop()
		m.log.Info("stopping pipe worker", zap.String("pipe", name.Name))
	}
	m.workers = make(map[key]*Worker)
	m.mu.Unlock()

	m.wg.Wait()
}

var _ pipes.WorkerLifecycle = (*Manager)(nil)
