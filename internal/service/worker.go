package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaerksted/ffsync/internal/adapter"
	"github.com/vaerksted/ffsync/internal/logger"
	"github.com/vaerksted/ffsync/models"
)

const taskQueueSize = 64

const taskFullCycle = "full-cycle"

type workerTask struct {
	name string
	run  func(ctx context.Context)
}

type syncWorker struct {
	engine   SyncEngine
	network  adapter.NetworkChecker
	interval time.Duration
	onCycle  func(models.CycleResult)
	log      *logger.Logger

	tasks chan workerTask

	// cyclePending is set from RequestSync until the cycle finishes, so
	// repeated requests while one is queued or running are no-ops.
	cyclePending atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncWorker creates the serialized worker in front of engine. When
// interval is positive Start also ticks a full cycle each period. onCycle,
// if non-nil, receives every completed cycle's result.
func NewSyncWorker(engine SyncEngine, network adapter.NetworkChecker, interval time.Duration, onCycle func(models.CycleResult), log *logger.Logger) SyncWorker {
	return &syncWorker{
		engine:   engine,
		network:  network,
		interval: interval,
		onCycle:  onCycle,
		log:      log,
		tasks:    make(chan workerTask, taskQueueSize),
	}
}

// Start implements SyncWorker. It stops any previously running worker,
// then launches the single goroutine that executes queued tasks in order.
func (w *syncWorker) Start(ctx context.Context) {
	w.Stop()

	w.mu.Lock()
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()

		var tick <-chan time.Time
		if w.interval > 0 {
			t := time.NewTicker(w.interval)
			defer t.Stop()
			tick = t.C
		}

		for {
			select {
			case <-workerCtx.Done():
				return
			case <-tick:
				w.RequestSync()
			case task := <-w.tasks:
				w.execute(workerCtx, task)
			}
		}
	}()
}

// Stop implements SyncWorker. Safe to call when the worker is not running.
func (w *syncWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *syncWorker) execute(ctx context.Context, task workerTask) {
	if ctx.Err() != nil {
		w.discard(task)
		return
	}

	// A full cycle is pointless without a network. One-shot pushes still
	// run: the engine records the change locally before the upload, so
	// failing fast offline never loses it.
	if task.name == taskFullCycle && !w.network.Online() {
		w.log.Info().Str("task", task.name).Msg("network unavailable, skipping sync cycle")
		w.discard(task)
		return
	}

	task.run(ctx)
}

// discard drops a task without running it. A discarded full cycle must
// release the pending flag or every later RequestSync would coalesce
// against a cycle that will never run.
func (w *syncWorker) discard(task workerTask) {
	if task.name == taskFullCycle {
		w.cyclePending.Store(false)
	}
}

func (w *syncWorker) RequestSync() {
	if !w.cyclePending.CompareAndSwap(false, true) {
		return
	}

	w.enqueue(workerTask{name: taskFullCycle, run: func(ctx context.Context) {
		defer w.cyclePending.Store(false)

		result, err := w.engine.RunCycle(ctx)
		if err != nil {
			w.log.Err(err).Msg("sync cycle aborted")
			return
		}
		if w.onCycle != nil {
			w.onCycle(result)
		}
	}})
}

func (w *syncWorker) PushHistory(item models.HistoryItem) {
	w.enqueue(workerTask{name: "push-history", run: func(ctx context.Context) {
		if err := w.engine.PushHistory(ctx, item); err != nil {
			w.log.Err(err).Str("guid", item.GUID).Msg("push history failed")
		}
	}})
}

func (w *syncWorker) PushPassword(item models.PasswordItem) {
	w.enqueue(workerTask{name: "push-password", run: func(ctx context.Context) {
		if err := w.engine.PushPassword(ctx, item); err != nil {
			w.log.Err(err).Str("guid", item.GUID).Msg("push password failed")
		}
	}})
}

func (w *syncWorker) PushBookmarks() {
	w.enqueue(workerTask{name: "push-bookmarks", run: func(ctx context.Context) {
		if err := w.engine.PushBookmarks(ctx); err != nil {
			w.log.Err(err).Msg("push bookmarks failed")
		}
	}})
}

func (w *syncWorker) RemoveBookmark(guid string) {
	w.enqueue(workerTask{name: "remove-bookmark", run: func(ctx context.Context) {
		if err := w.engine.RemoveBookmark(ctx, guid); err != nil {
			w.log.Err(err).Str("guid", guid).Msg("remove bookmark failed")
		}
	}})
}

// enqueue never blocks the caller; when the queue is saturated the task is
// dropped and logged, matching the fire-and-forget contract.
func (w *syncWorker) enqueue(task workerTask) {
	select {
	case w.tasks <- task:
	default:
		w.log.Warn().Str("task", task.name).Msg("task queue full, dropping task")
		w.discard(task)
	}
}
