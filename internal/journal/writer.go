package journal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"stockex/internal/exchange"
)

var (
	ErrQueueFull      = errors.New("journal queue full")
	ErrClosed         = errors.New("journal writer closed")
	ErrNotStarted     = errors.New("journal writer not started")
	ErrAlreadyStarted = errors.New("journal writer already started")
)

// Writer buffers fills and writes them to a Store in batches from a single
// goroutine. Record never blocks the caller; a failed batch is logged and
// dropped so that trading never waits on the database.
type Writer struct {
	cfg   Config
	store Store
	ch    chan FillRecord
	wg    sync.WaitGroup

	// mu orders sends on ch against close(ch).
	mu sync.RWMutex

	started atomic.Bool
	closed  atomic.Bool
	written atomic.Int64
	dropped atomic.Int64
}

var _ exchange.Journal = (*Writer)(nil)

// NewWriter creates a writer over store.
func NewWriter(cfg Config, store Store) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("journal store is nil")
	}
	return &Writer{
		cfg:   cfg,
		store: store,
		ch:    make(chan FillRecord, cfg.QueueSize),
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Record enqueues one fill.
func (w *Writer) Record(_ context.Context, f exchange.Fill) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed.Load() {
		return ErrClosed
	}
	if !w.started.Load() {
		return ErrNotStarted
	}
	select {
	case w.ch <- recordOf(f):
		return nil
	default:
		w.dropped.Add(1)
		return ErrQueueFull
	}
}

// Close stops accepting fills and waits until the queued ones are written.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed.CompareAndSwap(false, true) {
		close(w.ch)
	}
	w.mu.Unlock()
	w.wg.Wait()
	return nil
}

// Written returns how many fills reached the store.
func (w *Writer) Written() int64 { return w.written.Load() }

// Dropped returns how many fills were lost to a full queue or a failed batch.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

func (w *Writer) run(ctx context.Context) {
	batch := make([]FillRecord, 0, w.cfg.BatchSize)
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := w.store.Insert(ctx, batch); err != nil {
			w.dropped.Add(int64(len(batch)))
			logs.Errorf("journal: %d fills lost, err: %+v", len(batch), err)
		} else {
			w.written.Add(int64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			w.drain(&batch)
			flush(context.WithoutCancel(ctx))
			return
		case rec, ok := <-w.ch:
			if !ok {
				flush(context.WithoutCancel(ctx))
				return
			}
			batch = append(batch, rec)
			if len(batch) >= w.cfg.BatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (w *Writer) drain(batch *[]FillRecord) {
	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			*batch = append(*batch, rec)
		default:
			return
		}
	}
}
