package capture

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/keytally/keytally/internal/storage"
)

// appendWriter is the single owner of store writes: a bounded queue drained
// by one worker goroutine, so appends reach the store in capture order and
// the hook path never blocks on storage latency.
type appendWriter struct {
	store     storage.Store
	log       *zap.Logger
	queue     chan *storage.KeyEvent
	onWritten func(*storage.KeyEvent)
	wg        sync.WaitGroup
}

func newAppendWriter(store storage.Store, size int, log *zap.Logger, onWritten func(*storage.KeyEvent)) *appendWriter {
	if size <= 0 {
		size = 256
	}
	return &appendWriter{
		store:     store,
		log:       log,
		queue:     make(chan *storage.KeyEvent, size),
		onWritten: onWritten,
	}
}

// Start launches the worker goroutine.
func (w *appendWriter) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *appendWriter) run() {
	defer w.wg.Done()
	for event := range w.queue {
		if err := w.store.Append(context.Background(), event); err != nil {
			// A dropped write undercounts statistics; it must never
			// take the capture loop down with it.
			w.log.Error("append failed, event dropped",
				zap.String("key", event.KeyName),
				zap.Error(err))
			continue
		}
		if w.onWritten != nil {
			w.onWritten(event)
		}
	}
}

// Enqueue hands an event to the worker without blocking. When the queue is
// full the event is dropped and logged, and false is returned.
func (w *appendWriter) Enqueue(event *storage.KeyEvent) bool {
	select {
	case w.queue <- event:
		return true
	default:
		w.log.Warn("append queue full, event dropped",
			zap.String("key", event.KeyName))
		return false
	}
}

// Close stops accepting events and waits for the worker to drain the queue.
func (w *appendWriter) Close() {
	close(w.queue)
	w.wg.Wait()
}
