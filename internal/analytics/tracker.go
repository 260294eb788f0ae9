package analytics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	eventQueueSize          = 1000
	batchFlushSize          = 10
	batchFlushInterval      = 5 * time.Minute
	aggressiveFlushInterval = 50 * time.Millisecond
)

// Tracker records usage events in the background with non-blocking
// writes: a full queue drops the event rather than stalling the caller
// that's actually serving a request.
type Tracker struct {
	storage    Storage
	eventQueue chan UsageEvent
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	enabled    bool
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewTracker starts a background tracker over storage. If storage fails
// to initialise, the tracker disables itself and every Track call becomes
// a no-op.
func NewTracker(s Storage, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		storage:    s,
		eventQueue: make(chan UsageEvent, eventQueueSize),
		stopChan:   make(chan struct{}),
		enabled:    true,
		logger:     logger,
	}

	if err := t.storage.Init(); err != nil {
		logger.Warn("usage tracker storage init failed, disabling", zap.Error(err))
		t.enabled = false
	}

	t.wg.Add(1)
	go t.processEvents()

	return t
}

// Track records an event without blocking the caller.
func (t *Tracker) Track(event UsageEvent) {
	if !t.isEnabled() {
		return
	}
	select {
	case t.eventQueue <- event:
	default:
		t.logger.Warn("usage tracker queue full, dropping event", zap.String("tool", event.ToolName))
	}
}

// Stop drains and flushes any pending events, then returns.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

func (t *Tracker) isEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled && t.storage != nil
}

func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(aggressiveFlushInterval)
	defer ticker.Stop()

	batch := make([]UsageEvent, 0, batchFlushSize)

	for {
		select {
		case event, ok := <-t.eventQueue:
			if !ok {
				t.flush(batch)
				return
			}
			batch = append(batch, event)
			if len(batch) >= batchFlushSize {
				t.flush(batch)
				batch = make([]UsageEvent, 0, batchFlushSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = make([]UsageEvent, 0, batchFlushSize)
			}

		case <-t.stopChan:
			for {
				select {
				case event, ok := <-t.eventQueue:
					if !ok {
						t.flush(batch)
						return
					}
					batch = append(batch, event)
					if len(batch) >= batchFlushSize {
						t.flush(batch)
						batch = make([]UsageEvent, 0, batchFlushSize)
					}
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

func (t *Tracker) flush(events []UsageEvent) {
	if len(events) == 0 {
		return
	}
	for _, event := range events {
		if err := t.storage.RecordUsage(event); err != nil {
			t.logger.Warn("failed to record usage event", zap.Error(err))
		}
	}
}
