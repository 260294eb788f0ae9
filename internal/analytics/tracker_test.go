package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	mu      sync.Mutex
	events  []UsageEvent
	initErr error
}

func (f *fakeStorage) Init() error { return f.initErr }
func (f *fakeStorage) RecordUsage(event UsageEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
func (f *fakeStorage) GetUsageHistory(toolName string, since time.Time) ([]UsageEvent, error) {
	return nil, nil
}
func (f *fakeStorage) RecordSearch(record SearchRecord) error { return nil }
func (f *fakeStorage) Cleanup(retention time.Duration) error  { return nil }
func (f *fakeStorage) Close() error                           { return nil }

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestTrackerFlushesEventsInBackground(t *testing.T) {
	storage := &fakeStorage{}
	tracker := NewTracker(storage, nil)
	defer tracker.Stop()

	tracker.Track(UsageEvent{ToolName: "get_weather", Selected: true})

	require.Eventually(t, func() bool { return storage.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTrackerStopFlushesPendingEvents(t *testing.T) {
	storage := &fakeStorage{}
	tracker := NewTracker(storage, nil)

	for i := 0; i < 3; i++ {
		tracker.Track(UsageEvent{ToolName: "tool"})
	}
	tracker.Stop()

	assert.Equal(t, 3, storage.count())
}

func TestTrackerDisabledAfterStorageInitFailure(t *testing.T) {
	storage := &fakeStorage{initErr: assertError{}}
	tracker := NewTracker(storage, nil)
	defer tracker.Stop()

	tracker.Track(UsageEvent{ToolName: "tool"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, storage.count())
}

type assertError struct{}

func (assertError) Error() string { return "init failed" }
