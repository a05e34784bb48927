package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type typingRecorder struct {
	mutex  sync.Mutex
	events []string
}

func (r *typingRecorder) record(event string) func() {
	return func() {
		r.mutex.Lock()
		defer r.mutex.Unlock()
		r.events = append(r.events, event)
	}
}

func (r *typingRecorder) snapshot() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string(nil), r.events...)
}

func TestTypingDebounce(t *testing.T) {
	rec := &typingRecorder{}
	d := newTypingDebouncer(40*time.Millisecond, rec.record("start"), rec.record("stop"))

	for i := 0; i < 5; i++ {
		d.Keystroke()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, []string{"start"}, rec.snapshot())

	assert.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"start", "stop"}, rec.snapshot())

	d.Keystroke()
	assert.Eventually(t, func() bool {
		return len(rec.snapshot()) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"start", "stop", "start", "stop"}, rec.snapshot())
}

func TestTypingConcurrentKeystrokesStopOnce(t *testing.T) {
	rec := &typingRecorder{}
	d := newTypingDebouncer(20*time.Millisecond, rec.record("start"), rec.record("stop"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Keystroke()
		}()
	}
	wg.Wait()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"start", "stop"}, rec.snapshot())
}

func TestTypingReset(t *testing.T) {
	rec := &typingRecorder{}
	d := newTypingDebouncer(20*time.Millisecond, rec.record("start"), rec.record("stop"))

	d.Keystroke()
	d.Reset(false)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"start"}, rec.snapshot())

	d.Keystroke()
	d.Reset(true)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"start", "start", "stop"}, rec.snapshot())

	// Reset while idle emits nothing.
	d.Reset(true)
	assert.Equal(t, []string{"start", "start", "stop"}, rec.snapshot())
}
