package client

import (
	"sync"
	"time"
)

// typingDebouncer emits start on the first keystroke after idle and stop once
// no keystroke has arrived for delay. Each keystroke bumps a generation so a
// timer that fires after being superseded does nothing.
type typingDebouncer struct {
	mutex  sync.Mutex
	delay  time.Duration
	start  func()
	stop   func()
	active bool
	gen    uint64
	timer  *time.Timer
}

func newTypingDebouncer(delay time.Duration, start, stop func()) *typingDebouncer {
	return &typingDebouncer{
		delay: delay,
		start: start,
		stop:  stop,
	}
}

func (d *typingDebouncer) Keystroke() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.active {
		d.active = true
		d.start()
	}

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.expire(gen) })
}

func (d *typingDebouncer) expire(gen uint64) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if gen != d.gen || !d.active {
		return
	}
	d.active = false
	d.timer = nil
	d.stop()
}

// Reset cancels any pending stop. When emit is set and typing was active, stop is sent now.
func (d *typingDebouncer) Reset(emit bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.active && emit {
		d.stop()
	}
	d.active = false
}
