package trace

import (
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Heartbeat emits a driver-scope event every interval. Heartbeats with no
// span ends between them mean the session is stuck.
type Heartbeat struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartHeartbeat returns nil when tracer is disabled or interval <= 0.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go h.run(tracer, interval)
	return h
}

func (h *Heartbeat) run(tracer Tracer, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()
	for beat := 1; ; beat++ {
		select {
		case <-h.stop:
			return
		case now := <-ticker.C:
			tracer.Emit(&Event{
				Time:   now,
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				GID:    getGoroutineID(),
				Name:   "heartbeat",
				Detail: fmt.Sprintf("#%d up %s goroutines=%d", beat, now.Sub(start).Round(time.Millisecond), runtime.NumGoroutine()),
			})
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. Safe on nil and
// when called twice.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
