package player

import (
	"sync"
	"time"
)

// subscriptions is the per-mount table of surface event handlers. It is
// released exactly once
type subscriptions struct {
	unsubscribe map[EventType]func()
	once        sync.Once
}

func subscribe(s Surface, handlers map[EventType]func(MediaEvent)) *subscriptions {
	subs := &subscriptions{unsubscribe: make(map[EventType]func(), len(handlers))}
	for t, fn := range handlers {
		subs.unsubscribe[t] = s.Subscribe(t, fn)
	}
	return subs
}

func (s *subscriptions) release() {
	s.once.Do(func() {
		for t, unsub := range s.unsubscribe {
			if unsub != nil {
				unsub()
			}
			delete(s.unsubscribe, t)
		}
	})
}

// interactLocked shows the controls and restarts the auto-hide delay
func (c *Controller) interactLocked() {
	c.controlsVisible = true
	c.scheduleHideLocked()
}

// showControlsLocked pins the controls on screen until the next interaction
func (c *Controller) showControlsLocked() {
	c.controlsVisible = true
	c.stopHideLocked()
}

func (c *Controller) scheduleHideLocked() {
	c.stopHideLocked()
	if c.state != StatePlaying || c.menu != MenuNone || c.viewport.Presentation() == PresentationNative {
		return
	}
	seq := c.hideSeq
	c.hideTimer = c.clock.AfterFunc(AutoHideDelay, func() { c.hideControls(seq) })
}

func (c *Controller) stopHideLocked() {
	c.hideSeq++
	if c.hideTimer != nil {
		c.hideTimer.Stop()
		c.hideTimer = nil
	}
}

func (c *Controller) hideControls(seq uint64) {
	c.mu.Lock()
	defer c.unlock()

	if seq != c.hideSeq || c.state != StatePlaying || c.menu != MenuNone {
		return
	}
	c.controlsVisible = false
	c.hideTimer = nil
}

func (c *Controller) showIndicatorLocked(kind IndicatorKind, value float64, ttl time.Duration) {
	c.indicators[kind] = &Indicator{Kind: kind, Value: value}
	c.indicatorSeq[kind]++
	if t := c.indicatorTimers[kind]; t != nil {
		t.Stop()
	}
	seq := c.indicatorSeq[kind]
	c.indicatorTimers[kind] = c.clock.AfterFunc(ttl, func() { c.clearIndicator(kind, seq) })
}

func (c *Controller) clearIndicator(kind IndicatorKind, seq uint64) {
	c.mu.Lock()
	defer c.unlock()

	if seq != c.indicatorSeq[kind] {
		return
	}
	c.indicators[kind] = nil
	c.indicatorTimers[kind] = nil
}

func (c *Controller) stopTimersLocked() {
	c.stopHideLocked()
	for kind := range c.indicators {
		c.indicatorSeq[kind]++
		if t := c.indicatorTimers[kind]; t != nil {
			t.Stop()
		}
		c.indicators[kind] = nil
		c.indicatorTimers[kind] = nil
	}
}
