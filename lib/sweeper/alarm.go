package sweeper

import (
	"context"
	"time"
)

type Event interface {
	Timestamp() time.Time
}

type event struct{ timestamp time.Time }

func (e event) Timestamp() time.Time { return e.timestamp }

type sweepWakeupEvent struct {
	event
}

type alarmClock struct {
	cancel      func()
	wakeupTimer *time.Ticker
	C           chan Event
}

func NewAlarmClock(wakeupInterval time.Duration) *alarmClock {
	return &alarmClock{
		wakeupTimer: time.NewTicker(wakeupInterval),
		C:           make(chan Event),
	}
}

func (a *alarmClock) Start(ctx context.Context) <-chan Event {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		immediateWakeupEvent := sweepWakeupEvent{event{time.Now().UTC()}}
		a.C <- immediateWakeupEvent

		for {
			select {
			case t := <-a.wakeupTimer.C:
				a.C <- sweepWakeupEvent{event{t.UTC()}}

			case <-ctx.Done():
				close(a.C)
				return
			}
		}
	}()

	return a.C
}

func (a *alarmClock) Stop() {
	a.cancel()
	a.wakeupTimer.Stop()
}
