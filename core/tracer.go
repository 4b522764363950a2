package core

import (
	"sync"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/bgpr/state"
)

// RouteEvent is published whenever an AS selects a new route.
type RouteEvent struct {
	Round  int
	Asn    state.Asn
	Prefix string
	Old    *state.Announcement
	New    state.Announcement
}

// Tracer fans route events out to every registered observer.
type Tracer struct {
	broadcast.Broadcaster
	done      chan struct{}
	closeOnce sync.Once
}

func NewTracer() *Tracer {
	return &Tracer{
		Broadcaster: broadcast.NewBroadcaster(state.TracerBuffer),
		done:        make(chan struct{}),
	}
}

// Subscribe registers a channel that receives every RouteEvent until Unsubscribe or Close.
func (t *Tracer) Subscribe(ch chan interface{}) {
	t.Register(ch)
}

func (t *Tracer) Unsubscribe(ch chan interface{}) {
	t.Unregister(ch)
}

// Publish must not be called after Close.
func (t *Tracer) Publish(ev RouteEvent) {
	t.Submit(ev)
}

// Done is closed once the tracer is closed.
func (t *Tracer) Done() <-chan struct{} {
	return t.done
}

func (t *Tracer) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.Broadcaster.Close()
		close(t.done)
	})
	return err
}
