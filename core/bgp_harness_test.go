package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/encodeous/bgpr/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// BgpHarness records every effect of the routing processes attached to it.
// Deliveries to attached processes are handed to their Receive.
type BgpHarness struct {
	mu      sync.Mutex
	procs   map[state.Asn]*RoutingProcess
	actions []HarnessEvent
}

func NewHarness() *BgpHarness {
	return &BgpHarness{procs: make(map[state.Asn]*RoutingProcess)}
}

// Attach creates a routing process for asn delivering through the harness.
func (h *BgpHarness) Attach(asn state.Asn, neighbours Neighbours) *RoutingProcess {
	proc := NewRoutingProcess(asn, neighbours, h)
	h.mu.Lock()
	h.procs[asn] = proc
	h.mu.Unlock()
	return proc
}

func (h *BgpHarness) record(ev HarnessEvent) {
	h.mu.Lock()
	h.actions = append(h.actions, ev)
	h.mu.Unlock()
}

func (h *BgpHarness) Deliver(to state.Asn, ann state.Announcement) {
	h.record(MakeEvent("DELIVER", to, ann))
	h.mu.Lock()
	proc, ok := h.procs[to]
	h.mu.Unlock()
	if ok {
		proc.Receive(ann)
	}
}

func (h *BgpHarness) RouteChanged(asn state.Asn, old *state.Announcement, new state.Announcement) {
	h.record(MakeEvent("ROUTE_CHANGED", asn, new))
}

func (h *BgpHarness) Log(event BgpEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.record(MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (e HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range e {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears the recorded actions, without logs.
func (h *BgpHarness) GetActions() HarnessEvents {
	h.mu.Lock()
	defer h.mu.Unlock()
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}
	h.actions = make([]HarnessEvent, 0)
	return x
}

// GetLogs returns and clears the recorded log events.
func (h *BgpHarness) GetLogs() HarnessEvents {
	h.mu.Lock()
	defer h.mu.Unlock()
	x := make([]HarnessEvent, 0)
	rest := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action)
		} else {
			rest = append(rest, action)
		}
	}
	h.actions = rest
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

// Count returns the number of events with msg.
func (e HarnessEvents) Count(msg string) int {
	n := 0
	for _, event := range e {
		if event.Message == msg {
			n++
		}
	}
	return n
}

// MakeAnnouncement builds a learned announcement as it would arrive from nextHop.
func MakeAnnouncement(prefix string, rel state.Relationship, nextHop state.Asn, path ...state.Asn) state.Announcement {
	ann := state.NewAnnouncement(prefix, path, rel)
	ann.NextHopAsn = state.AsnPtr(nextHop)
	ann.SeedAsn = nil
	return ann
}

func MakeInput(customerProvider [][2]state.Asn, peers [][2]state.Asn) *state.TopologyInput {
	input := state.NewTopologyInput()
	for _, l := range customerProvider {
		input.AddCustomerProvider(l[0], l[1])
	}
	for _, l := range peers {
		input.AddPeers(l[0], l[1])
	}
	return input
}
