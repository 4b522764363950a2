package core

import "fmt"

type BgpEvent int

// trace events

const (
	RouteInstalled BgpEvent = iota
	AnnouncementQueued
	AnnouncementExported
	SeededRouteKept
)

// dropped announcements

const (
	LoopDetected BgpEvent = iota + 100
	PoisonedPath
)

// warn events

const (
	InconsistentState BgpEvent = iota + 1000
	UnknownNeighbour
)

var bgpEventNames = map[BgpEvent]string{
	RouteInstalled:       "RouteInstalled",
	AnnouncementQueued:   "AnnouncementQueued",
	AnnouncementExported: "AnnouncementExported",
	SeededRouteKept:      "SeededRouteKept",
	LoopDetected:         "LoopDetected",
	PoisonedPath:         "PoisonedPath",
	InconsistentState:    "InconsistentState",
	UnknownNeighbour:     "UnknownNeighbour",
}

func (e BgpEvent) String() string {
	if name, ok := bgpEventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("BgpEvent(%d)", int(e))
}

func (e BgpEvent) IsWarning() bool {
	return e >= InconsistentState
}
