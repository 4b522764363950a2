package core

import (
	"net/netip"

	"github.com/encodeous/bgpr/state"
	"github.com/gaissmai/bart"
)

// RibTable maps IP prefixes in a local rib to their rib key for longest-prefix lookups.
type RibTable struct {
	table bart.Table[string]
}

func (t *RibTable) Insert(pfx netip.Prefix, key string) {
	t.table.Insert(pfx, key)
}

func (t *RibTable) Delete(pfx netip.Prefix) {
	t.table.Delete(pfx)
}

// Lookup returns the rib key of the longest prefix containing addr.
func (t *RibTable) Lookup(addr netip.Addr) (string, bool) {
	return t.table.Lookup(addr)
}

func (t *RibTable) Size() int {
	return t.table.Size()
}

// LongestMatch returns the announcement among anns with the longest prefix containing addr.
func LongestMatch(anns []state.Announcement, addr netip.Addr) (state.Announcement, bool) {
	var t RibTable
	byPrefix := make(map[string]state.Announcement, len(anns))
	for _, ann := range anns {
		pfx, err := netip.ParsePrefix(ann.Prefix)
		if err != nil {
			continue
		}
		t.Insert(pfx.Masked(), ann.Prefix)
		byPrefix[ann.Prefix] = ann
	}
	key, ok := t.Lookup(addr)
	if !ok {
		return state.Announcement{}, false
	}
	return byPrefix[key], true
}
