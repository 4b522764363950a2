package caida

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/encodeous/bgpr/state"
)

const (
	inputCliquePrefix = "# input clique"
	ixpPrefix         = "# IXP ASes"

	relProviderCustomer = "-1"
	relPeer             = "0"
)

// ParseSerial reads a CAIDA serial-2 AS relationship file.
// Lines are either "provider|customer|-1|source" or "peer|peer|0|source", comment lines other than the
// input clique and IXP annotations are ignored, as are lines that do not parse.
func ParseSerial(r io.Reader) (*state.TopologyInput, error) {
	input := state.NewTopologyInput()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, inputCliquePrefix):
			for _, asn := range parseAsnList(line) {
				input.AddInputClique(asn)
			}
		case strings.HasPrefix(line, ixpPrefix):
			for _, asn := range parseAsnList(line) {
				input.AddIxp(asn)
			}
		case strings.HasPrefix(line, "#"):
		default:
			parseLink(line, input)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return input, nil
}

// parseAsnList reads the whitespace separated ASNs after the last colon of an annotation line.
func parseAsnList(line string) []state.Asn {
	idx := strings.LastIndexByte(line, ':')
	if idx < 0 {
		return nil
	}
	out := make([]state.Asn, 0)
	for _, field := range strings.Fields(line[idx+1:]) {
		if asn, ok := parseAsn(field); ok {
			out = append(out, asn)
		}
	}
	return out
}

func parseLink(line string, input *state.TopologyInput) {
	parts := strings.Split(line, "|")
	if len(parts) < 3 {
		return
	}
	a, ok1 := parseAsn(parts[0])
	b, ok2 := parseAsn(parts[1])
	if !ok1 || !ok2 {
		return
	}
	switch strings.TrimSpace(parts[2]) {
	case relProviderCustomer:
		input.AddCustomerProvider(b, a)
	case relPeer:
		input.AddPeers(a, b)
	}
}

func parseAsn(s string) (state.Asn, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, false
	}
	return state.Asn(v), true
}
