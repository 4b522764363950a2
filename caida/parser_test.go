package caida

import (
	"os"
	"strings"
	"testing"

	"github.com/encodeous/bgpr/state"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureInput() *state.TopologyInput {
	input := state.NewTopologyInput()
	input.AddCustomerProvider(3, 1)
	input.AddCustomerProvider(4, 1)
	input.AddCustomerProvider(5, 2)
	input.AddCustomerProvider(6, 3)
	input.AddPeers(1, 2)
	input.AddPeers(4, 5)
	input.AddInputClique(1)
	input.AddInputClique(2)
	input.AddIxp(9)
	input.AddIxp(10)
	return input
}

func TestParseSerialFixture(t *testing.T) {
	f, err := os.Open("testdata/serial2.txt")
	require.NoError(t, err)
	defer f.Close()

	input, err := ParseSerial(f)
	require.NoError(t, err)
	if diff := cmp.Diff(fixtureInput(), input); diff != "" {
		t.Fatalf("unexpected topology input (-want +got):\n%s", diff)
	}
}

func TestParseSerialDirection(t *testing.T) {
	input, err := ParseSerial(strings.NewReader("100|200|-1|bgp\n"))
	require.NoError(t, err)
	_, ok := input.CustomerProviderLinks[state.CustomerProviderLink{Customer: 200, Provider: 100}]
	assert.True(t, ok, "the first asn of a -1 line is the provider")
	assert.Len(t, input.CustomerProviderLinks, 1)
}

func TestParseSerialIgnoresJunk(t *testing.T) {
	lines := []string{
		"",
		"#",
		"# some other comment: 1 2 3",
		"1|2",
		"x|2|0|bgp",
		"1|y|-1|bgp",
		"1|2|7|bgp",
		"99999999999|1|0|bgp",
	}
	input, err := ParseSerial(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	assert.True(t, input.IsEmpty())
	assert.Empty(t, input.InputCliqueAsns)
}

func TestParseSerialAnnotations(t *testing.T) {
	input, err := ParseSerial(strings.NewReader("# input clique: 174 3356 bad 1299\n# IXP ASes: 1200 foo:4635\n"))
	require.NoError(t, err)
	assert.Equal(t, map[state.Asn]struct{}{174: {}, 3356: {}, 1299: {}}, input.InputCliqueAsns)
	assert.Equal(t, map[state.Asn]struct{}{4635: {}}, input.IxpAsns)
}

func TestParseSerialLongLine(t *testing.T) {
	long := "# " + strings.Repeat("x", 512*1024) + "\n1|2|0|bgp\n"
	input, err := ParseSerial(strings.NewReader(long))
	require.NoError(t, err)
	assert.Len(t, input.PeerLinks, 1)
}
