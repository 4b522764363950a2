package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAnnouncementOrigin(t *testing.T) {
	ann := NewAnnouncement("1.2.3.0/24", []Asn{65001}, Origin)
	assert.Equal(t, AsnPtr(65001), ann.NextHopAsn)
	assert.Equal(t, AsnPtr(65001), ann.SeedAsn)
	assert.True(t, ann.IsSeeded())
	assert.Equal(t, Asn(65001), ann.Origin())

	learned := NewAnnouncement("1.2.3.0/24", []Asn{2, 1}, Customer)
	assert.Nil(t, learned.NextHopAsn)
	assert.Nil(t, learned.SeedAsn)
	assert.False(t, learned.IsSeeded())
	assert.Equal(t, Asn(1), learned.Origin())
}

func TestCloneIsDeep(t *testing.T) {
	ann := NewAnnouncement("10.0.0.0/8", []Asn{5}, Origin)
	ann.BgpsecAsPath = []Asn{5}
	ann.BgpsecNextAsn = AsnPtr(6)
	ann.OnlyToCustomers = AsnPtr(7)

	c := ann.Clone()
	assert.Equal(t, ann, c)

	c.AsPath[0] = 99
	c.BgpsecAsPath[0] = 99
	*c.NextHopAsn = 99
	*c.SeedAsn = 99
	*c.BgpsecNextAsn = 99
	*c.OnlyToCustomers = 99

	assert.Equal(t, []Asn{5}, ann.AsPath)
	assert.Equal(t, []Asn{5}, ann.BgpsecAsPath)
	assert.Equal(t, Asn(5), *ann.NextHopAsn)
	assert.Equal(t, Asn(5), *ann.SeedAsn)
	assert.Equal(t, Asn(6), *ann.BgpsecNextAsn)
	assert.Equal(t, Asn(7), *ann.OnlyToCustomers)
}

func TestPathEqual(t *testing.T) {
	a := NewAnnouncement("p", []Asn{3, 2, 1}, Customer)
	b := NewAnnouncement("p", []Asn{3, 2, 1}, Peer)
	b.NextHopAsn = AsnPtr(3)
	assert.True(t, a.PathEqual(&b))

	c := NewAnnouncement("q", []Asn{3, 2, 1}, Customer)
	assert.False(t, a.PathEqual(&c))
	d := NewAnnouncement("p", []Asn{3, 1}, Customer)
	assert.False(t, a.PathEqual(&d))
}

func TestBgpsecValid(t *testing.T) {
	ann := NewAnnouncement("p", []Asn{2, 1}, Customer)
	assert.False(t, ann.BgpsecValid(3))

	ann.BgpsecNextAsn = AsnPtr(3)
	ann.BgpsecAsPath = []Asn{2, 1}
	assert.True(t, ann.BgpsecValid(3))
	assert.False(t, ann.BgpsecValid(4))

	ann.BgpsecAsPath = []Asn{1}
	assert.False(t, ann.BgpsecValid(3))
}

func TestAnnouncementString(t *testing.T) {
	ann := NewAnnouncement("1.2.3.0/24", []Asn{2, 1}, Customer)
	ann.NextHopAsn = AsnPtr(2)
	assert.Equal(t, "(prefix: 1.2.3.0/24, path: [2 1], nh: 2, rel: customer)", ann.String())
	ann.NextHopAsn = nil
	assert.Equal(t, "(prefix: 1.2.3.0/24, path: [2 1], nh: -, rel: customer)", ann.String())
}
