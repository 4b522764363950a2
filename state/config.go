package state

import (
	"net"
	"net/netip"
	"time"

	"github.com/cilium/cilium/pkg/ip"
)

// TopologyCfg selects where the AS relationship dataset comes from.
// If Path is set the serial-2 file is read from disk, otherwise it is fetched from CAIDA for Date.
type TopologyCfg struct {
	Path     string `yaml:"path,omitempty"`
	Date     string `yaml:"date,omitempty"` // YYYY-MM-DD, the month is what matters
	CacheDir string `yaml:"cache_dir,omitempty"`
}

// SeedCfg is an origin announcement planted before propagation starts.
type SeedCfg struct {
	Asn       Asn
	Prefix    string
	Timestamp uint64 `yaml:",omitempty"`
	Blackhole bool   `yaml:",omitempty"`
}

// SimCfg is the simulation configuration, usually read from sim.yaml.
type SimCfg struct {
	Topology    TopologyCfg
	Seeds       []SeedCfg
	Workers     int    `yaml:"workers,omitempty"`
	MaxRounds   int    `yaml:"max_rounds,omitempty"`
	LogPath     string `yaml:"log_path,omitempty"`     // if not empty, logs are also written to this file
	ResultsPath string `yaml:"results_path,omitempty"` // sqlite database receiving the final local RIBs
	MetricsAddr string `yaml:"metrics_addr,omitempty"` // serve prometheus metrics on this address while running
}

// ExpandSimConfig fills in defaults for unset fields.
func ExpandSimConfig(cfg *SimCfg) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
}

// DownloadTime returns the dataset date, defaulting to CaidaDownloadLag before now at midnight UTC.
func (c *TopologyCfg) DownloadTime(now time.Time) (time.Time, error) {
	if c.Date != "" {
		return time.Parse(time.DateOnly, c.Date)
	}
	t := now.UTC().Add(-CaidaDownloadLag)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// SeedAnnouncement builds the origin announcement described by s.
func (s *SeedCfg) SeedAnnouncement() Announcement {
	ann := NewAnnouncement(s.Prefix, []Asn{s.Asn}, Origin)
	ann.Timestamp = s.Timestamp
	ann.Blackhole = s.Blackhole
	return ann
}

func toIPNets(prefixes []netip.Prefix) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(prefixes))
	for _, p := range prefixes {
		if p.IsValid() {
			nets = append(nets, &net.IPNet{
				IP:   p.Addr().AsSlice(),
				Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen()),
			})
		}
	}
	return nets
}

func fromIPNets(nets []*net.IPNet) []netip.Prefix {
	output := make([]netip.Prefix, 0, len(nets))
	for _, n := range nets {
		if addr, ok := netip.AddrFromSlice(n.IP); ok {
			ones, bits := n.Mask.Size()
			if addr.Is4In6() && bits == 128 {
				ones -= 96
			}
			output = append(output, netip.PrefixFrom(addr.Unmap(), ones))
		}
	}
	return output
}

// CoalescePrefixes merges adjacent and overlapping prefixes into the smallest covering set.
func CoalescePrefixes(prefixes []netip.Prefix) []netip.Prefix {
	ipv4, ipv6 := ip.CoalesceCIDRs(toIPNets(prefixes))
	return fromIPNets(append(ipv4, ipv6...))
}

// ParsePrefixes parses every IP prefix in prefixes, skipping names that are not CIDRs.
func ParsePrefixes(prefixes []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(prefixes))
	for _, s := range prefixes {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			continue
		}
		out = append(out, p.Masked())
	}
	return out
}
