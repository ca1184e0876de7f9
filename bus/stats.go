package bus

import (
	"fmt"
	"strings"
)

// LinkStats are the counters of one link.
type LinkStats struct {
	Sent      uint64
	Received  uint64
	Malformed uint64
}

// Stats is a point-in-time copy of the bus counters. Sent and Received count
// successful operations across all links; they only ever grow.
type Stats struct {
	Sent     uint64
	Received uint64
	Links    map[string]LinkStats
}

// Stats snapshots the counters.
func (b *Bus) Stats() Stats {
	s := Stats{
		Sent:     b.sent.Load(),
		Received: b.received.Load(),
		Links:    make(map[string]LinkStats, len(b.links)),
	}
	for i, spec := range linkTable {
		c := &b.links[i].counters
		s.Links[spec.name] = LinkStats{
			Sent:      c.sent.Load(),
			Received:  c.received.Load(),
			Malformed: c.malformed.Load(),
		}
	}
	return s
}

// Map returns the totals keyed by operation kind.
func (s Stats) Map() map[string]uint64 {
	return map[string]uint64{"sent": s.Sent, "received": s.Received}
}

func (s Stats) String() string {
	return fmt.Sprintf("sent: %d, received: %d", s.Sent, s.Received)
}

// Detail lists the per-link counters that are non-zero, in link order.
func (s Stats) Detail() string {
	var parts []string
	for _, name := range Links {
		ls := s.Links[name]
		if ls == (LinkStats{}) {
			continue
		}
		p := fmt.Sprintf("%s %d/%d", name, ls.Sent, ls.Received)
		if ls.Malformed > 0 {
			p += fmt.Sprintf(" (%d bad)", ls.Malformed)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}
