package ui

import (
	"fmt"
	"strings"
	"time"
)

// Smoothing is the weight of the previous average in each rate update.
const Smoothing = 0.9

// Tracked rates, in the order they appear on the stats line.
const (
	RateRender   = "render"
	RateMainloop = "mainloop"
	RateStats    = "stats"
	RateOutput   = "output"
)

var rateOrder = []string{RateRender, RateMainloop, RateStats, RateOutput}

// rateCounter is an exponentially smoothed events-per-second estimate.
type rateCounter struct {
	last time.Time
	avg  float64
}

func (rc *rateCounter) tick(now time.Time) {
	if rc.last.IsZero() {
		rc.last = now
		return
	}
	dt := now.Sub(rc.last).Seconds()
	if dt <= 0 {
		return
	}
	rc.last = now
	rc.avg = rc.avg*Smoothing + (1/dt)*(1-Smoothing)
}

type rates map[string]*rateCounter

func newRates() rates {
	r := make(rates, len(rateOrder))
	for _, name := range rateOrder {
		r[name] = &rateCounter{}
	}
	return r
}

func (r rates) tick(name string, now time.Time) {
	r[name].tick(now)
}

// Rate returns the smoothed rate of name.
func (r rates) Rate(name string) float64 {
	if rc, ok := r[name]; ok {
		return rc.avg
	}
	return 0
}

func (r rates) String() string {
	parts := make([]string, 0, len(rateOrder))
	for _, name := range rateOrder {
		parts = append(parts, fmt.Sprintf("%s: %.2f/s", name, r[name].avg))
	}
	return strings.Join(parts, ", ")
}
