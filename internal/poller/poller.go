// internal/poller/poller.go
package poller

import (
	"errors"
	"fmt"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
	"github.com/tamzrod/pmbus-engine/internal/snapshot"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Profile command.Profile
	Pages   int
}

// Poller refreshes one measurement group per call, cycling through
// fan/NTC, output and input.
// It is not safe for concurrent use; the engine serializes access.
type Poller struct {
	cfg Config
	src sensor.Source
	cal *sensor.CalibrationRecord
	out *snapshot.Measurements

	next sensor.Group
}

// New creates a poller with immutable config.
func New(cfg Config, src sensor.Source, cal *sensor.CalibrationRecord, out *snapshot.Measurements) (*Poller, error) {
	if cfg.Pages < 1 || cfg.Pages > command.MaxPages {
		return nil, fmt.Errorf("poller: pages must be 1..%d", command.MaxPages)
	}
	if src == nil {
		return nil, errors.New("poller: source required")
	}
	if cal == nil || out == nil {
		return nil, errors.New("poller: calibration and measurements required")
	}
	return &Poller{cfg: cfg, src: src, cal: cal, out: out}, nil
}

// Next returns the group the next PollOnce refreshes.
func (p *Poller) Next() sensor.Group { return p.next }

type sample struct {
	page command.PageID
	q    sensor.Quantity
	word uint16
}

// PollOnce refreshes exactly one group. The group is read completely before
// anything is published.
func (p *Poller) PollOnce() PollResult {
	g := p.next
	p.next = (p.next + 1) % sensor.NumGroups

	res := PollResult{Group: g}

	var samples []sample
	for _, q := range g.Quantities() {
		pages := p.cfg.Pages
		if q.Shared() {
			pages = 1
		}
		for pg := 0; pg < pages; pg++ {
			page := command.PageID(pg)
			v, ok := p.src.ReadQ7(page, q)
			if !ok {
				continue
			}
			v = p.trim(page, q, v)
			samples = append(samples, sample{page, q, Format(p.cfg.Profile, q, v)})
		}
	}

	// Commit only once the whole group has been read
	for _, s := range samples {
		p.out.Store(s.page, s.q, s.word)
	}
	res.Updated = len(samples)
	return res
}

// PollAll refreshes every group once.
func (p *Poller) PollAll() {
	for i := 0; i < int(sensor.NumGroups); i++ {
		p.PollOnce()
	}
}

// trim scales output readings by the page's calibration gains.
func (p *Poller) trim(page command.PageID, q sensor.Quantity, v int64) int64 {
	switch q {
	case sensor.Vout:
		return sensor.ApplyGain(v, p.cal.VoutGain(page))
	case sensor.Iout:
		return sensor.ApplyGain(v, p.cal.IoutGain(page))
	case sensor.Pout:
		v = sensor.ApplyGain(v, p.cal.VoutGain(page))
		return sensor.ApplyGain(v, p.cal.IoutGain(page))
	}
	return v
}
