// internal/writer/mirror.go
package writer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/status"
)

// Mirror copies every page snapshot of one device into Modbus holding
// registers. The connection is reused while healthy; after a failure it is
// dropped and dialed again on the next write.
type Mirror struct {
	plan  Plan
	dial  Dialer
	cli   Client
	pages []*pageWriter
}

// New builds a mirror for plan. No connection is made until Write.
func New(plan Plan, dial Dialer) (*Mirror, error) {
	if plan.Endpoint == "" {
		return nil, errors.New("writer: endpoint required")
	}
	if dial == nil {
		return nil, errors.New("writer: dialer required")
	}
	if plan.UnitID > 255 {
		return nil, fmt.Errorf("writer: unit id %d out of range", plan.UnitID)
	}
	if plan.Pages < 1 || plan.Pages > command.MaxPages {
		return nil, fmt.Errorf("writer: pages must be 1..%d, got %d", command.MaxPages, plan.Pages)
	}
	end := (int(plan.BaseSlot) + plan.Pages) * status.SlotsPerPage
	if end > 0x10000 {
		return nil, fmt.Errorf("writer: base slot %d with %d pages exceeds the register space", plan.BaseSlot, plan.Pages)
	}

	m := &Mirror{plan: plan, dial: dial}
	for p := 0; p < plan.Pages; p++ {
		addr := uint16((int(plan.BaseSlot) + p) * status.SlotsPerPage)
		m.pages = append(m.pages, newPageWriter(command.PageID(p), addr, plan.DeviceName))
	}
	return m, nil
}

// Write delivers the current snapshot of every page.
func (m *Mirror) Write(src Source) error {
	if src.Pages() != len(m.pages) {
		return fmt.Errorf("writer: source has %d pages, plan has %d", src.Pages(), len(m.pages))
	}

	if m.cli == nil {
		cli, err := m.dial()
		if err != nil {
			return fmt.Errorf("writer: dial %s: %w", m.plan.Endpoint, err)
		}
		m.cli = cli
		for _, pw := range m.pages {
			pw.invalidate()
		}
	}

	var errs []string
	unitID := uint8(m.plan.UnitID)
	for _, pw := range m.pages {
		if err := pw.write(m.cli, unitID, src.Snapshot(pw.page)); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		_ = m.cli.Close()
		m.cli = nil
		return fmt.Errorf("writer: ep=%s unit=%d: %s", m.plan.Endpoint, unitID, strings.Join(errs, " | "))
	}
	return nil
}

// Run writes every interval until ctx is done, then closes the connection.
func (m *Mirror) Run(ctx context.Context, interval time.Duration, src Source) {
	t := time.NewTicker(interval)
	defer t.Stop()
	defer m.Close()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := m.Write(src); err != nil {
				log.Printf("mirror write failed: %v", err)
				failing = true
			} else if failing {
				log.Printf("mirror write recovered (ep=%s)", m.plan.Endpoint)
				failing = false
			}
		}
	}
}

// Close drops the connection, if any.
func (m *Mirror) Close() error {
	if m.cli == nil {
		return nil
	}
	err := m.cli.Close()
	m.cli = nil
	return err
}
