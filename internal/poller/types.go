// internal/poller/types.go
package poller

import "github.com/tamzrod/pmbus-engine/internal/sensor"

// PollResult reports one measurement pass.
type PollResult struct {
	Group sensor.Group

	// Updated is the number of slots published by the pass.
	Updated int
}

// Ticker receives the periodic engine ticks.
type Ticker interface {
	Tick1ms()
	Tick10ms()
	Tick100ms()
}
