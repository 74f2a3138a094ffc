// internal/client/telemetry.go
package client

import (
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/poller"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

var readCodes = map[sensor.Quantity]byte{
	sensor.Vin:   command.ReadVin,
	sensor.Iin:   command.ReadIin,
	sensor.Pin:   command.ReadPin,
	sensor.Vout:  command.ReadVout,
	sensor.Iout:  command.ReadIout,
	sensor.Pout:  command.ReadPout,
	sensor.Temp1: command.ReadTemp1,
	sensor.Temp2: command.ReadTemp2,
	sensor.Temp3: command.ReadTemp3,
	sensor.Fan1:  command.ReadFanSpeed1,
	sensor.Fan2:  command.ReadFanSpeed2,
}

// Telemetry is one page of readings in physical units. Valid marks the
// quantities the device answered.
type Telemetry struct {
	Page command.PageID

	Vin  physic.ElectricPotential
	Iin  physic.ElectricCurrent
	Pin  physic.Power
	Vout physic.ElectricPotential
	Iout physic.ElectricCurrent
	Pout physic.Power
	Temp [3]physic.Temperature
	Fan  [2]physic.Frequency

	Valid [sensor.NumQuantities]bool
}

// ReadQ7 reads one quantity on page through PAGE_PLUS_READ.
func (c *Client) ReadQ7(page command.PageID, q sensor.Quantity) (int64, error) {
	code, ok := readCodes[q]
	if !ok {
		return 0, fmt.Errorf("pmbus client: no read command for %s", q)
	}
	w, err := c.PagePlusReadWord(page, code)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", q, err)
	}
	return poller.Decode(c.cfg.Profile, q, w), nil
}

// ReadVout reads the output voltage of page.
func (c *Client) ReadVout(page command.PageID) (physic.ElectricPotential, error) {
	v, err := c.ReadQ7(page, sensor.Vout)
	return sensor.PotentialFromQ7(v), err
}

// ReadTelemetry reads every quantity the device reports on page. Quantities
// the device rejects are left invalid; the command table decides which
// ones exist.
func (c *Client) ReadTelemetry(page command.PageID) (Telemetry, error) {
	t := Telemetry{Page: page}
	for q := sensor.Quantity(0); q < sensor.NumQuantities; q++ {
		qb, err := c.Query(readCodes[q])
		if err != nil {
			return t, err
		}
		if qb&command.QuerySupported == 0 {
			continue
		}
		v, err := c.ReadQ7(page, q)
		if err != nil {
			continue
		}
		t.Valid[q] = true
		switch q {
		case sensor.Vin:
			t.Vin = sensor.PotentialFromQ7(v)
		case sensor.Iin:
			t.Iin = sensor.CurrentFromQ7(v)
		case sensor.Pin:
			t.Pin = sensor.PowerFromQ7(v)
		case sensor.Vout:
			t.Vout = sensor.PotentialFromQ7(v)
		case sensor.Iout:
			t.Iout = sensor.CurrentFromQ7(v)
		case sensor.Pout:
			t.Pout = sensor.PowerFromQ7(v)
		case sensor.Temp1, sensor.Temp2, sensor.Temp3:
			t.Temp[q-sensor.Temp1] = sensor.TemperatureFromQ7(v)
		case sensor.Fan1, sensor.Fan2:
			t.Fan[q-sensor.Fan1] = sensor.FrequencyFromRPMQ7(v)
		}
	}
	return t, nil
}
