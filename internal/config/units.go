// internal/config/units.go
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Physical values are written with their unit, e.g. "12V", "50A",
// "1600W", "40C".

type Potential struct{ physic.ElectricPotential }

func (p *Potential) UnmarshalYAML(n *yaml.Node) error {
	return scalar(n, p.Set)
}

type Current struct{ physic.ElectricCurrent }

func (c *Current) UnmarshalYAML(n *yaml.Node) error {
	return scalar(n, c.Set)
}

type Power struct{ physic.Power }

func (p *Power) UnmarshalYAML(n *yaml.Node) error {
	return scalar(n, p.Set)
}

type Temperature struct{ physic.Temperature }

func (t *Temperature) UnmarshalYAML(n *yaml.Node) error {
	return scalar(n, t.Set)
}

func scalar(n *yaml.Node, set func(string) error) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a value with unit", n.Line)
	}
	if err := set(n.Value); err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	return nil
}
