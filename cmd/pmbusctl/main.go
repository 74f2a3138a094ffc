// cmd/pmbusctl/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/tamzrod/pmbus-engine/internal/client"
	"github.com/tamzrod/pmbus-engine/internal/command"
	"github.com/tamzrod/pmbus-engine/internal/config"
	"github.com/tamzrod/pmbus-engine/internal/engine"
	"github.com/tamzrod/pmbus-engine/internal/i2cbus"
	"github.com/tamzrod/pmbus-engine/internal/nvstore"
	"github.com/tamzrod/pmbus-engine/internal/poller"
	"github.com/tamzrod/pmbus-engine/internal/sensor"
)

const usage = `usage: pmbusctl [flags] <command> [args]

commands:
  telemetry [page]     read every supported quantity of page (default 0)
  status               read STATUS_WORD of the sticky page
  page [n]             read or select the sticky page
  clear                send CLEAR_FAULTS
  query <code>         read the QUERY byte of a command code
  mask <status> [v]    read or write the SMBALERT_MASK of a status command
  identity             read the manufacturer strings
  unlock <key>         write MFR_DEBUG_UNLOCK
`

func main() {
	var (
		busName = flag.String("bus", "", "I2C bus name or number (host bus only)")
		addr    = flag.Uint("addr", 0x58, "7-bit device address")
		pecOn   = flag.Bool("pec", false, "use packet error checking")
		profile = flag.String("profile", "pmbus", "telemetry profile: pmbus or psmi")
		simCfg  = flag.String("sim", "", "run against an in-process device built from this config")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	prof, err := command.ParseProfile(*profile)
	if err != nil {
		log.Fatal(err)
	}
	cfg := client.Config{Addr: uint16(*addr), PEC: *pecOn, Profile: prof}

	var bus i2c.BusCloser
	if *simCfg != "" {
		bus, cfg, err = openSim(*simCfg)
	} else {
		bus, err = openHost(*busName)
	}
	if err != nil {
		log.Fatalf("bus open failed: %v", err)
	}
	defer bus.Close()

	c, err := client.New(bus, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := run(c, flag.Args()); err != nil {
		log.Fatalf("%s: %v", c, err)
	}
}

func openHost(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return i2creg.Open(name)
}

// openSim builds the device described by a pmbusd config and puts it on an
// in-process bus. The client follows the device's address, PEC and profile.
func openSim(path string) (i2c.BusCloser, client.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, client.Config{}, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, client.Config{}, err
	}
	config.Normalize(cfg)

	sim, err := poller.BuildSim(cfg.Simulation)
	if err != nil {
		return nil, client.Config{}, err
	}
	engCfg, err := engine.BuildConfig(cfg)
	if err != nil {
		return nil, client.Config{}, err
	}
	flash, err := nvstore.NewFlash(3, cfg.Storage.PageSize)
	if err != nil {
		return nil, client.Config{}, err
	}
	eng, err := engine.New(engCfg, engine.Deps{
		Plant:    sim,
		Storage:  flash,
		PageSize: flash.PageSize(),
		Layout:   nvstore.DefaultLayout,
		Reset:    noReset{},
	})
	if err != nil {
		return nil, client.Config{}, err
	}
	for i := 0; i < int(sensor.NumGroups); i++ {
		eng.Tick1ms()
	}
	eng.Tick10ms()
	eng.Tick100ms()

	bus := i2cbus.New("sim")
	addr := uint16(engCfg.Address)
	if err := bus.Attach(addr, eng); err != nil {
		return nil, client.Config{}, err
	}
	return bus, client.Config{Addr: addr, PEC: engCfg.PEC, Profile: engCfg.Profile}, nil
}

type noReset struct{}

func (noReset) Reset(target uint8) { log.Printf("device requested reset (boot target=0x%02X)", target) }

func run(c *client.Client, args []string) error {
	switch args[0] {
	case "telemetry":
		page, err := pageArg(args, 1)
		if err != nil {
			return err
		}
		t, err := c.ReadTelemetry(page)
		if err != nil {
			return err
		}
		printTelemetry(t)

	case "status":
		w, err := c.StatusWord()
		if err != nil {
			return err
		}
		fmt.Printf("STATUS_WORD=0x%04X\n", w)

	case "page":
		if len(args) > 1 {
			p, err := pageArg(args, 1)
			if err != nil {
				return err
			}
			return c.SetPage(p)
		}
		p, err := c.Page()
		if err != nil {
			return err
		}
		fmt.Printf("PAGE=%d\n", p)

	case "clear":
		return c.ClearFaults()

	case "query":
		code, err := byteArg(args, 1)
		if err != nil {
			return err
		}
		q, err := c.Query(code)
		if err != nil {
			return err
		}
		fmt.Printf("QUERY(0x%02X)=0x%02X supported=%v write=%v read=%v\n", code, q,
			q&command.QuerySupported != 0, q&command.QueryWrite != 0, q&command.QueryRead != 0)

	case "mask":
		code, err := byteArg(args, 1)
		if err != nil {
			return err
		}
		if len(args) > 2 {
			v, err := byteArg(args, 2)
			if err != nil {
				return err
			}
			return c.SetSMBAlertMask(code, v)
		}
		m, err := c.SMBAlertMask(code)
		if err != nil {
			return err
		}
		fmt.Printf("SMBALERT_MASK(0x%02X)=0x%02X\n", code, m)

	case "identity":
		id, err := c.Identity()
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(id))
		for k := range id {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-13s %q\n", k, id[k])
		}

	case "unlock":
		if len(args) < 2 {
			return fmt.Errorf("unlock: key required")
		}
		key, err := strconv.ParseUint(args[1], 0, 16)
		if err != nil {
			return fmt.Errorf("unlock: %w", err)
		}
		return c.DebugUnlock(uint16(key))

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func pageArg(args []string, i int) (command.PageID, error) {
	if len(args) <= i {
		return command.PageMain, nil
	}
	n, err := strconv.ParseUint(args[i], 0, 8)
	if err != nil {
		return 0, fmt.Errorf("page: %w", err)
	}
	return command.PageID(n), nil
}

func byteArg(args []string, i int) (byte, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%s: argument %d required", args[0], i)
	}
	n, err := strconv.ParseUint(args[i], 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", args[0], err)
	}
	return byte(n), nil
}

func printTelemetry(t client.Telemetry) {
	fmt.Printf("page %d\n", t.Page)
	row := func(q sensor.Quantity, v fmt.Stringer) {
		if t.Valid[q] {
			fmt.Printf("  %-6s %s\n", q, v)
		}
	}
	row(sensor.Vin, t.Vin)
	row(sensor.Iin, t.Iin)
	row(sensor.Pin, t.Pin)
	row(sensor.Vout, t.Vout)
	row(sensor.Iout, t.Iout)
	row(sensor.Pout, t.Pout)
	for i := range t.Temp {
		row(sensor.Temp1+sensor.Quantity(i), t.Temp[i])
	}
	for i := range t.Fan {
		row(sensor.Fan1+sensor.Quantity(i), t.Fan[i])
	}
}
