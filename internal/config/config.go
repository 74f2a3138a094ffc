// internal/config/config.go
package config

type Config struct {
	Engine      EngineConfig       `yaml:"engine"`
	Identity    IdentityConfig     `yaml:"identity"`
	Controllers []ControllerConfig `yaml:"controllers"`
	SMBAlert    SMBAlertConfig     `yaml:"smbalert"`
	Simulation  SimulationConfig   `yaml:"simulation"`
	Storage     StorageConfig      `yaml:"storage"`
	Mirror      *MirrorConfig      `yaml:"mirror"` // optional
}

// ---- ENGINE ----

type EngineConfig struct {
	Address        uint8  `yaml:"address"`
	Profile        string `yaml:"profile"` // pmbus | psmi
	Pages          int    `yaml:"pages"`
	PEC            bool   `yaml:"pec"`
	StartupDelayMs int    `yaml:"startup_delay_ms"`
	RebootDelayMs  int    `yaml:"reboot_delay_ms"`
}

// ---- IDENTITY ----

type IdentityConfig struct {
	MfrID       string `yaml:"mfr_id"`
	MfrModel    string `yaml:"mfr_model"`
	MfrRevision string `yaml:"mfr_revision"`
	MfrSerial   string `yaml:"mfr_serial"`
	Firmware    string `yaml:"firmware"`
}

// ---- UPGRADE TARGETS ----

type ControllerConfig struct {
	Name string `yaml:"name"`
	ID   uint8  `yaml:"id"`
}

// ---- SMBALERT ----

// Masks are keyed by category name: vout, iout, input, temperature, cml,
// other, mfr, fans12, fans34.
type SMBAlertConfig struct {
	Defaults map[string]uint8 `yaml:"defaults"`
	Pages    []PageMaskConfig `yaml:"pages"`
}

type PageMaskConfig struct {
	Page  uint8            `yaml:"page"`
	Masks map[string]uint8 `yaml:"masks"`
}

// ---- SIMULATED PLANT ----

type SimulationConfig struct {
	Vin           Potential     `yaml:"vin"`
	IinMax        Current       `yaml:"iin_max"`
	EfficiencyPct int           `yaml:"efficiency_pct"`
	Rails         []RailConfig  `yaml:"rails"`
	Temperatures  []Temperature `yaml:"temperatures"`
	OTWarn        Temperature   `yaml:"ot_warn"`
	OTFault       Temperature   `yaml:"ot_fault"`
	FansRPM       []int         `yaml:"fans_rpm"`
	FanMinRPM     int           `yaml:"fan_min_rpm"`
}

type RailConfig struct {
	Nominal    Potential `yaml:"nominal"`
	Load       Current   `yaml:"load"`
	CurrentMax Current   `yaml:"current_max"`
	PowerMax   Power     `yaml:"power_max"` // optional
}

// ---- NON-VOLATILE STORAGE ----

type StorageConfig struct {
	Image    string `yaml:"image"` // optional file backing the flash image
	PageSize int    `yaml:"page_size"`
}

// ---- MODBUS MIRROR ----

type MirrorConfig struct {
	Endpoint   string `yaml:"endpoint"` // host:port, tcp://host:port or rtu:///dev/tty...
	UnitID     uint32 `yaml:"unit_id"`
	BaseSlot   uint16 `yaml:"base_slot"`
	DeviceName string `yaml:"device_name"`
	IntervalMs int    `yaml:"interval_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`

	// RTU only.
	BaudRate int    `yaml:"baud_rate"`
	Parity   string `yaml:"parity"`
}
