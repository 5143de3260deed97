package benchmarks

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config describes a regression run.
type Config struct {
	// Depths lists the FIFO depths to test. Each depth gets a single clock
	// and a dual clock scenario. Default: 2 through 13.
	Depths []int `json:"depths" mapstructure:"depths"`

	// WriteRatios lists the write clock divisions tested against an
	// undivided read clock. Default: 2 through 8.
	WriteRatios []int `json:"write_ratios" mapstructure:"write_ratios"`

	// ReadRatios lists the read clock divisions tested against an undivided
	// write clock. Default: 2 through 8.
	ReadRatios []int `json:"read_ratios" mapstructure:"read_ratios"`

	// TickScale is the simulated ticks per plan step of a FIFO scenario.
	// Default: 1.5.
	TickScale float64 `json:"tick_scale" mapstructure:"tick_scale"`

	// Clocks lists the clock divider scenarios.
	Clocks []ClockScenario `json:"clocks" mapstructure:"clocks"`
}

// DefaultConfig returns the standard regression.
func DefaultConfig() *Config {
	return &Config{
		Depths:      intRange(2, 13),
		WriteRatios: intRange(2, 8),
		ReadRatios:  intRange(2, 8),
		TickScale:   1.5,
		Clocks: []ClockScenario{
			{Name: "clocks_1_1", InitClk: true, High: 1, Low: 1, Ticks: 23},
			{Name: "clocks_5_3", InitClk: true, High: 5, Low: 3, Ticks: 50},
			{Name: "clocks_3_3", InitClk: false, High: 3, Low: 3, Ticks: 143},
			{Name: "clocks_4_4", InitClk: false, High: 4, Low: 4, Ticks: 97},
		},
	}
}

func intRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// LoadConfig reads a Config from a JSON, YAML or TOML file. Keys missing
// from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	def := DefaultConfig()
	v := viper.New()
	v.SetDefault("depths", def.Depths)
	v.SetDefault("write_ratios", def.WriteRatios)
	v.SetDefault("read_ratios", def.ReadRatios)
	v.SetDefault("tick_scale", def.TickScale)
	v.SetDefault("clocks", def.Clocks)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed to read regression config file")
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to parse regression config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize regression config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write regression config file")
	}

	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var err error
	for _, d := range c.Depths {
		if d <= 0 {
			err = multierr.Append(err, errors.Errorf("depth %d must be > 0", d))
		}
	}
	for _, r := range c.WriteRatios {
		if r <= 0 {
			err = multierr.Append(err, errors.Errorf("write ratio %d must be > 0", r))
		}
	}
	for _, r := range c.ReadRatios {
		if r <= 0 {
			err = multierr.Append(err, errors.Errorf("read ratio %d must be > 0", r))
		}
	}
	if c.TickScale <= 0 {
		err = multierr.Append(err, errors.Errorf("tick_scale %g must be > 0", c.TickScale))
	}
	for _, sc := range c.Clocks {
		if sc.High <= 0 || sc.Low <= 0 {
			err = multierr.Append(err,
				errors.Errorf("clock %q: high=%d low=%d must be > 0", sc.Name, sc.High, sc.Low))
		}
		if sc.Ticks == 0 {
			err = multierr.Append(err, errors.Errorf("clock %q: ticks must be > 0", sc.Name))
		}
	}
	return err
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	return &Config{
		Depths:      append([]int(nil), c.Depths...),
		WriteRatios: append([]int(nil), c.WriteRatios...),
		ReadRatios:  append([]int(nil), c.ReadRatios...),
		TickScale:   c.TickScale,
		Clocks:      append([]ClockScenario(nil), c.Clocks...),
	}
}
