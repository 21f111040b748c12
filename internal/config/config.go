package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/openmelsec/laddergen/internal/device"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Target TargetConfig `mapstructure:"target"`
	Export ExportConfig `mapstructure:"export"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TargetConfig describes the PLC the generated programs are written
// for: device bank sizes, start offsets and the timer time base.
type TargetConfig struct {
	CPUType          string         `mapstructure:"cpu_type"`
	ResolutionFactor int            `mapstructure:"resolution_factor"`
	DeviceLimits     map[string]int `mapstructure:"device_limits"`
	DeviceStarts     map[string]int `mapstructure:"device_starts"`
}

type ExportConfig struct {
	ProgramName string `mapstructure:"program_name"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Defaults setzen
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("target.cpu_type", "QCPU (Q mode) Q03UDV")
	viper.SetDefault("target.resolution_factor", 10)
	viper.SetDefault("export.program_name", "MAIN")

	// Environment Variables automatisch binden (Viper Feature)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("LADDERGEN") // Environment Variables mit Prefix LADDERGEN_

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPPort: 8080, ShutdownTimeout: 30 * time.Second},
		Target: TargetConfig{CPUType: "QCPU (Q mode) Q03UDV", ResolutionFactor: 10},
		Export: ExportConfig{ProgramName: "MAIN"},
	}
}

// DeviceConfig converts the target section into the allocator's form.
// Unknown device class keys are rejected.
func (t TargetConfig) DeviceConfig() (device.Config, error) {
	cfg := device.DefaultConfig()
	cfg.Resolution = t.ResolutionFactor
	cfg.Limits = make(map[device.Class]int, len(t.DeviceLimits))
	cfg.Starts = make(map[device.Class]int, len(t.DeviceStarts))

	for key, limit := range t.DeviceLimits {
		class := device.Class(key)
		if !class.Valid() {
			return device.Config{}, fmt.Errorf("unknown device class %q in device_limits", key)
		}
		cfg.Limits[class] = limit
	}
	for key, start := range t.DeviceStarts {
		class := device.Class(key)
		if !class.Valid() {
			return device.Config{}, fmt.Errorf("unknown device class %q in device_starts", key)
		}
		cfg.Starts[class] = start
	}
	return cfg, nil
}
