package config

const (
	defaultConfigPath   = "~/.config/sbustui/config.toml"
	defaultProjectFile  = "sbustui.toml"
	defaultBaud         = 115200
	defaultIntervalMS   = 500
	defaultPulseMS      = 300
	defaultLogLevel     = "info"
	defaultLogFormat    = "console"
	defaultLogDir       = "~/.local/state/sbustui"
)

var defaultSkipMarkers = []string{"(A)", "(B)", "(C)", "(D)"}

// Default returns a configuration populated with the built-in values.
func Default() Config {
	return Config{
		Serial: Serial{
			Baud: defaultBaud,
		},
		Replay: Replay{
			IntervalMS:  defaultIntervalMS,
			PulseMS:     defaultPulseMS,
			SkipMarkers: append([]string(nil), defaultSkipMarkers...),
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
			Dir:    defaultLogDir,
		},
	}
}
