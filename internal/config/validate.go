package config

import "fmt"

const (
	minBaud = 1200
	maxBaud = 921600
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSerial(); err != nil {
		return err
	}
	if err := c.validateReplay(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSerial() error {
	if c.Serial.Baud < minBaud || c.Serial.Baud > maxBaud {
		return fmt.Errorf("serial.baud must be between %d and %d, got %d", minBaud, maxBaud, c.Serial.Baud)
	}
	return nil
}

func (c *Config) validateReplay() error {
	if c.Replay.IntervalMS <= 0 {
		return fmt.Errorf("replay.interval_ms must be positive, got %d", c.Replay.IntervalMS)
	}
	if c.Replay.PulseMS <= 0 {
		return fmt.Errorf("replay.pulse_ms must be positive, got %d", c.Replay.PulseMS)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
