package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	c.Serial.Port = strings.TrimSpace(c.Serial.Port)
	var err error
	if c.Serial.LockDir, err = expandPath(strings.TrimSpace(c.Serial.LockDir)); err != nil {
		return fmt.Errorf("serial.lock_dir: %w", err)
	}
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	markers := c.Replay.SkipMarkers[:0]
	for _, m := range c.Replay.SkipMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	c.Replay.SkipMarkers = markers
	return nil
}
