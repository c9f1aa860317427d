package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"sbustui/internal/config"
	"sbustui/internal/link"
	"sbustui/internal/logging"
)

type commandContext struct {
	configFlag *string
	portFlag   *string
	baudFlag   *int

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, portFlag *string, baudFlag *int) *commandContext {
	return &commandContext{configFlag: configFlag, portFlag: portFlag, baudFlag: baudFlag}
}

// ensureConfig loads the config once and applies --port/--baud on top.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.configPath = resolved
		c.configExists = exists
		if c.portFlag != nil && strings.TrimSpace(*c.portFlag) != "" {
			cfg.Serial.Port = strings.TrimSpace(*c.portFlag)
		}
		if c.baudFlag != nil && *c.baudFlag != 0 {
			if err := link.ValidateBaud(*c.baudFlag); err != nil {
				c.configErr = err
				return
			}
			cfg.Serial.Baud = *c.baudFlag
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds a logger for cmd. Console output goes to stderr unless
// console is nil.
func (c *commandContext) logger(console io.Writer) (*slog.Logger, io.Closer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, closer, err := logging.NewFromConfig(cfg, console)
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return logger, closer, nil
}

func (c *commandContext) newLink() *link.Link {
	cfg, err := c.ensureConfig()
	if err != nil || cfg.Serial.LockDir == "" {
		return link.New()
	}
	return link.New(link.WithLockDir(cfg.Serial.LockDir))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for cur := cmd; cur != nil; cur = cur.Parent() {
		if cur.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
