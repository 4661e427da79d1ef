package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/phrazzld/asrq/internal/config"
	"github.com/phrazzld/asrq/internal/platform/logger"
)

type commandContext struct {
	configFlag *string

	once      sync.Once
	config    *config.Config
	logger    *slog.Logger
	configErr error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads configuration and sets up logging on first use.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		log, err := logger.Setup(cfg.Server)
		if err != nil {
			c.configErr = fmt.Errorf("set up logger: %w", err)
			return
		}
		c.config = cfg
		c.logger = log
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
