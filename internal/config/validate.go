package config

import (
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSpawn(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q (want debug, info, warn, or error)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSpawn() error {
	if c.Spawn.ListenBacklog < 1 || c.Spawn.ListenBacklog > maxListenBacklog {
		return fmt.Errorf("spawn.listen_backlog must be between 1 and %d, got %d", maxListenBacklog, c.Spawn.ListenBacklog)
	}
	return nil
}
