package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"warmstart/internal/config"
	"warmstart/internal/stub"
)

// configInit writes the sample configuration to PATH, $WARMSTART_CONFIG, or
// the default location, in that order. An existing file is left untouched.
func (d *daemonCommand) configInit(args []string) error {
	if len(args) > 1 {
		d.status = stub.ExitUsage
		return fmt.Errorf("usage: warmstart-daemon %s [PATH]", configInitMode)
	}

	target := ""
	if len(args) == 1 {
		target = strings.TrimSpace(args[0])
	}
	if target == "" {
		target = strings.TrimSpace(os.Getenv(config.EnvConfigPath))
	}

	var err error
	if target == "" {
		target, err = config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("determine default config path: %w", err)
		}
	} else {
		target, err = config.ExpandPath(target)
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
	}

	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("config file already exists at %s", target)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check config path: %w", err)
	}

	if err := config.CreateSample(target); err != nil {
		return fmt.Errorf("create sample config: %w", err)
	}
	fmt.Fprintf(d.stdout, "Wrote sample configuration to %s\n", target)
	return nil
}
