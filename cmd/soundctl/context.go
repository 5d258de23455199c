package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/deepp5/catrack/internal/bootstrap"
	"github.com/deepp5/catrack/internal/config"
	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/logger"
)

var errMachineRequired = errors.New("--machine is required")

type globalFlags struct {
	config  string
	machine string
	mode    string
	json    bool
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.flags.config)
		var (
			cfg *config.Config
			err error
		)
		if path == "" {
			cfg, err = config.Load(context.Background())
		} else {
			cfg, err = config.LoadFile(context.Background(), path)
		}
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// key resolves --machine/--mode, falling back to the configured default mode.
func (c *commandContext) key() (model.Key, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return model.Key{}, err
	}
	machine := strings.TrimSpace(c.flags.machine)
	if machine == "" {
		return model.Key{}, errMachineRequired
	}
	mode := strings.TrimSpace(c.flags.mode)
	if mode == "" {
		mode = cfg.DefaultMode
	}
	key := model.Key{MachineID: machine, Mode: mode}
	return key, key.Validate()
}

// initLogging sends logs to stderr so stdout stays parseable.
func (c *commandContext) initLogging(cmd *cobra.Command, cfg *config.Config) error {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
		return err
	}
	level := "warn"
	if c.flags.verbose {
		level = cfg.LogLevel
	}
	return logger.SetLevelString(level)
}

// withRuntime opens the store, fetcher and engine for the duration of fn.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(context.Context, *bootstrap.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if err := c.initLogging(cmd, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := bootstrap.Open(ctx, cfg, logger.Named("soundctl"))
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()
	return fn(ctx, rt)
}
