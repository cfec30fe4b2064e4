package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/sweeney/source-watcher/internal/config"
)

// program runs the watcher under a service manager.
type program struct {
	cfg    *config.Config
	cancel context.CancelCauseFunc
	done   chan error
	// exit ends the process when the watcher stops on its own.
	exit func(code int)
}

func newProgram(cfg *config.Config) *program {
	return &program{cfg: cfg, exit: os.Exit}
}

func (p *program) Start(s service.Service) error {
	// Start must not block.
	ctx, cancel := context.WithCancelCause(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := run(ctx, p.cfg)
		p.done <- err
		if errors.Is(context.Cause(ctx), errServiceStop) {
			return
		}
		// The source ended or run failed. s.Run only returns on a signal,
		// so exit and leave restarts to the service manager.
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			p.exit(1)
			return
		}
		p.exit(0)
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel(errServiceStop)
	select {
	case err := <-p.done:
		return err
	case <-time.After(10 * time.Second):
		return errors.New("timed out waiting for watcher to stop")
	}
}

func serviceConfig(cfgFile string) (*service.Config, error) {
	args := []string{"service", "run"}
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "source-watcher",
		DisplayName: "Source Watcher",
		Description: "Person detection and alerting for a camera stream",
		Arguments:   args,
	}, nil
}

var serviceCmd = &cobra.Command{
	Use:       "service install|uninstall|start|stop|restart|run",
	Short:     "Manage source-watcher as a system service",
	Args:      cobra.ExactArgs(1),
	ValidArgs: append([]string{"run"}, service.ControlAction[:]...),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := args[0]
		if action != "run" && !slices.Contains(service.ControlAction[:], action) {
			return fmt.Errorf("unknown service action %q", action)
		}

		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if action == "install" || action == "run" {
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		svcConfig, err := serviceConfig(cfgFile)
		if err != nil {
			return err
		}
		s, err := service.New(newProgram(cfg), svcConfig)
		if err != nil {
			return err
		}

		if action != "run" {
			if err := service.Control(s, action); err != nil {
				return fmt.Errorf("failed to %s service: %w", action, err)
			}
			fmt.Printf("Service action '%s' completed successfully.\n", action)
			return nil
		}

		return s.Run()
	},
}

func init() {
	rootCmd.AddCommand(serviceCmd)
}
