package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yanet-platform/nd6/common/go/logging"
	"github.com/yanet-platform/nd6/common/go/xcmd"
	nd6 "github.com/yanet-platform/nd6/modules/nd6/controlplane"
	"github.com/yanet-platform/nd6/modules/nd6/internal/iface"
	"github.com/yanet-platform/nd6/modules/nd6/internal/rtable"
)

var runCmdArgs struct {
	ConfigPath string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the neighbor discovery control thread",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAgent(); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&runCmdArgs.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	runCmd.MarkFlagRequired("config")
}

// AgentConfig is the top-level nd6agent configuration: logging plus the
// control thread's tunables.
type AgentConfig struct {
	Logging logging.Config `yaml:"logging"`
	Nd6     nd6.Config      `yaml:"nd6"`
}

// DefaultAgentConfig returns the documented defaults for every section.
func DefaultAgentConfig() *AgentConfig {
	return &AgentConfig{
		Logging: *logging.DefaultConfig(),
		Nd6:     *nd6.DefaultConfig(),
	}
}

// LoadAgentConfig reads and unmarshals the configuration file at path,
// starting from the documented defaults.
func LoadAgentConfig(path string) (*AgentConfig, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultAgentConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}
	return cfg, nil
}

func runAgent() error {
	cfg, err := LoadAgentConfig(runCmdArgs.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Logging.Module = "nd6"
	if err := cfg.Nd6.Validate(); err != nil {
		return fmt.Errorf("invalid nd6 config: %w", err)
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer log.Sync()

	// A bare agent process has no dataplane feeding it routes or
	// interfaces yet, so it starts from an empty table and inventory.
	// An embedding program wires these from its own configuration
	// source before calling Run.
	routes := rtable.New()
	ifaces := iface.NewInventory()

	log.Infow("starting nd6agent",
		"num_nexthops", cfg.Nd6.NumNexthops,
		"nexthop_memory", cfg.Nd6.NexthopMemory,
		"probe_interval", cfg.Nd6.ProbeInterval,
		"reachable_lifetime", cfg.Nd6.ReachableLifetime,
	)

	ctl := nd6.NewController(&cfg.Nd6, routes, ifaces, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := xcmd.WaitInterrupted(ctx); err != nil {
			log.Infow("shutting down", "reason", err)
		}
		cancel()
	}()

	return ctl.Run(ctx)
}
