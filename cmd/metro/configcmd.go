package main

import (
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return failOutput("table", err)
		}
		data, err := toml.Marshal(cfg.Values())
		if err != nil {
			return failOutput("table", err)
		}
		fmt.Printf("# %s\n%s", cfg.ConfigPath(), string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return failOutput("table", err)
		}
		if err := cfg.Set(args[0], coerce(args[1])); err != nil {
			return failOutput("table", err)
		}
		fmt.Printf("\x1b[32m✓\x1b[0m %s = %s\n", args[0], args[1])
		return nil
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset configuration to defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return failOutput("table", err)
		}
		if err := cfg.Reset(); err != nil {
			return failOutput("table", err)
		}
		fmt.Println("\x1b[32m✓\x1b[0m Configuration reset to defaults")
		return nil
	},
}

var configOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the configuration file in the system editor",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return failOutput("table", err)
		}
		if err := cfg.EnsureDefault(); err != nil {
			return failOutput("table", err)
		}

		var opener string
		switch runtime.GOOS {
		case "darwin":
			opener = "open"
		case "windows":
			opener = "explorer"
		default:
			opener = "xdg-open"
		}
		if err := exec.Command(opener, cfg.ConfigPath()).Start(); err != nil {
			return failOutput("table", err)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configOpenCmd)
}

// coerce interprets booleans and integers so "config set" stores typed
// values.
func coerce(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
