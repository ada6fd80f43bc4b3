package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/model"
)

var initOutput string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database with station data",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "table", "Output format (json|table)")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return failOutput(initOutput, err)
	}
	if err := cfg.EnsureDefault(); err != nil {
		return failOutput(initOutput, err)
	}

	store, err := openStore(cfg, false)
	if err != nil {
		return failOutput(initOutput, err)
	}

	network, err := metro.NewNetwork()
	if err != nil {
		return failOutput(initOutput, err)
	}

	if err := store.SaveStations(stationList(network)); err != nil {
		return failOutput(initOutput, err)
	}

	path := cfg.DBPath(dbPath)
	if initOutput == "json" {
		return printJSON(map[string]string{"status": "ok", "path": path})
	}
	fmt.Printf("\x1b[32m✓\x1b[0m Database initialized at: %s\n", path)
	return nil
}

// stationList flattens the network stations in (line, order) order for
// the seed upsert.
func stationList(network *metro.Network) []*model.Station {
	out := []*model.Station{}
	for _, line := range model.Lines {
		out = append(out, network.StationsOnLine(line)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return string(out[i].Line) < string(out[j].Line)
		}
		return out[i].Order < out[j].Order
	})
	return out
}
