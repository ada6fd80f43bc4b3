package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/model"
	"kharkivmetro.dev/metro/scrape"
)

var (
	scrapeInitDB bool
	scrapeOutput string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape and update schedules from metro.kharkiv.ua",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeInitDB, "init-db", false, "Initialize database with stations before scraping")
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "table", "Output format (json|table)")
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return failOutput(scrapeOutput, err)
	}

	store, err := openStore(cfg, !scrapeInitDB)
	if err != nil {
		return failOutput(scrapeOutput, err)
	}

	network, err := metro.NewNetwork()
	if err != nil {
		return failOutput(scrapeOutput, err)
	}

	if scrapeInitDB {
		if err := store.SaveStations(stationList(network)); err != nil {
			return failOutput(scrapeOutput, err)
		}
	}

	if scrapeOutput == "table" {
		fmt.Println("Scraping schedules from metro.kharkiv.ua...")
		fmt.Println("This may take a few minutes...")
	}

	timeout := time.Duration(cfg.GetInt("scraper.timeout", 30)) * time.Second
	userAgent := cfg.GetString("scraper.user_agent", "kharkiv-metro/1.0")

	scraper := scrape.New("", timeout, userAgent, network.Stations(), slog.Default())
	byStation, err := scraper.ScrapeAll()
	if err != nil {
		return failOutput(scrapeOutput, err)
	}

	all := []*model.StationSchedule{}
	for _, schedules := range byStation {
		all = append(all, schedules...)
	}

	count, err := store.SaveSchedules(all)
	if err != nil {
		return failOutput(scrapeOutput, err)
	}

	if scrapeOutput == "json" {
		return printJSON(map[string]interface{}{
			"status":          "ok",
			"schedules_saved": count,
			"stations":        len(byStation),
		})
	}
	fmt.Printf("\x1b[32m✓\x1b[0m Saved %d schedule entries from %d stations\n", count, len(byStation))
	return nil
}
