package main

import (
	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
)

var (
	stationsLine   string
	stationsLang   string
	stationsOutput string
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List all stations",
	RunE:  runStations,
}

// Short aliases for the line keys.
var lineAliases = map[string]string{
	"k": "kholodnohirsko_zavodska",
	"s": "saltivska",
	"o": "oleksiivska",
}

func init() {
	stationsCmd.Flags().StringVarP(&stationsLine, "line", "l", "", "Filter by line (k|s|o or full key)")
	stationsCmd.Flags().StringVar(&stationsLang, "lang", "", "Language (ua|en)")
	stationsCmd.Flags().StringVarP(&stationsOutput, "output", "o", "", "Output format (json|table)")
}

func runStations(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return failOutput("table", err)
	}
	lang := stationsLang
	if lang == "" {
		lang = cfg.GetString("preferences.language", "ua")
	}
	format := stationsOutput
	if format == "" {
		format = cfg.GetString("preferences.output_format", "table")
	}

	store, err := openStore(cfg, true)
	if err != nil {
		return failOutput(format, err)
	}

	network, err := metro.NewNetwork()
	if err != nil {
		return failOutput(format, err)
	}

	var stations []*model.Station
	if stationsLine != "" {
		lineKey := stationsLine
		if full, ok := lineAliases[lineKey]; ok {
			lineKey = full
		}
		stations, err = store.GetStationsByLine(model.Line(lineKey))
	} else {
		stations, err = store.GetAllStations()
	}
	if err != nil {
		return failOutput(format, err)
	}

	if format == "json" {
		type row struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Line string `json:"line"`
		}
		rows := make([]row, 0, len(stations))
		for _, st := range stations {
			rows = append(rows, row{
				ID:   st.ID,
				Name: st.Name(lang),
				Line: network.Data.LineName(string(st.Line), lang),
			})
		}
		return printJSON(rows)
	}

	rows := make([][]string, 0, len(stations))
	for _, st := range stations {
		rows = append(rows, []string{network.Data.LineName(string(st.Line), lang), st.Name(lang)})
	}
	printTable([]string{i18n.T(lang, "Line"), i18n.T(lang, "Station")}, rows)
	return nil
}
