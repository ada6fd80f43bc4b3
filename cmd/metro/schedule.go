package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro/config"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
)

var (
	scheduleDirection string
	scheduleDayType   string
	scheduleLang      string
	scheduleOutput    string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <station>",
	Short: "Show the departure schedule for a station",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVarP(&scheduleDirection, "direction", "d", "", "Direction (terminal station name)")
	scheduleCmd.Flags().StringVarP(&scheduleDayType, "day-type", "s", "", "Day type (weekday|weekend)")
	scheduleCmd.Flags().StringVar(&scheduleLang, "lang", "", "Language (ua|en)")
	scheduleCmd.Flags().StringVarP(&scheduleOutput, "output", "o", "", "Output format (json|table)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return failOutput("table", err)
	}
	lang := scheduleLang
	if lang == "" {
		lang = cfg.GetString("preferences.language", "ua")
	}
	format := scheduleOutput
	if format == "" {
		format = cfg.GetString("preferences.output_format", "table")
	}

	store, err := openStore(cfg, true)
	if err != nil {
		return failOutput(format, err)
	}
	router, err := newRouter(store)
	if err != nil {
		return failOutput(format, err)
	}

	st, err := router.FindStation(args[0], lang)
	if err != nil {
		return failOutput(format, errors.Wrap(err, args[0]))
	}

	directionID := ""
	if scheduleDirection != "" {
		direction, err := router.FindStation(scheduleDirection, lang)
		if err != nil {
			return failOutput(format, errors.Wrap(err, scheduleDirection))
		}
		directionID = direction.ID
	}

	dayType := model.DayType(scheduleDayType)
	if dayType == "" {
		dayType = model.DayTypeFor(time.Now().In(config.Timezone()))
	}

	schedules, err := router.ScheduleForStation(st.ID, directionID, dayType)
	if err != nil {
		return failOutput(format, err)
	}
	if len(schedules) == 0 {
		return failOutput(format, errors.New(i18n.T(lang, "schedule_not_found")))
	}

	network := router.Network()

	if format == "json" {
		out := []map[string]interface{}{}
		for _, sch := range schedules {
			entries := make([]string, 0, len(sch.Entries))
			for _, e := range sch.Entries {
				entries = append(entries, e.String())
			}
			directionName := sch.DirectionID
			if d := network.Station(sch.DirectionID); d != nil {
				directionName = d.Name(lang)
			}
			out = append(out, map[string]interface{}{
				"station":   st.Name(lang),
				"direction": directionName,
				"day_type":  string(sch.DayType),
				"entries":   entries,
			})
		}
		return printJSON(out)
	}

	fmt.Printf("%s: %s (%s)\n\n", i18n.T(lang, "Station"), st.Name(lang), i18n.T(lang, string(dayType)))
	for _, sch := range schedules {
		directionName := sch.DirectionID
		if d := network.Station(sch.DirectionID); d != nil {
			directionName = d.Name(lang)
		}
		fmt.Printf("%s: %s\n", i18n.T(lang, "direction"), directionName)

		byHour := map[int][]int{}
		for _, e := range sch.Entries {
			byHour[e.Hour] = append(byHour[e.Hour], e.Minute)
		}
		hours := make([]int, 0, len(byHour))
		for h := range byHour {
			hours = append(hours, h)
		}
		sort.Ints(hours)

		rows := make([][]string, 0, len(hours))
		for _, h := range hours {
			minutes := byHour[h]
			sort.Ints(minutes)
			parts := make([]string, len(minutes))
			for i, m := range minutes {
				parts[i] = fmt.Sprintf("%02d", m)
			}
			rows = append(rows, []string{fmt.Sprintf("%02d", h), strings.Join(parts, ", ")})
		}
		printTable([]string{i18n.T(lang, "Hour"), i18n.T(lang, "Time")}, rows)
		fmt.Println()
	}
	return nil
}
