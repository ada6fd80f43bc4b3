package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/config"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
)

var (
	routeTime    string
	routeDate    string
	routeDayType string
	routeLang    string
	routeFormat  string
	routeCompact bool
)

var routeCmd = &cobra.Command{
	Use:   "route <from> <to>",
	Short: "Find a route between two stations",
	Args:  cobra.ExactArgs(2),
	RunE:  runRoute,
}

func init() {
	routeCmd.Flags().StringVarP(&routeTime, "time", "t", "", "Departure time (HH:MM)")
	routeCmd.Flags().StringVarP(&routeDate, "date", "d", "", "Departure date (YYYY-MM-DD)")
	routeCmd.Flags().StringVarP(&routeDayType, "day-type", "s", "", "Day type (weekday|weekend, overrides date)")
	routeCmd.Flags().StringVarP(&routeLang, "lang", "l", "", "Language for station names (ua|en)")
	routeCmd.Flags().StringVarP(&routeFormat, "format", "f", "", "Output format (full|simple|json)")
	routeCmd.Flags().BoolVarP(&routeCompact, "compact", "c", false, "Invert the configured compact setting (compact shows only start, transfers, end)")
}

func runRoute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return failOutput("full", err)
	}
	lang := routeLang
	if lang == "" {
		lang = cfg.GetString("preferences.language", "ua")
	}
	format := routeFormat
	if format == "" {
		format = cfg.GetString("preferences.route.format", "full")
	}
	compact := cfg.GetBool("preferences.route.compact", false)
	if routeCompact {
		compact = !compact
	}

	store, err := openStore(cfg, true)
	if err != nil {
		return failOutput(format, err)
	}
	router, err := newRouter(store)
	if err != nil {
		return failOutput(format, err)
	}

	from, err := router.FindStation(args[0], lang)
	if err != nil {
		return failOutput(format, errors.Wrap(err, args[0]))
	}
	to, err := router.FindStation(args[1], lang)
	if err != nil {
		return failOutput(format, errors.Wrap(err, args[1]))
	}

	departure, err := resolveDeparture()
	if err != nil {
		return failOutput(format, err)
	}

	route, err := router.FindRoute(from.ID, to.ID, departure, model.DayType(routeDayType))
	switch {
	case errors.Is(err, metro.ErrMetroClosed):
		return failOutput(format, errors.New("Метро закрите та/або на останній потяг неможливо встигнути"))
	case errors.Is(err, metro.ErrNoRoute):
		return failOutput(format, errors.New("no route found"))
	case err != nil:
		return failOutput(format, err)
	}

	switch format {
	case "json":
		return printJSON(map[string]interface{}{
			"from":  from.Name(lang),
			"to":    to.Name(lang),
			"route": routeJSON(route, lang),
		})
	case "simple":
		printRouteSimple(route, lang, compact)
	default:
		printRouteTable(router.Network(), route, lang, compact)
	}
	return nil
}

func resolveDeparture() (time.Time, error) {
	loc := config.Timezone()
	now := time.Now().In(loc)

	hour, minute := now.Hour(), now.Minute()
	if routeTime != "" {
		parts := strings.SplitN(routeTime, ":", 2)
		if len(parts) != 2 {
			return time.Time{}, errors.Errorf("invalid time: %s", routeTime)
		}
		var err1, err2 error
		hour, err1 = strconv.Atoi(parts[0])
		minute, err2 = strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || hour > 23 || minute > 59 {
			return time.Time{}, errors.Errorf("invalid time: %s", routeTime)
		}
	}

	if routeDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", routeDate, loc)
		if err != nil {
			return time.Time{}, errors.Errorf("invalid date: %s", routeDate)
		}
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, loc), nil
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc), nil
}

func routeJSON(route *model.Route, lang string) map[string]interface{} {
	segments := make([]map[string]interface{}, 0, len(route.Segments))
	for _, seg := range route.Segments {
		segments = append(segments, map[string]interface{}{
			"from_station":     seg.From.Name(lang),
			"to_station":       seg.To.Name(lang),
			"departure_time":   jsonTime(seg.Departure),
			"arrival_time":     jsonTime(seg.Arrival),
			"is_transfer":      seg.IsTransfer,
			"duration_minutes": seg.DurationMinutes,
		})
	}
	return map[string]interface{}{
		"total_duration_minutes": route.TotalDurationMinutes,
		"num_transfers":          route.NumTransfers,
		"departure_time":         jsonTime(route.Departure),
		"arrival_time":           jsonTime(route.Arrival),
		"segments":               segments,
	}
}

func jsonTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func printRouteSimple(route *model.Route, lang string, compact bool) {
	fmt.Println(route.Path(lang, compact))
	minText := i18n.T(lang, "min")
	if !route.Departure.IsZero() && !route.Arrival.IsZero() {
		fmt.Printf("%s → %s | %d %s, %s\n",
			route.Departure.Format("15:04"), route.Arrival.Format("15:04"),
			route.TotalDurationMinutes, minText, i18n.Transfers(lang, route.NumTransfers))
	} else {
		fmt.Printf("%d %s, %s\n", route.TotalDurationMinutes, minText, i18n.Transfers(lang, route.NumTransfers))
	}
}

func printRouteTable(network *metro.Network, route *model.Route, lang string, compact bool) {
	minText := i18n.T(lang, "min")

	fmt.Printf("%s: %s → %s\n", i18n.T(lang, "route"),
		route.Segments[0].From.Name(lang),
		route.Segments[len(route.Segments)-1].To.Name(lang))
	if !route.Departure.IsZero() && !route.Arrival.IsZero() {
		fmt.Printf("%s: %s → %s (%d %s, %s)\n\n", i18n.T(lang, "Time"),
			route.Departure.Format("15:04"), route.Arrival.Format("15:04"),
			route.TotalDurationMinutes, minText, i18n.Transfers(lang, route.NumTransfers))
	}

	rows := [][]string{}
	if compact {
		for _, g := range route.LineGroups() {
			kind := network.Data.LineName(string(g.Line), lang)
			if g.IsTransfer {
				kind = i18n.T(lang, "Transfer")
			}
			rows = append(rows, []string{
				g.From.Name(lang), g.To.Name(lang), kind,
				timeRange(g.Departure, g.Arrival), fmt.Sprintf("%d %s", g.DurationMinutes, minText),
			})
		}
	} else {
		for _, seg := range route.Segments {
			kind := network.Data.LineName(string(seg.From.Line), lang)
			if seg.IsTransfer {
				kind = i18n.T(lang, "Transfer")
			}
			rows = append(rows, []string{
				seg.From.Name(lang), seg.To.Name(lang), kind,
				timeRange(seg.Departure, seg.Arrival), fmt.Sprintf("%d %s", seg.DurationMinutes, minText),
			})
		}
	}

	printTable([]string{
		i18n.T(lang, "From"), i18n.T(lang, "To"), i18n.T(lang, "Line"),
		i18n.T(lang, "Time"), i18n.T(lang, "min"),
	}, rows)
}

func timeRange(from, to time.Time) string {
	if from.IsZero() || to.IsZero() {
		return ""
	}
	return from.Format("15:04") + " → " + to.Format("15:04")
}
