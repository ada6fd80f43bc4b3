package bot

import (
	"fmt"
	"sort"
	"strings"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
)

var lineColorEmoji = map[string]string{
	"red":   "🔴",
	"blue":  "🔵",
	"green": "🟢",
}

// formatRoute renders a route compactly with per-line-run times.
func formatRoute(n *metro.Network, route *model.Route, lang string) string {
	if len(route.Segments) == 0 {
		return ""
	}
	minText := i18n.T(lang, "min")

	first := route.Segments[0].From
	last := route.Segments[len(route.Segments)-1].To

	lines := []string{
		fmt.Sprintf("🚇 %s → %s", first.Name(lang), last.Name(lang)),
		fmt.Sprintf("⏱ %d %s", route.TotalDurationMinutes, minText),
		"",
	}

	for _, g := range route.LineGroups() {
		if g.IsTransfer {
			lines = append(lines, "")
			lines = append(lines, fmt.Sprintf("🔄 %s → %s (%d %s)",
				g.From.Name(lang), g.To.Name(lang), g.DurationMinutes, minText))
			lines = append(lines, "")
			continue
		}

		emoji := lineColorEmoji[n.Data.LineMeta[string(g.Line)].Color]
		if emoji == "" {
			emoji = "⚪"
		}
		timeStr := fmt.Sprintf("%d %s", g.DurationMinutes, minText)
		if !g.Departure.IsZero() && !g.Arrival.IsZero() {
			timeStr = g.Departure.Format("15:04") + " → " + g.Arrival.Format("15:04")
		}
		lines = append(lines, fmt.Sprintf("%s %s → %s", emoji, g.From.Name(lang), g.To.Name(lang)))
		lines = append(lines, fmt.Sprintf("• %s (%d %s)", timeStr, g.DurationMinutes, minText))
	}

	return strings.Join(lines, "\n")
}

// formatSchedule renders a station's schedules grouped by hour, one block
// per direction.
func formatSchedule(n *metro.Network, stationName string, schedules []*model.StationSchedule, lang string) string {
	if len(schedules) == 0 {
		return i18n.T(lang, "schedule_not_found")
	}

	dayKey := "weekday"
	if schedules[0].DayType == model.Weekend {
		dayKey = "weekend"
	}

	lines := []string{
		"🚇 " + stationName,
		"📅 " + i18n.T(lang, dayKey),
		"",
	}

	for _, sch := range schedules[:min(len(schedules), 2)] {
		direction := n.Station(sch.DirectionID)
		if direction == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("➡️ %s: %s", i18n.T(lang, "direction"), direction.Name(lang)))

		byHour := map[int][]int{}
		for _, e := range sch.Entries {
			byHour[e.Hour] = append(byHour[e.Hour], e.Minute)
		}
		hours := make([]int, 0, len(byHour))
		for h := range byHour {
			hours = append(hours, h)
		}
		sort.Ints(hours)

		for _, h := range hours {
			minutes := byHour[h]
			sort.Ints(minutes)
			parts := make([]string, len(minutes))
			for i, m := range minutes {
				parts[i] = fmt.Sprintf("%02d", m)
			}
			lines = append(lines, fmt.Sprintf("%02d: %s", h, strings.Join(parts, ", ")))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// formatStationsList renders a line's station list.
func formatStationsList(n *metro.Network, lineKey, lang string) string {
	meta := n.Data.LineMeta[lineKey]
	emoji := lineColorEmoji[meta.Color]
	if emoji == "" {
		emoji = "⚪"
	}

	lines := []string{fmt.Sprintf("%s %s:", emoji, n.Data.LineName(lineKey, lang)), ""}
	for _, st := range n.StationsOnLine(model.Line(lineKey)) {
		lines = append(lines, "  • "+st.Name(lang))
	}
	return strings.Join(lines, "\n")
}
