package bot

import (
	"fmt"
	"strconv"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
)

// Keyboard is a transport-neutral reply keyboard.
type Keyboard struct {
	Rows    [][]string
	OneTime bool
	Remove  bool
}

// InlineButton is a transport-neutral inline button with callback data.
type InlineButton struct {
	Text string
	Data string
}

// Buttons returns the flattened choice set of a keyboard, navigation row
// included. Stored as valid_choices for input validation.
func (k *Keyboard) Buttons() []string {
	out := []string{}
	for _, row := range k.Rows {
		for _, b := range row {
			out = append(out, b)
		}
	}
	return out
}

func navRow(lang string) []string {
	return []string{i18n.T(lang, "back"), i18n.T(lang, "cancel")}
}

func mainKeyboard(lang string) *Keyboard {
	return &Keyboard{Rows: [][]string{
		{i18n.T(lang, "route"), i18n.T(lang, "schedule")},
		{i18n.T(lang, "stations")},
	}}
}

// linesKeyboard lists the lines in the configured order, one per row.
func linesKeyboard(n *metro.Network, lang string) *Keyboard {
	rows := [][]string{}
	for _, lineKey := range n.Data.LineOrder {
		rows = append(rows, []string{n.Data.LineDisplayName(lineKey, lang)})
	}
	rows = append(rows, navRow(lang))
	return &Keyboard{Rows: rows, OneTime: true}
}

// stationsKeyboard groups station names two per row in line order.
func stationsKeyboard(stations []string, lang string) *Keyboard {
	rows := [][]string{}
	for i := 0; i < len(stations); i += 2 {
		row := stations[i:min(i+2, len(stations))]
		rows = append(rows, row)
	}
	rows = append(rows, navRow(lang))
	return &Keyboard{Rows: rows, OneTime: true}
}

func dayTypeKeyboard(lang string) *Keyboard {
	return &Keyboard{Rows: [][]string{
		{i18n.T(lang, "weekdays")},
		{i18n.T(lang, "weekends")},
		navRow(lang),
	}, OneTime: true}
}

func timeChoiceKeyboard(lang string) *Keyboard {
	return &Keyboard{Rows: [][]string{
		{i18n.T(lang, "time_minus_20"), i18n.T(lang, "time_minus_10")},
		{i18n.T(lang, "current_time")},
		{i18n.T(lang, "time_plus_10"), i18n.T(lang, "time_plus_20")},
		{i18n.T(lang, "custom_time")},
		navRow(lang),
	}, OneTime: true}
}

func languageKeyboard() *Keyboard {
	return &Keyboard{Rows: [][]string{
		{"🇺🇦 Українська"},
		{"🇬🇧 English"},
	}, OneTime: true}
}

// reminderKeyboard offers one inline button per line group with more than
// one hop. The payload is pipe-delimited and stays within the host's
// 64-byte callback-data budget. clickedIdx marks the group whose reminder
// is currently armed; its button flips to a cancel action.
func reminderKeyboard(fingerprint string, groups []model.LineGroup, lang string, clickedIdx int, remindTime string) [][]InlineButton {
	buttons := [][]InlineButton{}

	for idx, g := range groups {
		if g.IsTransfer || len(g.Segments) <= 1 {
			continue
		}

		if idx == clickedIdx {
			display := remindTime
			if display == "" {
				display = i18n.T(lang, "reminder_set_short")
			}
			buttons = append(buttons, []InlineButton{{
				Text: i18n.Tf(lang, "reminder_cancel_button", map[string]string{"time": display}),
				Data: fmt.Sprintf("remind_cancel|%s|%d", fingerprint, idx),
			}})
			continue
		}

		last := g.Segments[len(g.Segments)-1]
		var epoch int64
		if !last.Departure.IsZero() {
			epoch = last.Departure.Unix()
		}
		buttons = append(buttons, []InlineButton{{
			Text: i18n.Tf(lang, "reminder_button", map[string]string{"station": last.To.Name(lang)}),
			Data: "remind|" + fingerprint + "|" + strconv.Itoa(idx) + "|" + strconv.FormatInt(epoch, 10),
		}})
	}

	return buttons
}
