// Package bot implements the conversation layer: a per-session finite
// state machine persisted in the store, keyboard generation, the durable
// exit-reminder scheduler and the Telegram transport adapter.
package bot

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/config"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
	"kharkivmetro.dev/metro/storage"

	"github.com/pkg/errors"
)

// Conversation states. Stored as strings in the session table.
const (
	stateRouteFromLine    = "route:from_line"
	stateRouteFromStation = "route:from_station"
	stateRouteToLine      = "route:to_line"
	stateRouteToStation   = "route:to_station"
	stateRouteTimeChoice  = "route:time_choice"
	stateRouteDayType     = "route:day_type"
	stateRouteCustomTime  = "route:custom_time"

	stateScheduleLine    = "schedule:line"
	stateScheduleStation = "schedule:station"
	stateScheduleDayType = "schedule:day_type"

	stateStationsLine = "stations:line"

	stateLanguage = "language"
)

// SessionTTL is how long an untouched session survives before the
// cleanup loop collects it.
const SessionTTL = 12 * time.Hour

var customTimeRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// Message is one inbound text message.
type Message struct {
	ChatID int64
	UserID int64
	Text   string
}

// Callback is one inbound inline-button press.
type Callback struct {
	ID        string
	ChatID    int64
	UserID    int64
	MessageID int
	Data      string
}

// Sender is the transport contract the engine drives. The Telegram
// adapter implements it; tests use a recorder.
type Sender interface {
	TextSender
	Send(chatID int64, text string, kb *Keyboard) (messageID int, err error)
	Edit(chatID int64, messageID int, text string, kb *Keyboard) error
	SendInline(chatID int64, text string, buttons [][]InlineButton) (int, error)
	EditInlineKeyboard(chatID int64, messageID int, buttons [][]InlineButton) error
	AnswerCallback(callbackID, text string) error
}

// Engine is the deterministic conversation state machine.
type Engine struct {
	store     *storage.Store
	router    *metro.Router
	network   *metro.Network
	cfg       *config.Config
	sender    Sender
	reminders *Scheduler
	routes    *routeCache
	loc       *time.Location
	logger    *slog.Logger
	adminID   int64

	// display line name (any language) -> line key
	displayToLine map[string]string

	// for tests: overrides time.Now
	now func() time.Time
}

// NewEngine wires the conversation engine.
func NewEngine(store *storage.Store, router *metro.Router, cfg *config.Config, sender Sender, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	network := router.Network()

	displayToLine := map[string]string{}
	for _, lineKey := range network.Data.LineOrder {
		displayToLine[network.Data.LineDisplayName(lineKey, "ua")] = lineKey
		displayToLine[network.Data.LineDisplayName(lineKey, "en")] = lineKey
	}

	e := &Engine{
		store:         store,
		router:        router,
		network:       network,
		cfg:           cfg,
		sender:        sender,
		routes:        newRouteCache(256),
		loc:           router.Location(),
		logger:        logger,
		adminID:       config.AdminUserID(),
		displayToLine: displayToLine,
		now:           func() time.Time { return time.Now() },
	}
	e.reminders = NewScheduler(store, network, sender, logger)
	return e
}

// Reminders exposes the scheduler for restore and shutdown.
func (e *Engine) Reminders() *Scheduler { return e.reminders }

func (e *Engine) sessionKey(m Message) storage.SessionKey {
	return storage.SessionKey{ChatID: m.ChatID, UserID: m.UserID, Destiny: storage.DefaultDestiny}
}

func (e *Engine) langFor(userID int64) string {
	if !e.cfg.UserDataEnabled() {
		return i18n.DefaultLanguage
	}
	lang, err := e.store.UserLanguage(userID, i18n.DefaultLanguage)
	if err != nil {
		return i18n.DefaultLanguage
	}
	return lang
}

// HandleMessage runs one FSM step. Errors are logged, never surfaced to
// the transport: the bot is always recoverable via /start.
func (e *Engine) HandleMessage(m Message) {
	if err := e.handleMessage(m); err != nil {
		e.logger.Error("handling message", "chat_id", m.ChatID, "error", err)
	}
}

func (e *Engine) handleMessage(m Message) error {
	key := e.sessionKey(m)
	lang := e.langFor(m.UserID)
	text := strings.TrimSpace(m.Text)

	if strings.HasPrefix(text, "/") {
		return e.handleCommand(m, key, lang, text)
	}

	state, err := e.store.GetState(key)
	if err != nil {
		return err
	}

	if state == "" {
		return e.handleMenu(m, key, lang, text)
	}

	// Universal controls come before the state handlers.
	switch text {
	case i18n.T("ua", "cancel"), i18n.T("en", "cancel"):
		return e.cancel(m, key, lang, state)
	case i18n.T("ua", "back"), i18n.T("en", "back"):
		return e.back(m, key, lang, state)
	}

	switch state {
	case stateLanguage:
		return e.handleLanguageChoice(m, key, lang, text)
	case stateRouteFromLine:
		return e.handleRouteFromLine(m, key, lang, text)
	case stateRouteFromStation:
		return e.handleRouteFromStation(m, key, lang, text)
	case stateRouteToLine:
		return e.handleRouteToLine(m, key, lang, text)
	case stateRouteToStation:
		return e.handleRouteToStation(m, key, lang, text)
	case stateRouteTimeChoice:
		return e.handleTimeChoice(m, key, lang, text)
	case stateRouteDayType:
		return e.handleRouteDayType(m, key, lang, text)
	case stateRouteCustomTime:
		return e.handleCustomTime(m, key, lang, text)
	case stateScheduleLine:
		return e.handleScheduleLine(m, key, lang, text)
	case stateScheduleStation:
		return e.handleScheduleStation(m, key, lang, text)
	case stateScheduleDayType:
		return e.handleScheduleDayType(m, key, lang, text)
	case stateStationsLine:
		return e.handleStationsLine(m, key, lang, text)
	}

	// Unknown persisted state, e.g. after an upgrade: restart cleanly.
	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	_, err = e.sender.Send(m.ChatID, i18n.T(lang, "session_restored"), mainKeyboard(lang))
	return err
}

func (e *Engine) handleCommand(m Message, key storage.SessionKey, lang, text string) error {
	cmd := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "start":
		e.track(m.UserID, "start")
		if err := e.store.ClearSession(key); err != nil {
			return err
		}
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "start_message"), mainKeyboard(lang))
		return err
	case "about":
		e.track(m.UserID, "about")
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "about_message"), mainKeyboard(lang))
		return err
	case "lang":
		if err := e.store.SetState(key, stateLanguage); err != nil {
			return err
		}
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "select_language"), languageKeyboard())
		return err
	case "route":
		e.track(m.UserID, "route")
		return e.startRouteFlow(m, key, lang)
	case "schedule":
		e.track(m.UserID, "schedule")
		args := strings.SplitN(text, " ", 2)
		if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
			return e.directSchedule(m, key, lang, strings.TrimSpace(args[1]))
		}
		return e.startScheduleFlow(m, key, lang)
	case "stations":
		e.track(m.UserID, "stations")
		return e.startStationsFlow(m, key, lang)
	case "stats":
		return e.handleStats(m, lang)
	case "wipe":
		return e.handleWipe(m, key, lang)
	}

	_, err := e.sender.Send(m.ChatID, i18n.T(lang, "start_message"), mainKeyboard(lang))
	return err
}

func (e *Engine) handleMenu(m Message, key storage.SessionKey, lang, text string) error {
	switch text {
	case i18n.T("ua", "route"), i18n.T("en", "route"):
		e.track(m.UserID, "route")
		return e.startRouteFlow(m, key, lang)
	case i18n.T("ua", "schedule"), i18n.T("en", "schedule"):
		e.track(m.UserID, "schedule")
		return e.startScheduleFlow(m, key, lang)
	case i18n.T("ua", "stations"), i18n.T("en", "stations"):
		e.track(m.UserID, "stations")
		return e.startStationsFlow(m, key, lang)
	case "🇺🇦 Українська":
		return e.setLanguage(m, key, "ua")
	case "🇬🇧 English":
		return e.setLanguage(m, key, "en")
	}

	// Catch-all outside any flow: re-send the main menu.
	_, err := e.sender.Send(m.ChatID, i18n.T(lang, "start_message"), mainKeyboard(lang))
	return err
}

// prompt sends a prompt, preferring to edit the active message in place,
// and records the new state plus the accepted choice set.
func (e *Engine) prompt(m Message, key storage.SessionKey, state, text string, kb *Keyboard) error {
	if err := e.store.SetState(key, state); err != nil {
		return err
	}

	data, err := e.store.GetData(key)
	if err != nil {
		return err
	}

	patch := map[string]interface{}{"valid_choices": kb.Buttons()}

	if raw, ok := data["active_message_id"].(float64); ok {
		if err := e.sender.Edit(m.ChatID, int(raw), text, kb); err == nil {
			_, err = e.store.UpdateData(key, patch)
			return err
		}
	}

	msgID, err := e.sender.Send(m.ChatID, text, kb)
	if err != nil {
		return err
	}
	patch["active_message_id"] = msgID
	_, err = e.store.UpdateData(key, patch)
	return err
}

func (e *Engine) rejectChoice(m Message, lang, errKey string, kb *Keyboard) error {
	_, err := e.sender.Send(m.ChatID, i18n.T(lang, errKey), kb)
	return err
}

func (e *Engine) validChoice(key storage.SessionKey, text string) (bool, error) {
	data, err := e.store.GetData(key)
	if err != nil {
		return false, err
	}
	raw, ok := data["valid_choices"].([]interface{})
	if !ok {
		return true, nil
	}
	for _, v := range raw {
		if s, ok := v.(string); ok && s == text {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) cancel(m Message, key storage.SessionKey, lang, state string) error {
	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	msgKey := "error_cancelled"
	switch {
	case strings.HasPrefix(state, "schedule:"):
		msgKey = "schedule_cancelled"
	case strings.HasPrefix(state, "stations:"):
		msgKey = "stations_cancelled"
	}
	_, err := e.sender.Send(m.ChatID, i18n.T(lang, msgKey), mainKeyboard(lang))
	return err
}

// back pops one step, restoring the previous prompt from session data.
func (e *Engine) back(m Message, key storage.SessionKey, lang, state string) error {
	switch state {
	case stateRouteFromLine, stateScheduleLine, stateStationsLine, stateLanguage:
		if err := e.store.ClearSession(key); err != nil {
			return err
		}
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "main_menu"), mainKeyboard(lang))
		return err
	case stateRouteFromStation:
		return e.prompt(m, key, stateRouteFromLine, i18n.T(lang, "from_station_prompt"), linesKeyboard(e.network, lang))
	case stateRouteToLine:
		return e.promptStations(m, key, lang, stateRouteFromStation, "from_line", "")
	case stateRouteToStation:
		return e.prompt(m, key, stateRouteToLine, i18n.T(lang, "to_station_prompt"), linesKeyboard(e.network, lang))
	case stateRouteTimeChoice:
		return e.promptStations(m, key, lang, stateRouteToStation, "to_line", "from_station")
	case stateRouteDayType:
		return e.prompt(m, key, stateRouteTimeChoice, i18n.T(lang, "time_prompt"), timeChoiceKeyboard(lang))
	case stateRouteCustomTime:
		return e.prompt(m, key, stateRouteDayType, i18n.T(lang, "day_type_prompt"), dayTypeKeyboard(lang))
	case stateScheduleStation:
		return e.prompt(m, key, stateScheduleLine, i18n.T(lang, "select_line"), linesKeyboard(e.network, lang))
	case stateScheduleDayType:
		return e.promptStations(m, key, lang, stateScheduleStation, "schedule_line", "")
	}

	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	_, err := e.sender.Send(m.ChatID, i18n.T(lang, "main_menu"), mainKeyboard(lang))
	return err
}

// promptStations re-prompts a station keyboard for the line stored under
// lineKey, optionally excluding the station stored under excludeKey.
func (e *Engine) promptStations(m Message, key storage.SessionKey, lang, state, lineKey, excludeKey string) error {
	data, err := e.store.GetData(key)
	if err != nil {
		return err
	}
	lineID, _ := data[lineKey].(string)
	exclude := ""
	if excludeKey != "" {
		exclude, _ = data[excludeKey].(string)
	}

	names := e.stationNames(lineID, lang, exclude)
	text := i18n.Tf(lang, "select_station_line", map[string]string{
		"line": e.network.Data.LineDisplayName(lineID, lang),
	})
	return e.prompt(m, key, state, text, stationsKeyboard(names, lang))
}

// stationNames lists a line's station display names in line order,
// excluding the named station when set.
func (e *Engine) stationNames(lineKey, lang, exclude string) []string {
	names := []string{}
	for _, st := range e.network.StationsOnLine(model.Line(lineKey)) {
		if exclude != "" && (st.NameUA == exclude || st.NameEN == exclude) {
			continue
		}
		names = append(names, st.Name(lang))
	}
	return names
}

func (e *Engine) setLanguage(m Message, key storage.SessionKey, lang string) error {
	if e.cfg.UserDataEnabled() {
		if err := e.store.SetUserLanguage(m.UserID, lang); err != nil {
			return err
		}
	}
	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	_, err := e.sender.Send(m.ChatID, i18n.T(lang, "language_set"), mainKeyboard(lang))
	return err
}

func (e *Engine) handleLanguageChoice(m Message, key storage.SessionKey, lang, text string) error {
	switch text {
	case "🇺🇦 Українська":
		return e.setLanguage(m, key, "ua")
	case "🇬🇧 English":
		return e.setLanguage(m, key, "en")
	}
	return e.rejectChoice(m, lang, "error_unknown_choice", languageKeyboard())
}

func (e *Engine) handleStats(m Message, lang string) error {
	if e.adminID == 0 || m.UserID != e.adminID {
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "start_message"), mainKeyboard(lang))
		return err
	}
	stats, err := e.store.Stats(e.now().In(e.loc))
	if err != nil {
		return err
	}
	lines := []string{
		fmt.Sprintf("👥 Users: %d", stats.TotalUsers),
		fmt.Sprintf("📊 Active today: %d", stats.ActiveToday),
		fmt.Sprintf("📈 Active this week: %d", stats.ActiveThisWeek),
		"",
	}
	for feature, count := range stats.FeatureUsage {
		lines = append(lines, fmt.Sprintf("• %s: %d", feature, count))
	}
	_, err = e.sender.Send(m.ChatID, strings.Join(lines, "\n"), mainKeyboard(lang))
	return err
}

func (e *Engine) handleWipe(m Message, key storage.SessionKey, lang string) error {
	if err := e.reminders.Cancel(m.UserID); err != nil {
		e.logger.Error("cancelling reminders on wipe", "user_id", m.UserID, "error", err)
	}
	if _, err := e.store.DeleteUserData(m.UserID); err != nil {
		return err
	}
	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	_, err := e.sender.Send(m.ChatID, i18n.T(lang, "data_deleted"), mainKeyboard(lang))
	return err
}

// --- route flow ---

func (e *Engine) startRouteFlow(m Message, key storage.SessionKey, lang string) error {
	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	return e.prompt(m, key, stateRouteFromLine, i18n.T(lang, "from_station_prompt"), linesKeyboard(e.network, lang))
}

func (e *Engine) handleRouteFromLine(m Message, key storage.SessionKey, lang, text string) error {
	lineKey, ok := e.displayToLine[text]
	if !ok {
		return e.rejectChoice(m, lang, "error_unknown_line", linesKeyboard(e.network, lang))
	}
	if _, err := e.store.UpdateData(key, map[string]interface{}{"from_line": lineKey}); err != nil {
		return err
	}
	return e.promptStations(m, key, lang, stateRouteFromStation, "from_line", "")
}

func (e *Engine) handleRouteFromStation(m Message, key storage.SessionKey, lang, text string) error {
	ok, err := e.validChoice(key, text)
	if err != nil {
		return err
	}
	if !ok {
		data, _ := e.store.GetData(key)
		lineID, _ := data["from_line"].(string)
		return e.rejectChoice(m, lang, "error_unknown_choice", stationsKeyboard(e.stationNames(lineID, lang, ""), lang))
	}
	if _, err := e.store.UpdateData(key, map[string]interface{}{"from_station": text}); err != nil {
		return err
	}
	return e.prompt(m, key, stateRouteToLine, i18n.T(lang, "to_station_prompt"), linesKeyboard(e.network, lang))
}

func (e *Engine) handleRouteToLine(m Message, key storage.SessionKey, lang, text string) error {
	lineKey, ok := e.displayToLine[text]
	if !ok {
		return e.rejectChoice(m, lang, "error_unknown_line", linesKeyboard(e.network, lang))
	}
	if _, err := e.store.UpdateData(key, map[string]interface{}{"to_line": lineKey}); err != nil {
		return err
	}
	return e.promptStations(m, key, lang, stateRouteToStation, "to_line", "from_station")
}

func (e *Engine) handleRouteToStation(m Message, key storage.SessionKey, lang, text string) error {
	ok, err := e.validChoice(key, text)
	if err != nil {
		return err
	}
	if !ok {
		data, _ := e.store.GetData(key)
		lineID, _ := data["to_line"].(string)
		exclude, _ := data["from_station"].(string)
		return e.rejectChoice(m, lang, "error_unknown_choice", stationsKeyboard(e.stationNames(lineID, lang, exclude), lang))
	}
	if _, err := e.store.UpdateData(key, map[string]interface{}{"to_station": text}); err != nil {
		return err
	}
	return e.prompt(m, key, stateRouteTimeChoice, i18n.T(lang, "time_prompt"), timeChoiceKeyboard(lang))
}

func (e *Engine) handleTimeChoice(m Message, key storage.SessionKey, lang, text string) error {
	now := e.now().In(e.loc)

	var departure time.Time
	switch text {
	case i18n.T(lang, "current_time"):
		departure = now
	case i18n.T(lang, "time_minus_20"):
		departure = now.Add(-20 * time.Minute)
	case i18n.T(lang, "time_minus_10"):
		departure = now.Add(-10 * time.Minute)
	case i18n.T(lang, "time_plus_10"):
		departure = now.Add(10 * time.Minute)
	case i18n.T(lang, "time_plus_20"):
		departure = now.Add(20 * time.Minute)
	case i18n.T(lang, "custom_time"):
		return e.prompt(m, key, stateRouteDayType, i18n.T(lang, "day_type_prompt"), dayTypeKeyboard(lang))
	default:
		return e.rejectChoice(m, lang, "error_unknown_choice", timeChoiceKeyboard(lang))
	}

	return e.buildAndSendRoute(m, key, lang, departure, "")
}

func (e *Engine) handleRouteDayType(m Message, key storage.SessionKey, lang, text string) error {
	dayType, ok := parseDayTypeChoice(text)
	if !ok {
		return e.rejectChoice(m, lang, "error_unknown_choice", dayTypeKeyboard(lang))
	}
	if _, err := e.store.UpdateData(key, map[string]interface{}{"day_type": string(dayType)}); err != nil {
		return err
	}
	return e.prompt(m, key, stateRouteCustomTime, i18n.T(lang, "custom_time_prompt"), &Keyboard{Remove: true})
}

func (e *Engine) handleCustomTime(m Message, key storage.SessionKey, lang, text string) error {
	if !customTimeRe.MatchString(text) {
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "error_invalid_time_format"), &Keyboard{Remove: true})
		return err
	}
	parts := strings.SplitN(text, ":", 2)
	hour, _ := strconv.Atoi(parts[0])
	minute, _ := strconv.Atoi(parts[1])
	if hour > 23 || minute > 59 {
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "error_invalid_time"), &Keyboard{Remove: true})
		return err
	}

	data, err := e.store.GetData(key)
	if err != nil {
		return err
	}
	dayType := model.Weekday
	if dt, _ := data["day_type"].(string); dt == string(model.Weekend) {
		dayType = model.Weekend
	}

	now := e.now().In(e.loc)
	departure := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, e.loc)
	return e.buildAndSendRoute(m, key, lang, departure, dayType)
}

func (e *Engine) buildAndSendRoute(m Message, key storage.SessionKey, lang string, departure time.Time, dayType model.DayType) error {
	data, err := e.store.GetData(key)
	if err != nil {
		return err
	}
	fromName, _ := data["from_station"].(string)
	toName, _ := data["to_station"].(string)

	defer func() {
		if err := e.store.ClearSession(key); err != nil {
			e.logger.Error("clearing session", "error", err)
		}
	}()

	from := e.network.FindStation(fromName, lang)
	if from == nil {
		_, err := e.sender.Send(m.ChatID, i18n.Tf(lang, "error_station_not_found", map[string]string{"station": fromName}), mainKeyboard(lang))
		return err
	}
	to := e.network.FindStation(toName, lang)
	if to == nil {
		_, err := e.sender.Send(m.ChatID, i18n.Tf(lang, "error_station_not_found", map[string]string{"station": toName}), mainKeyboard(lang))
		return err
	}

	route, err := e.router.FindRoute(from.ID, to.ID, departure, dayType)
	switch {
	case errors.Is(err, metro.ErrMetroClosed):
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "error_metro_closed"), mainKeyboard(lang))
		return err
	case errors.Is(err, metro.ErrNoRoute), err == nil && route == nil:
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "error_route_not_found"), mainKeyboard(lang))
		return err
	case err != nil:
		_, sendErr := e.sender.Send(m.ChatID, i18n.Tf(lang, "error_generic", map[string]string{"error": err.Error()}), mainKeyboard(lang))
		if sendErr != nil {
			return sendErr
		}
		return err
	}

	text := formatRoute(e.network, route, lang)

	// Offer reminders when some line run has more than one hop.
	fingerprint := e.routes.Put(route)
	buttons := reminderKeyboard(fingerprint, route.LineGroups(), lang, -1, "")
	if len(buttons) > 0 && countTrainSegments(route) > 1 {
		if _, err := e.sender.SendInline(m.ChatID, text, buttons); err != nil {
			return err
		}
	} else {
		if _, err := e.sender.Send(m.ChatID, text, nil); err != nil {
			return err
		}
	}

	_, err = e.sender.Send(m.ChatID, i18n.T(lang, "main_menu"), mainKeyboard(lang))
	return err
}

func countTrainSegments(route *model.Route) int {
	n := 0
	for _, s := range route.Segments {
		if !s.IsTransfer {
			n++
		}
	}
	return n
}

// --- schedule flow ---

func (e *Engine) startScheduleFlow(m Message, key storage.SessionKey, lang string) error {
	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	return e.prompt(m, key, stateScheduleLine, i18n.T(lang, "select_line"), linesKeyboard(e.network, lang))
}

func (e *Engine) directSchedule(m Message, key storage.SessionKey, lang, stationName string) error {
	st := e.network.FindStation(stationName, lang)
	if st == nil {
		_, err := e.sender.Send(m.ChatID, i18n.Tf(lang, "error_station_not_found", map[string]string{"station": stationName}), mainKeyboard(lang))
		return err
	}

	dayType := model.DayTypeFor(e.now().In(e.loc))
	schedules, err := e.router.ScheduleForStation(st.ID, "", dayType)
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "schedule_not_found"), mainKeyboard(lang))
		return err
	}

	_, err = e.sender.Send(m.ChatID, formatSchedule(e.network, st.Name(lang), schedules, lang), mainKeyboard(lang))
	return err
}

func (e *Engine) handleScheduleLine(m Message, key storage.SessionKey, lang, text string) error {
	lineKey, ok := e.displayToLine[text]
	if !ok {
		return e.rejectChoice(m, lang, "error_unknown_line", linesKeyboard(e.network, lang))
	}
	if _, err := e.store.UpdateData(key, map[string]interface{}{"schedule_line": lineKey}); err != nil {
		return err
	}
	return e.promptStations(m, key, lang, stateScheduleStation, "schedule_line", "")
}

func (e *Engine) handleScheduleStation(m Message, key storage.SessionKey, lang, text string) error {
	ok, err := e.validChoice(key, text)
	if err != nil {
		return err
	}
	if !ok {
		data, _ := e.store.GetData(key)
		lineID, _ := data["schedule_line"].(string)
		return e.rejectChoice(m, lang, "error_unknown_choice", stationsKeyboard(e.stationNames(lineID, lang, ""), lang))
	}
	if _, err := e.store.UpdateData(key, map[string]interface{}{"schedule_station": text}); err != nil {
		return err
	}
	return e.prompt(m, key, stateScheduleDayType, i18n.T(lang, "day_type_prompt"), dayTypeKeyboard(lang))
}

func (e *Engine) handleScheduleDayType(m Message, key storage.SessionKey, lang, text string) error {
	dayType, ok := parseDayTypeChoice(text)
	if !ok {
		return e.rejectChoice(m, lang, "error_unknown_choice", dayTypeKeyboard(lang))
	}

	data, err := e.store.GetData(key)
	if err != nil {
		return err
	}
	stationName, _ := data["schedule_station"].(string)

	defer func() {
		if err := e.store.ClearSession(key); err != nil {
			e.logger.Error("clearing session", "error", err)
		}
	}()

	st := e.network.FindStation(stationName, lang)
	if st == nil {
		_, err := e.sender.Send(m.ChatID, i18n.Tf(lang, "error_station_not_found", map[string]string{"station": stationName}), mainKeyboard(lang))
		return err
	}

	schedules, err := e.router.ScheduleForStation(st.ID, "", dayType)
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		_, err := e.sender.Send(m.ChatID, i18n.T(lang, "schedule_not_found"), mainKeyboard(lang))
		return err
	}

	_, err = e.sender.Send(m.ChatID, formatSchedule(e.network, st.Name(lang), schedules, lang), mainKeyboard(lang))
	return err
}

// --- stations flow ---

func (e *Engine) startStationsFlow(m Message, key storage.SessionKey, lang string) error {
	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	return e.prompt(m, key, stateStationsLine, i18n.T(lang, "select_line"), linesKeyboard(e.network, lang))
}

func (e *Engine) handleStationsLine(m Message, key storage.SessionKey, lang, text string) error {
	lineKey, ok := e.displayToLine[text]
	if !ok {
		return e.rejectChoice(m, lang, "error_unknown_line", linesKeyboard(e.network, lang))
	}

	if err := e.store.ClearSession(key); err != nil {
		return err
	}
	_, err := e.sender.Send(m.ChatID, formatStationsList(e.network, lineKey, lang), mainKeyboard(lang))
	return err
}

// --- callbacks ---

// HandleCallback processes a reminder inline-button press. Payload
// grammar: remind|<fp12>|<group_idx>|<epoch> and
// remind_cancel|<fp12>|<group_idx>.
func (e *Engine) HandleCallback(cb Callback) {
	if err := e.handleCallback(cb); err != nil {
		e.logger.Error("handling callback", "user_id", cb.UserID, "error", err)
	}
}

func (e *Engine) handleCallback(cb Callback) error {
	lang := e.langFor(cb.UserID)
	parts := strings.Split(cb.Data, "|")

	switch parts[0] {
	case "remind":
		if len(parts) != 4 {
			return e.sender.AnswerCallback(cb.ID, i18n.T(lang, "error_invalid_data"))
		}
		return e.armReminderCallback(cb, lang, parts[1], parts[2], parts[3])
	case "remind_cancel":
		if len(parts) != 3 {
			return e.sender.AnswerCallback(cb.ID, i18n.T(lang, "error_invalid_data"))
		}
		return e.cancelReminderCallback(cb, lang, parts[1])
	}
	return e.sender.AnswerCallback(cb.ID, i18n.T(lang, "error_invalid_data"))
}

func (e *Engine) armReminderCallback(cb Callback, lang, fingerprint, idxRaw, epochRaw string) error {
	e.track(cb.UserID, "reminder_arm")

	route, groups, ok := e.routes.Get(fingerprint)
	if !ok {
		return e.sender.AnswerCallback(cb.ID, i18n.T(lang, "error_route_expired"))
	}

	idx, err := strconv.Atoi(idxRaw)
	if err != nil || idx < 0 || idx >= len(groups) || groups[idx].IsTransfer || len(groups[idx].Segments) <= 1 {
		return e.sender.AnswerCallback(cb.ID, i18n.T(lang, "error_invalid_line"))
	}

	epoch, err := strconv.ParseInt(epochRaw, 10, 64)
	if err != nil || epoch <= 0 {
		return e.sender.AnswerCallback(cb.ID, i18n.T(lang, "error_invalid_data"))
	}
	remindAt := time.Unix(epoch, 0).In(e.loc)

	group := groups[idx]
	target := group.Segments[len(group.Segments)-1].To

	if _, err := e.reminders.Arm(cb.UserID, route.Fingerprint(), target.ID, remindAt, lang); err != nil {
		return err
	}

	if err := e.sender.AnswerCallback(cb.ID, i18n.T(lang, "reminder_set")); err != nil {
		return err
	}
	buttons := reminderKeyboard(fingerprint, groups, lang, idx, remindAt.Format("15:04"))
	return e.sender.EditInlineKeyboard(cb.ChatID, cb.MessageID, buttons)
}

func (e *Engine) cancelReminderCallback(cb Callback, lang, fingerprint string) error {
	e.track(cb.UserID, "reminder_cancel")

	if err := e.reminders.Cancel(cb.UserID); err != nil {
		return err
	}
	if err := e.sender.AnswerCallback(cb.ID, i18n.T(lang, "reminder_cancelled")); err != nil {
		return err
	}

	if _, groups, ok := e.routes.Get(fingerprint); ok {
		buttons := reminderKeyboard(fingerprint, groups, lang, -1, "")
		return e.sender.EditInlineKeyboard(cb.ChatID, cb.MessageID, buttons)
	}
	return nil
}

func parseDayTypeChoice(text string) (model.DayType, bool) {
	switch text {
	case i18n.T("ua", "weekdays"), i18n.T("en", "weekdays"):
		return model.Weekday, true
	case i18n.T("ua", "weekends"), i18n.T("en", "weekends"):
		return model.Weekend, true
	}
	return "", false
}

func (e *Engine) track(userID int64, feature string) {
	if e.cfg.UserDataEnabled() {
		if err := e.store.TrackInteraction(userID, feature); err != nil {
			e.logger.Error("tracking interaction", "error", err)
		}
	}
	if e.cfg.AnalyticsEnabled() {
		hash := AnonymizeUserID(userID, e.cfg.AnalyticsSalt())
		if err := e.store.TrackAnonymousInteraction(hash, feature); err != nil {
			e.logger.Error("tracking anonymous interaction", "error", err)
		}
	}
}
