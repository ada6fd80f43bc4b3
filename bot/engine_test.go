package bot

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharkivmetro.dev/metro/config"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
	"kharkivmetro.dev/metro/storage"
	"kharkivmetro.dev/metro/testutil"
)

type sentMessage struct {
	ChatID  int64
	Text    string
	Kb      *Keyboard
	Inline  [][]InlineButton
	MsgID   int
	IsUser  bool
	Answers string
}

// fakeSender records everything the engine emits. Edit always fails so
// prompts fall back to fresh sends, like the real transport does for
// reply keyboards.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	answers  []string
	edits    [][][]InlineButton
	nextID   int
	failEdit bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failEdit: true}
}

func (f *fakeSender) Send(chatID int64, text string, kb *Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Kb: kb, MsgID: f.nextID})
	return f.nextID, nil
}

func (f *fakeSender) Edit(chatID int64, messageID int, text string, kb *Keyboard) error {
	if f.failEdit {
		return assert.AnError
	}
	return nil
}

func (f *fakeSender) SendInline(chatID int64, text string, buttons [][]InlineButton) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Inline: buttons, MsgID: f.nextID})
	return f.nextID, nil
}

func (f *fakeSender) EditInlineKeyboard(chatID int64, messageID int, buttons [][]InlineButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, buttons)
	return nil
}

func (f *fakeSender) AnswerCallback(callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeSender) SendText(userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{ChatID: userID, Text: text, IsUser: true})
	return nil
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) lastInline() (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Inline != nil {
			return f.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

func testEngine(t *testing.T) (*Engine, *fakeSender, *storage.Store) {
	t.Helper()

	router, store := testutil.BuildRouter(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	sender := newFakeSender()
	engine := NewEngine(store, router, cfg, sender, nil)
	engine.now = func() time.Time { return testutil.Day(model.Weekday, 10, 0) }
	return engine, sender, store
}

const (
	testChat int64 = 100
	testUser int64 = 200
)

func say(engine *Engine, text string) {
	engine.HandleMessage(Message{ChatID: testChat, UserID: testUser, Text: text})
}

func sessionKey() storage.SessionKey {
	return storage.SessionKey{ChatID: testChat, UserID: testUser, Destiny: storage.DefaultDestiny}
}

func TestStartShowsMainMenu(t *testing.T) {
	engine, sender, _ := testEngine(t)

	say(engine, "/start")
	last := sender.last()
	assert.Contains(t, last.Text, "Бот для планування")
	require.NotNil(t, last.Kb)
	assert.Contains(t, last.Kb.Rows[0], i18n.T("ua", "route"))
}

func TestRouteFlowProducesTransferRouteWithReminderOffer(t *testing.T) {
	engine, sender, store := testEngine(t)

	say(engine, "/route")
	assert.Contains(t, sender.last().Text, "Звідки їдемо")

	say(engine, "🔴 Холодногірсько-Заводська")
	assert.Contains(t, sender.last().Text, "Оберіть станцію")

	say(engine, "Холодна гора")
	assert.Contains(t, sender.last().Text, "Куди їдемо")

	say(engine, "🔵 Салтівська")
	say(engine, "Університет")
	assert.Contains(t, sender.last().Text, "Який час")

	say(engine, i18n.T("ua", "current_time"))

	// The route message carries the inline reminder offer for the red
	// line run (4 train segments total, one transfer).
	inline, ok := sender.lastInline()
	require.True(t, ok, "expected an inline reminder offer")
	require.Len(t, inline.Inline, 1)
	assert.True(t, strings.HasPrefix(inline.Inline[0][0].Data, "remind|"))
	assert.LessOrEqual(t, len(inline.Inline[0][0].Data), 64)
	assert.Contains(t, inline.Text, "🔄")

	// Flow is finished: session cleared.
	state, err := store.GetState(sessionKey())
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestRouteFlowRejectsUnknownLine(t *testing.T) {
	engine, sender, store := testEngine(t)

	say(engine, "/route")
	say(engine, "якась лінія")

	assert.Equal(t, i18n.T("ua", "error_unknown_line"), sender.last().Text)
	state, err := store.GetState(sessionKey())
	require.NoError(t, err)
	assert.Equal(t, stateRouteFromLine, state)
}

func TestRouteFlowRejectsStationOutsideKeyboard(t *testing.T) {
	engine, sender, store := testEngine(t)

	say(engine, "/route")
	say(engine, "🔴 Холодногірсько-Заводська")
	say(engine, "Університет") // blue line station, not on the keyboard

	assert.Equal(t, i18n.T("ua", "error_unknown_choice"), sender.last().Text)
	state, err := store.GetState(sessionKey())
	require.NoError(t, err)
	assert.Equal(t, stateRouteFromStation, state)
}

func TestCancelClearsSessionFromEveryState(t *testing.T) {
	states := []string{
		stateRouteFromLine, stateRouteFromStation, stateRouteToLine,
		stateRouteToStation, stateRouteTimeChoice, stateRouteDayType,
		stateRouteCustomTime, stateScheduleLine, stateScheduleStation,
		stateScheduleDayType, stateStationsLine,
	}
	for _, state := range states {
		engine, _, store := testEngine(t)
		key := sessionKey()
		require.NoError(t, store.SetState(key, state))
		require.NoError(t, store.SetData(key, map[string]interface{}{"x": "y"}))

		say(engine, i18n.T("ua", "cancel"))

		got, err := store.GetState(key)
		require.NoError(t, err)
		assert.Empty(t, got, "state %s", state)
		data, err := store.GetData(key)
		require.NoError(t, err)
		assert.Empty(t, data, "state %s", state)
	}
}

func TestBackPopsOneState(t *testing.T) {
	engine, sender, store := testEngine(t)

	say(engine, "/route")
	say(engine, "🔴 Холодногірсько-Заводська")

	say(engine, i18n.T("ua", "back"))
	assert.Contains(t, sender.last().Text, "Звідки їдемо")

	state, err := store.GetState(sessionKey())
	require.NoError(t, err)
	assert.Equal(t, stateRouteFromLine, state)

	// Back at the first prompt returns to the main menu.
	say(engine, i18n.T("ua", "back"))
	state, err = store.GetState(sessionKey())
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestCustomTimeValidation(t *testing.T) {
	engine, sender, _ := testEngine(t)

	say(engine, "/route")
	say(engine, "🔴 Холодногірсько-Заводська")
	say(engine, "Холодна гора")
	say(engine, "🔴 Холодногірсько-Заводська")
	say(engine, "Індустріальна")
	say(engine, i18n.T("ua", "custom_time"))
	say(engine, i18n.T("ua", "weekdays"))

	say(engine, "abc")
	assert.Equal(t, i18n.T("ua", "error_invalid_time_format"), sender.last().Text)

	say(engine, "25:00")
	assert.Equal(t, i18n.T("ua", "error_invalid_time"), sender.last().Text)

	say(engine, "10:30")
	found := false
	for _, text := range sender.texts() {
		if strings.Contains(text, "Холодна гора → Індустріальна") {
			found = true
		}
	}
	assert.True(t, found, "expected a built route")
}

func TestMetroClosedMessage(t *testing.T) {
	engine, sender, _ := testEngine(t)
	engine.now = func() time.Time { return testutil.Day(model.Weekday, 2, 0) }

	say(engine, "/route")
	say(engine, "🔴 Холодногірсько-Заводська")
	say(engine, "Холодна гора")
	say(engine, "🔴 Холодногірсько-Заводська")
	say(engine, "Індустріальна")
	say(engine, i18n.T("ua", "current_time"))

	found := false
	for _, text := range sender.texts() {
		if text == i18n.T("ua", "error_metro_closed") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestScheduleFlow(t *testing.T) {
	engine, sender, _ := testEngine(t)

	say(engine, "/schedule")
	say(engine, "🔵 Салтівська")
	say(engine, "Університет")
	say(engine, i18n.T("ua", "weekends"))

	last := sender.last()
	assert.Contains(t, last.Text, "Університет")
	assert.Contains(t, last.Text, i18n.T("ua", "direction"))
}

func TestDirectScheduleCommandWithAlias(t *testing.T) {
	engine, sender, _ := testEngine(t)

	say(engine, "/schedule хтз")
	assert.Contains(t, sender.last().Text, "Тракторний завод")
}

func TestStationsFlow(t *testing.T) {
	engine, sender, store := testEngine(t)

	say(engine, "/stations")
	say(engine, "🟢 Олексіївська")

	last := sender.last()
	assert.Contains(t, last.Text, "Метробудівників")
	assert.Contains(t, last.Text, "Перемога")

	state, err := store.GetState(sessionKey())
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestCatchAllOutsideFlow(t *testing.T) {
	engine, sender, _ := testEngine(t)

	say(engine, "щось незрозуміле")
	assert.Equal(t, i18n.T("ua", "start_message"), sender.last().Text)
}

func TestReminderCallbackRoundTrip(t *testing.T) {
	engine, sender, store := testEngine(t)

	say(engine, "/route")
	say(engine, "🔴 Холодногірсько-Заводська")
	say(engine, "Холодна гора")
	say(engine, "🔵 Салтівська")
	say(engine, "Університет")
	say(engine, i18n.T("ua", "current_time"))

	inline, ok := sender.lastInline()
	require.True(t, ok)
	data := inline.Inline[0][0].Data

	engine.HandleCallback(Callback{ID: "cb1", ChatID: testChat, UserID: testUser, MessageID: inline.MsgID, Data: data})
	assert.Contains(t, sender.answers, i18n.T("ua", "reminder_set"))

	active, err := store.ActiveReminders(testUser)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, engine.Reminders().Pending(testUser))

	// The keyboard flips to a cancel button.
	require.NotEmpty(t, sender.edits)
	cancelData := sender.edits[len(sender.edits)-1][0][0].Data
	assert.True(t, strings.HasPrefix(cancelData, "remind_cancel|"))

	engine.HandleCallback(Callback{ID: "cb2", ChatID: testChat, UserID: testUser, MessageID: inline.MsgID, Data: cancelData})
	assert.Contains(t, sender.answers, i18n.T("ua", "reminder_cancelled"))

	active, err = store.ActiveReminders(testUser)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.False(t, engine.Reminders().Pending(testUser))
}

func TestExpiredCallbackAnswersGracefully(t *testing.T) {
	engine, sender, _ := testEngine(t)

	engine.HandleCallback(Callback{ID: "cb", ChatID: testChat, UserID: testUser, Data: "remind|000000000000|0|123456"})
	assert.Contains(t, sender.answers, i18n.T("ua", "error_route_expired"))
}

var _ Sender = (*fakeSender)(nil)
