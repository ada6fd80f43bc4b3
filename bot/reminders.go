package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/storage"
)

// TextSender delivers a plain message to a user. Satisfied by the
// Telegram adapter; tests plug in a recorder.
type TextSender interface {
	SendText(userID int64, text string) error
}

// Scheduler owns the durable exit reminders: one pending in-memory timer
// per user at most, backed by the reminders table so pending reminders
// survive restarts.
type Scheduler struct {
	store   *storage.Store
	network *metro.Network
	sender  TextSender
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[int64]*pendingReminder
}

type pendingReminder struct {
	timer      *time.Timer
	remindAt   time.Time
	reminderID int64
}

// NewScheduler wires the scheduler to its store and delivery channel.
func NewScheduler(store *storage.Store, network *metro.Network, sender TextSender, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		network: network,
		sender:  sender,
		logger:  logger,
		pending: map[int64]*pendingReminder{},
	}
}

// Arm persists an active reminder, replaces any pending timer for the
// user, and schedules a single-shot delivery at remindAt.
func (s *Scheduler) Arm(userID int64, routeKey, stationID string, remindAt time.Time, lang string) (int64, error) {
	id, err := s.store.SaveReminder(userID, routeKey, stationID, remindAt, lang)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(id, userID, stationID, remindAt, lang)
	return id, nil
}

func (s *Scheduler) armLocked(id, userID int64, stationID string, remindAt time.Time, lang string) {
	if prev, ok := s.pending[userID]; ok {
		prev.timer.Stop()
	}

	delay := time.Until(remindAt)
	if delay < 0 {
		delay = 0
	}
	s.pending[userID] = &pendingReminder{
		remindAt:   remindAt,
		reminderID: id,
		timer: time.AfterFunc(delay, func() {
			s.fire(id, userID, stationID, lang)
		}),
	}
}

// fire delivers the message, marks the reminder inactive and drops the
// in-memory entry. Removal and deactivation happen under the same lock
// that Cancel takes, so firing never races a cancel.
func (s *Scheduler) fire(id, userID int64, stationID string, lang string) {
	s.mu.Lock()
	cur, ok := s.pending[userID]
	if !ok || cur.reminderID != id {
		s.mu.Unlock()
		return
	}
	delete(s.pending, userID)
	if err := s.store.DeactivateReminder(id); err != nil {
		s.logger.Error("deactivating fired reminder", "reminder_id", id, "error", err)
	}
	s.mu.Unlock()

	stationName := stationID
	if st := s.network.Station(stationID); st != nil {
		stationName = st.Name(lang)
	}
	text := i18n.Tf(lang, "reminder_exit_prepare", map[string]string{"station": stationName})

	// Delivery failures are swallowed; the reminder stays inactive to
	// avoid retry storms.
	if err := s.sender.SendText(userID, text); err != nil {
		s.logger.Error("delivering reminder", "user_id", userID, "reminder_id", id, "error", err)
	}
}

// Cancel stops the user's pending timer and deactivates their persisted
// reminders.
func (s *Scheduler) Cancel(userID int64) error {
	s.mu.Lock()
	if prev, ok := s.pending[userID]; ok {
		prev.timer.Stop()
		delete(s.pending, userID)
	}
	s.mu.Unlock()

	return s.store.ClearUserReminders(userID)
}

// Pending reports whether the user has an in-memory timer armed.
func (s *Scheduler) Pending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[userID]
	return ok
}

// Restore re-arms timers for every persisted active reminder at startup.
// Reminders already past, or pointing at an unknown station, are
// deactivated instead.
func (s *Scheduler) Restore(now time.Time) error {
	reminders, err := s.store.AllActiveReminders()
	if err != nil {
		return err
	}

	restored := 0
	for _, r := range reminders {
		if s.network.Station(r.StationID) == nil || !r.RemindAt.After(now) {
			if err := s.store.DeactivateReminder(r.ID); err != nil {
				s.logger.Error("deactivating stale reminder", "reminder_id", r.ID, "error", err)
			}
			continue
		}
		s.mu.Lock()
		s.armLocked(r.ID, r.UserID, r.StationID, r.RemindAt, r.Lang)
		s.mu.Unlock()
		restored++
	}

	if len(reminders) > 0 {
		s.logger.Info("reminders restored", "active", len(reminders), "armed", restored)
	}
	return nil
}

// Housekeep periodically deactivates reminders whose remind_at slipped
// into the past without firing (crash window).
func (s *Scheduler) Housekeep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			armed := make(map[int64]bool, len(s.pending))
			for _, p := range s.pending {
				armed[p.reminderID] = true
			}
			s.mu.Unlock()

			reminders, err := s.store.AllActiveReminders()
			if err != nil {
				s.logger.Error("reminder housekeeping", "error", err)
				continue
			}
			now := time.Now()
			for _, r := range reminders {
				if armed[r.ID] || r.RemindAt.After(now) {
					continue
				}
				if err := s.store.DeactivateReminder(r.ID); err != nil {
					s.logger.Error("deactivating overdue reminder", "reminder_id", r.ID, "error", err)
				}
			}
		}
	}
}

// Shutdown stops every pending timer without touching persisted rows;
// they are recovered by Restore on the next start.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, userID)
	}
}
