package storage

import (
	"database/sql"
	"fmt"
	"time"

	"kharkivmetro.dev/metro/model"
)

// SaveStations upserts the station list in one transaction.
func (s *Store) SaveStations(stations []*model.Station) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO stations (id, name_ua, name_en, line, station_order, transfer_to)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name_ua = excluded.name_ua,
    name_en = excluded.name_en,
    line = excluded.line,
    station_order = excluded.station_order,
    transfer_to = excluded.transfer_to`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing station upsert: %w", err)
	}

	for _, st := range stations {
		transfer := sql.NullString{String: st.TransferTo, Valid: st.TransferTo != ""}
		if _, err := stmt.Exec(st.ID, st.NameUA, st.NameEN, string(st.Line), st.Order, transfer); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("inserting station %s: %w", st.ID, err)
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing stations: %w", err)
	}
	return nil
}

// SaveSchedules replaces the entries of each schedule. Delete and insert
// happen atomically per schedule. Returns the number of entries written.
func (s *Store) SaveSchedules(schedules []*model.StationSchedule) (int, error) {
	count := 0
	for _, sch := range schedules {
		if err := s.saveSchedule(sch); err != nil {
			return count, err
		}
		count += len(sch.Entries)
	}
	return count, nil
}

func (s *Store) saveSchedule(sch *model.StationSchedule) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	_, err = tx.Exec(`
DELETE FROM schedules
WHERE station_id = ? AND direction_station_id = ? AND day_type = ?`,
		sch.StationID, sch.DirectionID, string(sch.DayType))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting old schedule: %w", err)
	}

	stmt, err := tx.Prepare(`
INSERT INTO schedules (station_id, direction_station_id, day_type, hour, minutes)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing schedule insert: %w", err)
	}
	for _, e := range sch.Entries {
		if _, err := stmt.Exec(sch.StationID, sch.DirectionID, string(sch.DayType), e.Hour, e.Minute); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("inserting schedule entry: %w", err)
		}
	}
	stmt.Close()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schedule: %w", err)
	}
	return nil
}

// GetSchedule returns the ordered entries for one (station, direction,
// day type), or nil if none exist.
func (s *Store) GetSchedule(stationID, directionID string, dayType model.DayType) (*model.StationSchedule, error) {
	rows, err := s.db.Query(`
SELECT hour, minutes FROM schedules
WHERE station_id = ? AND direction_station_id = ? AND day_type = ?
ORDER BY hour, minutes`,
		stationID, directionID, string(dayType))
	if err != nil {
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	return &model.StationSchedule{
		StationID:   stationID,
		DirectionID: directionID,
		DayType:     dayType,
		Entries:     entries,
	}, nil
}

// GetNextDepartures returns up to limit entries at or after the given
// clock time, ascending. Comparisons are lexicographic on (hour, minute);
// the query does not wrap past midnight.
func (s *Store) GetNextDepartures(stationID, directionID string, dayType model.DayType, after model.ScheduleEntry, limit int) ([]model.ScheduleEntry, error) {
	rows, err := s.db.Query(`
SELECT hour, minutes FROM schedules
WHERE station_id = ? AND direction_station_id = ? AND day_type = ?
  AND (hour > ? OR (hour = ? AND minutes >= ?))
ORDER BY hour, minutes
LIMIT ?`,
		stationID, directionID, string(dayType), after.Hour, after.Hour, after.Minute, limit)
	if err != nil {
		return nil, fmt.Errorf("querying next departures: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetPreviousDepartures is the symmetric primitive: up to limit entries at
// or before the given clock time, descending.
func (s *Store) GetPreviousDepartures(stationID, directionID string, dayType model.DayType, before model.ScheduleEntry, limit int) ([]model.ScheduleEntry, error) {
	rows, err := s.db.Query(`
SELECT hour, minutes FROM schedules
WHERE station_id = ? AND direction_station_id = ? AND day_type = ?
  AND (hour < ? OR (hour = ? AND minutes <= ?))
ORDER BY hour DESC, minutes DESC
LIMIT ?`,
		stationID, directionID, string(dayType), before.Hour, before.Hour, before.Minute, limit)
	if err != nil {
		return nil, fmt.Errorf("querying previous departures: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetAllSchedulesForStation returns the station's schedules grouped by
// direction using a single query.
func (s *Store) GetAllSchedulesForStation(stationID string, dayType model.DayType) ([]*model.StationSchedule, error) {
	rows, err := s.db.Query(`
SELECT direction_station_id, hour, minutes FROM schedules
WHERE station_id = ? AND day_type = ?
ORDER BY direction_station_id, hour, minutes`,
		stationID, string(dayType))
	if err != nil {
		return nil, fmt.Errorf("querying station schedules: %w", err)
	}
	defer rows.Close()

	byDirection := map[string]*model.StationSchedule{}
	order := []string{}
	for rows.Next() {
		var direction string
		var e model.ScheduleEntry
		if err := rows.Scan(&direction, &e.Hour, &e.Minute); err != nil {
			return nil, fmt.Errorf("scanning schedule entry: %w", err)
		}
		sch, ok := byDirection[direction]
		if !ok {
			sch = &model.StationSchedule{
				StationID:   stationID,
				DirectionID: direction,
				DayType:     dayType,
			}
			byDirection[direction] = sch
			order = append(order, direction)
		}
		sch.Entries = append(sch.Entries, e)
	}

	schedules := make([]*model.StationSchedule, 0, len(order))
	for _, direction := range order {
		schedules = append(schedules, byDirection[direction])
	}
	return schedules, nil
}

// HasSchedules reports whether any schedule entries exist.
func (s *Store) HasSchedules() (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schedules`).Scan(&count); err != nil {
		return false, fmt.Errorf("counting schedules: %w", err)
	}
	return count > 0, nil
}

// FirstDepartureTime returns the earliest departure across the whole
// network for the day type, or false if the table is empty.
func (s *Store) FirstDepartureTime(dayType model.DayType) (model.ScheduleEntry, bool, error) {
	var hour, minute sql.NullInt64
	err := s.db.QueryRow(`
SELECT MIN(hour), MIN(minutes) FROM schedules
WHERE day_type = ?
  AND hour = (SELECT MIN(hour) FROM schedules WHERE day_type = ?)`,
		string(dayType), string(dayType)).Scan(&hour, &minute)
	if err != nil {
		return model.ScheduleEntry{}, false, fmt.Errorf("querying first departure: %w", err)
	}
	if !hour.Valid {
		return model.ScheduleEntry{}, false, nil
	}
	return model.ScheduleEntry{Hour: int(hour.Int64), Minute: int(minute.Int64)}, true, nil
}

// LastDepartureTime returns the latest departure across the whole network
// for the day type, or false if the table is empty.
func (s *Store) LastDepartureTime(dayType model.DayType) (model.ScheduleEntry, bool, error) {
	var hour, minute sql.NullInt64
	err := s.db.QueryRow(`
SELECT MAX(hour), MAX(minutes) FROM schedules
WHERE day_type = ?
  AND hour = (SELECT MAX(hour) FROM schedules WHERE day_type = ?)`,
		string(dayType), string(dayType)).Scan(&hour, &minute)
	if err != nil {
		return model.ScheduleEntry{}, false, fmt.Errorf("querying last departure: %w", err)
	}
	if !hour.Valid {
		return model.ScheduleEntry{}, false, nil
	}
	return model.ScheduleEntry{Hour: int(hour.Int64), Minute: int(minute.Int64)}, true, nil
}

// DefaultEarlyWindowMinutes is the grace period before first departure
// during which trip planning is still accepted.
const DefaultEarlyWindowMinutes = 90

// OpenStatus is the result of an operating-window check.
type OpenStatus struct {
	Open  bool
	First model.ScheduleEntry
	Last  model.ScheduleEntry
	Known bool
}

// IsMetroOpen checks whether t falls inside the operating window for the
// day type, extended backwards by earlyWindow minutes. The window edge is
// computed as wall clock time without date math across midnight. An empty
// schedule table reports open.
func (s *Store) IsMetroOpen(dayType model.DayType, t model.ScheduleEntry, earlyWindow int) (OpenStatus, error) {
	first, okFirst, err := s.FirstDepartureTime(dayType)
	if err != nil {
		return OpenStatus{}, err
	}
	last, okLast, err := s.LastDepartureTime(dayType)
	if err != nil {
		return OpenStatus{}, err
	}
	if !okFirst || !okLast {
		return OpenStatus{Open: true}, nil
	}

	base := time.Date(2000, 1, 1, first.Hour, first.Minute, 0, 0, time.UTC)
	earliest := base.Add(-time.Duration(earlyWindow) * time.Minute)
	earliestEntry := model.ScheduleEntry{Hour: earliest.Hour(), Minute: earliest.Minute()}

	open := t.Compare(earliestEntry) >= 0 && t.Compare(last) <= 0
	return OpenStatus{Open: open, First: first, Last: last, Known: true}, nil
}

// GetStation returns a station by id, or nil when absent.
func (s *Store) GetStation(id string) (*model.Station, error) {
	row := s.db.QueryRow(`
SELECT id, name_ua, name_en, line, station_order, transfer_to
FROM stations WHERE id = ?`, id)

	st, err := scanStation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return st, err
}

// GetAllStations returns every station ordered by (line, order).
func (s *Store) GetAllStations() ([]*model.Station, error) {
	return s.queryStations(`
SELECT id, name_ua, name_en, line, station_order, transfer_to
FROM stations ORDER BY line, station_order`)
}

// GetStationsByLine returns a line's stations in order.
func (s *Store) GetStationsByLine(line model.Line) ([]*model.Station, error) {
	return s.queryStations(`
SELECT id, name_ua, name_en, line, station_order, transfer_to
FROM stations WHERE line = ? ORDER BY station_order`, string(line))
}

func (s *Store) queryStations(query string, args ...interface{}) ([]*model.Station, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	defer rows.Close()

	stations := []*model.Station{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStation(row rowScanner) (*model.Station, error) {
	st := &model.Station{}
	var line string
	var transfer sql.NullString
	err := row.Scan(&st.ID, &st.NameUA, &st.NameEN, &line, &st.Order, &transfer)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning station: %w", err)
	}
	st.Line = model.Line(line)
	st.TransferTo = transfer.String
	return st, nil
}

func scanEntries(rows *sql.Rows) ([]model.ScheduleEntry, error) {
	entries := []model.ScheduleEntry{}
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(&e.Hour, &e.Minute); err != nil {
			return nil, fmt.Errorf("scanning schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
