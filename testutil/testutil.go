// Package testutil holds helpers shared by the package tests: in-memory
// stores seeded with the bundled topology and a deterministic synthetic
// timetable.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/model"
	"kharkivmetro.dev/metro/storage"
)

// BuildStore returns an empty in-memory store.
func BuildStore(t testing.TB) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// BuildNetwork loads the bundled network data.
func BuildNetwork(t testing.TB) *metro.Network {
	t.Helper()
	n, err := metro.NewNetwork()
	require.NoError(t, err)
	return n
}

// SeedStations writes the bundled stations into the store.
func SeedStations(t testing.TB, s *storage.Store, n *metro.Network) {
	t.Helper()
	stations := []*model.Station{}
	for _, line := range model.Lines {
		stations = append(stations, n.StationsOnLine(line)...)
	}
	require.NoError(t, s.SaveStations(stations))
}

// Synthetic timetable bounds. Weekday service runs 05:30 to 23:30,
// weekend 06:00 to 23:00, trains every 6 minutes, adjacent stations
// 2 minutes apart along the direction of travel.
const (
	WeekdayFirstHour   = 5
	WeekdayFirstMinute = 30
	IntervalMinutes    = 6
	HopOffsetMinutes   = 2
)

// SeedSchedules fills the store with a deterministic timetable for every
// station and direction. Departures are staggered by position along the
// direction of travel so a hop takes HopOffsetMinutes.
func SeedSchedules(t testing.TB, s *storage.Store, n *metro.Network) {
	t.Helper()

	schedules := []*model.StationSchedule{}
	for _, line := range model.Lines {
		stations := n.StationsOnLine(line)
		if len(stations) < 2 {
			continue
		}
		first := stations[0]
		last := stations[len(stations)-1]
		maxOrder := last.Order

		for _, st := range stations {
			for _, direction := range []*model.Station{first, last} {
				if st.ID == direction.ID {
					continue
				}
				offset := (st.Order - 1) * HopOffsetMinutes
				if direction.ID == first.ID {
					offset = (maxOrder - st.Order) * HopOffsetMinutes
				}

				for _, dayType := range []model.DayType{model.Weekday, model.Weekend} {
					startMinutes := WeekdayFirstHour*60 + WeekdayFirstMinute
					endMinutes := 23*60 + 30
					if dayType == model.Weekend {
						startMinutes = 6 * 60
						endMinutes = 23 * 60
					}

					entries := []model.ScheduleEntry{}
					for m := startMinutes + offset; m <= endMinutes; m += IntervalMinutes {
						entries = append(entries, model.ScheduleEntry{Hour: m / 60, Minute: m % 60})
					}
					schedules = append(schedules, &model.StationSchedule{
						StationID:   st.ID,
						DirectionID: direction.ID,
						DayType:     dayType,
						Entries:     entries,
					})
				}
			}
		}
	}

	_, err := s.SaveSchedules(schedules)
	require.NoError(t, err)
}

// BuildRouter wires a router over an in-memory store seeded with the
// synthetic timetable. All times are UTC to keep tests hermetic.
func BuildRouter(t testing.TB) (*metro.Router, *storage.Store) {
	t.Helper()
	store := BuildStore(t)
	network := BuildNetwork(t)
	SeedStations(t, store, network)
	SeedSchedules(t, store, network)
	router := metro.NewRouter(store, network, metro.NewGraph(network), time.UTC)
	return router, store
}

// Day returns a wall-clock time on a fixed calendar day in UTC.
// 2031-01-01 is a Wednesday, 2031-01-04 a Saturday; the year is kept in
// the future so armed reminders stay pending during tests.
func Day(dayType model.DayType, hour, minute int) time.Time {
	day := 1
	if dayType == model.Weekend {
		day = 4
	}
	return time.Date(2031, time.January, day, hour, minute, 0, 0, time.UTC)
}
