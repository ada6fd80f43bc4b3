package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharkivmetro.dev/metro/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSchedule(t *testing.T, s *Store, stationID, directionID string, dayType model.DayType, entries ...model.ScheduleEntry) {
	t.Helper()
	_, err := s.SaveSchedules([]*model.StationSchedule{{
		StationID:   stationID,
		DirectionID: directionID,
		DayType:     dayType,
		Entries:     entries,
	}})
	require.NoError(t, err)
}

func TestSaveStationsUpserts(t *testing.T) {
	s := testStore(t)

	st := &model.Station{ID: "a", NameUA: "А", NameEN: "A", Line: model.LineSaltivska, Order: 1}
	require.NoError(t, s.SaveStations([]*model.Station{st}))

	st.NameEN = "A2"
	st.TransferTo = "b"
	require.NoError(t, s.SaveStations([]*model.Station{st}))

	got, err := s.GetStation("a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A2", got.NameEN)
	assert.Equal(t, "b", got.TransferTo)

	missing, err := s.GetStation("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNextDeparturesReturnsFullOrderedList(t *testing.T) {
	s := testStore(t)
	seedSchedule(t, s, "a", "term", model.Weekday,
		model.ScheduleEntry{Hour: 7, Minute: 30},
		model.ScheduleEntry{Hour: 5, Minute: 45},
		model.ScheduleEntry{Hour: 6, Minute: 0},
		model.ScheduleEntry{Hour: 23, Minute: 10},
	)

	// From midnight with no cap, the whole list comes back ascending.
	entries, err := s.GetNextDepartures("a", "term", model.Weekday, model.ScheduleEntry{}, 1000)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		assert.Positive(t, entries[i].Compare(entries[i-1]))
	}
	assert.Equal(t, model.ScheduleEntry{Hour: 5, Minute: 45}, entries[0])
}

func TestNextDeparturesBoundaryInclusive(t *testing.T) {
	s := testStore(t)
	seedSchedule(t, s, "a", "term", model.Weekday,
		model.ScheduleEntry{Hour: 10, Minute: 0},
		model.ScheduleEntry{Hour: 10, Minute: 6},
	)

	entries, err := s.GetNextDepartures("a", "term", model.Weekday, model.ScheduleEntry{Hour: 10, Minute: 0}, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ScheduleEntry{Hour: 10, Minute: 0}, entries[0])

	// Does not wrap past midnight.
	entries, err = s.GetNextDepartures("a", "term", model.Weekday, model.ScheduleEntry{Hour: 23, Minute: 59}, 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPreviousDeparturesSymmetric(t *testing.T) {
	s := testStore(t)
	seedSchedule(t, s, "a", "term", model.Weekday,
		model.ScheduleEntry{Hour: 5, Minute: 45},
		model.ScheduleEntry{Hour: 6, Minute: 0},
		model.ScheduleEntry{Hour: 7, Minute: 30},
	)

	entries, err := s.GetPreviousDepartures("a", "term", model.Weekday, model.ScheduleEntry{Hour: 6, Minute: 30}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ScheduleEntry{Hour: 6, Minute: 0}, entries[0])
	assert.Equal(t, model.ScheduleEntry{Hour: 5, Minute: 45}, entries[1])

	entries, err = s.GetPreviousDepartures("a", "term", model.Weekday, model.ScheduleEntry{Hour: 5, Minute: 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveSchedulesReplacesEntries(t *testing.T) {
	s := testStore(t)
	seedSchedule(t, s, "a", "term", model.Weekday,
		model.ScheduleEntry{Hour: 6, Minute: 0},
		model.ScheduleEntry{Hour: 7, Minute: 0},
	)
	seedSchedule(t, s, "a", "term", model.Weekday,
		model.ScheduleEntry{Hour: 8, Minute: 0},
	)

	sch, err := s.GetSchedule("a", "term", model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, sch)
	require.Len(t, sch.Entries, 1)
	assert.Equal(t, 8, sch.Entries[0].Hour)
}

func TestGetAllSchedulesGroupsByDirection(t *testing.T) {
	s := testStore(t)
	seedSchedule(t, s, "a", "north", model.Weekday,
		model.ScheduleEntry{Hour: 6, Minute: 0},
		model.ScheduleEntry{Hour: 6, Minute: 10},
	)
	seedSchedule(t, s, "a", "south", model.Weekday,
		model.ScheduleEntry{Hour: 6, Minute: 5},
	)
	seedSchedule(t, s, "a", "north", model.Weekend,
		model.ScheduleEntry{Hour: 7, Minute: 0},
	)

	schedules, err := s.GetAllSchedulesForStation("a", model.Weekday)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	byDirection := map[string]int{}
	for _, sch := range schedules {
		byDirection[sch.DirectionID] = len(sch.Entries)
		assert.Equal(t, model.Weekday, sch.DayType)
	}
	assert.Equal(t, 2, byDirection["north"])
	assert.Equal(t, 1, byDirection["south"])
}

func TestFirstAndLastDepartureAcrossNetwork(t *testing.T) {
	s := testStore(t)
	seedSchedule(t, s, "a", "term", model.Weekday,
		model.ScheduleEntry{Hour: 5, Minute: 45},
		model.ScheduleEntry{Hour: 23, Minute: 10},
	)
	seedSchedule(t, s, "b", "term", model.Weekday,
		model.ScheduleEntry{Hour: 5, Minute: 50},
		model.ScheduleEntry{Hour: 23, Minute: 40},
	)

	first, ok, err := s.FirstDepartureTime(model.Weekday)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ScheduleEntry{Hour: 5, Minute: 45}, first)

	last, ok, err := s.LastDepartureTime(model.Weekday)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ScheduleEntry{Hour: 23, Minute: 40}, last)
}

func TestIsMetroOpenWindow(t *testing.T) {
	s := testStore(t)
	seedSchedule(t, s, "a", "term", model.Weekday,
		model.ScheduleEntry{Hour: 5, Minute: 30},
		model.ScheduleEntry{Hour: 23, Minute: 30},
	)

	cases := []struct {
		at   model.ScheduleEntry
		open bool
	}{
		{model.ScheduleEntry{Hour: 5, Minute: 30}, true},
		{model.ScheduleEntry{Hour: 23, Minute: 30}, true},
		{model.ScheduleEntry{Hour: 23, Minute: 31}, false},
		{model.ScheduleEntry{Hour: 4, Minute: 0}, true},
		{model.ScheduleEntry{Hour: 3, Minute: 59}, false},
		{model.ScheduleEntry{Hour: 12, Minute: 0}, true},
	}
	for _, tc := range cases {
		status, err := s.IsMetroOpen(model.Weekday, tc.at, DefaultEarlyWindowMinutes)
		require.NoError(t, err)
		assert.Equal(t, tc.open, status.Open, "at %s", tc.at)
		assert.True(t, status.Known)
	}
}

func TestIsMetroOpenEmptyTable(t *testing.T) {
	s := testStore(t)

	status, err := s.IsMetroOpen(model.Weekday, model.ScheduleEntry{Hour: 3, Minute: 0}, DefaultEarlyWindowMinutes)
	require.NoError(t, err)
	assert.True(t, status.Open)
	assert.False(t, status.Known)
}

func TestHasSchedules(t *testing.T) {
	s := testStore(t)

	ok, err := s.HasSchedules()
	require.NoError(t, err)
	assert.False(t, ok)

	seedSchedule(t, s, "a", "term", model.Weekday, model.ScheduleEntry{Hour: 6, Minute: 0})
	ok, err = s.HasSchedules()
	require.NoError(t, err)
	assert.True(t, ok)
}
