package metro_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/model"
	"kharkivmetro.dev/metro/testutil"
)

func TestRouteAlongOneLine(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	route, err := router.FindRoute("kholodna_hora", "industrialna", testutil.Day(model.Weekday, 10, 0), model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Len(t, route.Segments, 12)
	assert.Equal(t, 0, route.NumTransfers)

	for _, seg := range route.Segments {
		assert.False(t, seg.IsTransfer)
		assert.Equal(t, seg.From.Line, seg.To.Line)
		assert.Equal(t, 1, abs(seg.From.Order-seg.To.Order))
	}
}

func TestRouteWithTransfer(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	route, err := router.FindRoute("kholodna_hora", "barabashova", testutil.Day(model.Weekday, 10, 0), model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Equal(t, 1, route.NumTransfers)

	transfers := 0
	for _, seg := range route.Segments {
		if !seg.IsTransfer {
			continue
		}
		transfers++
		assert.Equal(t, model.TransferMinutes, seg.DurationMinutes)
		assert.Equal(t, seg.To.ID, seg.From.TransferTo)
		assert.Equal(t, "maidan_konstytutsii", seg.From.ID)
		assert.Equal(t, "istorychnyi_muzei", seg.To.ID)
	}
	assert.Equal(t, 1, transfers)
}

func TestRouteAggregatesAreConsistent(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	cases := [][2]string{
		{"kholodna_hora", "industrialna"},
		{"kholodna_hora", "barabashova"},
		{"saltivska", "peremoha"},
		{"levada", "university"},
	}
	for _, pair := range cases {
		route, err := router.FindRoute(pair[0], pair[1], testutil.Day(model.Weekday, 12, 0), model.Weekday)
		require.NoError(t, err, "%s -> %s", pair[0], pair[1])
		require.NotNil(t, route)

		sum := 0
		transfers := 0
		for _, seg := range route.Segments {
			sum += seg.DurationMinutes
			if seg.IsTransfer {
				transfers++
			}
		}
		assert.InDelta(t, sum, route.TotalDurationMinutes, 1, "%s -> %s", pair[0], pair[1])
		assert.Equal(t, transfers, route.NumTransfers)
		assert.Equal(t, pair[0], route.Segments[0].From.ID)
		assert.Equal(t, pair[1], route.Segments[len(route.Segments)-1].To.ID)
	}
}

func TestEarlyPlanningWindow(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	// 04:00 is exactly 90 minutes before the 05:30 first departure.
	route, err := router.FindRoute("kholodna_hora", "industrialna", testutil.Day(model.Weekday, 4, 0), model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, route)

	first := route.Segments[0]
	assert.Equal(t, 5, first.Departure.Hour())
	assert.Equal(t, 30, first.Departure.Minute())
}

func TestTooEarlyIsClosed(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	_, err := router.FindRoute("kholodna_hora", "industrialna", testutil.Day(model.Weekday, 3, 59), model.Weekday)
	assert.ErrorIs(t, err, metro.ErrMetroClosed)
}

func TestAfterLastDepartureIsClosed(t *testing.T) {
	router, store := testutil.BuildRouter(t)

	last, ok, err := store.LastDepartureTime(model.Weekday)
	require.NoError(t, err)
	require.True(t, ok)

	departure := testutil.Day(model.Weekday, last.Hour, last.Minute).Add(time.Minute)
	_, err = router.FindRoute("kholodna_hora", "industrialna", departure, model.Weekday)
	assert.ErrorIs(t, err, metro.ErrMetroClosed)
}

func TestDayTypeDerivedFromDate(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	// Saturday without an explicit day type uses the weekend timetable,
	// whose first departure is 06:00.
	route, err := router.FindRoute("kholodna_hora", "industrialna", testutil.Day(model.Weekend, 5, 0), "")
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, 6, route.Segments[0].Departure.Hour())
	assert.Equal(t, 0, route.Segments[0].Departure.Minute())
}

func TestRouteUnknownStation(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	_, err := router.FindRoute("nope", "industrialna", testutil.Day(model.Weekday, 10, 0), model.Weekday)
	assert.ErrorIs(t, err, metro.ErrNoRoute)
}

func TestRouteRoundTripIsMirrored(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	out, err := router.FindRoute("kholodna_hora", "barabashova", testutil.Day(model.Weekday, 10, 0), model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, out)

	back, err := router.FindRoute("barabashova", "kholodna_hora", out.Arrival, model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, back)

	forward := out.Stations()
	reverse := back.Stations()
	require.Equal(t, len(forward), len(reverse))
	for i := range forward {
		assert.Equal(t, forward[i].ID, reverse[len(reverse)-1-i].ID)
	}
}

func TestArriveBy(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	target := testutil.Day(model.Weekday, 12, 0)
	route, err := router.FindRouteArriveBy("kholodna_hora", "levada", target, model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Len(t, route.Segments, 4)
	assert.False(t, route.Arrival.After(target))
	assert.True(t, route.Departure.Before(route.Arrival))

	for _, seg := range route.Segments {
		assert.False(t, seg.Departure.After(seg.Arrival))
	}
}

func TestArriveByBeforeServiceFallsBack(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	// No previous departures exist this early, so every segment is
	// anchored at the target with the fixed hop cost.
	target := testutil.Day(model.Weekday, 5, 30)
	route, err := router.FindRouteArriveBy("kholodna_hora", "industrialna", target, model.Weekday)
	require.NoError(t, err)
	require.NotNil(t, route)

	assert.Equal(t, target, route.Arrival)
	for _, seg := range route.Segments {
		assert.Equal(t, model.HopMinutes, seg.DurationMinutes)
	}
}

func TestScheduleForStation(t *testing.T) {
	router, _ := testutil.BuildRouter(t)

	schedules, err := router.ScheduleForStation("university", "", model.Weekend)
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	directions := map[string]bool{}
	for _, sch := range schedules {
		directions[sch.DirectionID] = true
		for i := 1; i < len(sch.Entries); i++ {
			assert.Positive(t, sch.Entries[i].Compare(sch.Entries[i-1]))
		}
	}
	// Keyed by the blue line's terminals.
	assert.True(t, directions["istorychnyi_muzei"])
	assert.True(t, directions["saltivska"])
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
