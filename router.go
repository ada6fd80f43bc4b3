package metro

import (
	"sync"
	"time"

	"kharkivmetro.dev/metro/model"
	"kharkivmetro.dev/metro/storage"
)

// Router turns graph paths into timed itineraries that respect the
// published departure times. Safe for concurrent callers; the departure
// lookups are memoized per router instance because the underlying data
// only changes via the scrape command.
type Router struct {
	store   *storage.Store
	network *Network
	graph   *Graph
	loc     *time.Location

	terminalsOnce sync.Once
	terminals     map[model.Line][2]string

	cacheMu   sync.RWMutex
	nextCache map[departureKey][]model.ScheduleEntry
	prevCache map[departureKey][]model.ScheduleEntry
}

type departureKey struct {
	stationID   string
	directionID string
	dayType     model.DayType
	hour        int
	minute      int
	limit       int
}

// NewRouter wires the router to its store and network. loc is the single
// timezone used for all wall-clock comparisons.
func NewRouter(store *storage.Store, network *Network, graph *Graph, loc *time.Location) *Router {
	return &Router{
		store:     store,
		network:   network,
		graph:     graph,
		loc:       loc,
		nextCache: map[departureKey][]model.ScheduleEntry{},
		prevCache: map[departureKey][]model.ScheduleEntry{},
	}
}

// Network exposes the router's station index to the surfaces.
func (r *Router) Network() *Network { return r.network }

// Location returns the router's timezone.
func (r *Router) Location() *time.Location { return r.loc }

// FindStation resolves a name or alias. Returns ErrUnknownStation when
// nothing matches.
func (r *Router) FindStation(name, lang string) (*model.Station, error) {
	st := r.network.FindStation(name, lang)
	if st == nil {
		return nil, ErrUnknownStation
	}
	return st, nil
}

// FindRoute builds a depart-at itinerary. An empty dayType is derived
// from the departure's calendar day. Returns ErrMetroClosed when the trip
// cannot run, ErrNoRoute when the graph has no path.
func (r *Router) FindRoute(fromID, toID string, departure time.Time, dayType model.DayType) (*model.Route, error) {
	departure = departure.In(r.loc)
	if dayType == "" {
		dayType = model.DayTypeFor(departure)
	}

	status, err := r.store.IsMetroOpen(dayType, entryOf(departure), storage.DefaultEarlyWindowMinutes)
	if err != nil {
		return nil, err
	}
	if !status.Open {
		return nil, ErrMetroClosed
	}

	path, _, ok := r.graph.FindShortestPath(fromID, toID)
	if !ok {
		return nil, ErrNoRoute
	}

	route, err := r.buildRoute(path, departure, dayType)
	if err != nil {
		return nil, err
	}

	if !route.Arrival.IsZero() {
		status, err := r.store.IsMetroOpen(dayType, entryOf(route.Arrival), storage.DefaultEarlyWindowMinutes)
		if err != nil {
			return nil, err
		}
		if !status.Open {
			return nil, ErrMetroClosed
		}
	}

	return route, nil
}

// FindRouteArriveBy builds an itinerary that arrives no later than the
// target. Returns ErrNoRoute when no schedule alignment can make it.
func (r *Router) FindRouteArriveBy(fromID, toID string, arriveBy time.Time, dayType model.DayType) (*model.Route, error) {
	arriveBy = arriveBy.In(r.loc)
	if dayType == "" {
		dayType = model.DayTypeFor(arriveBy)
	}

	status, err := r.store.IsMetroOpen(dayType, entryOf(arriveBy), storage.DefaultEarlyWindowMinutes)
	if err != nil {
		return nil, err
	}
	if !status.Open {
		return nil, ErrMetroClosed
	}

	path, _, ok := r.graph.FindShortestPath(fromID, toID)
	if !ok {
		return nil, ErrNoRoute
	}

	route, err := r.buildRouteArriveBy(path, arriveBy, dayType)
	if err != nil {
		return nil, err
	}
	if !route.Arrival.IsZero() && route.Arrival.After(arriveBy) {
		return nil, ErrNoRoute
	}

	if !route.Departure.IsZero() {
		status, err := r.store.IsMetroOpen(dayType, entryOf(route.Departure), storage.DefaultEarlyWindowMinutes)
		if err != nil {
			return nil, err
		}
		if !status.Open {
			return nil, ErrMetroClosed
		}
	}

	return route, nil
}

func (r *Router) buildRoute(path []string, start time.Time, dayType model.DayType) (*model.Route, error) {
	stations := r.network.Stations()

	segments := []model.RouteSegment{}
	numTransfers := 0

	current := start
	var currentLine model.Line
	haveLine := false
	direction := ""

	for i := 0; i < len(path)-1; i++ {
		from := stations[path[i]]
		to := stations[path[i+1]]

		if from.TransferTo == to.ID {
			arrival := current.Add(model.TransferMinutes * time.Minute)
			segments = append(segments, model.RouteSegment{
				From:            from,
				To:              to,
				Departure:       current,
				Arrival:         arrival,
				IsTransfer:      true,
				DurationMinutes: model.TransferMinutes,
			})
			numTransfers++
			current = arrival
			haveLine = false
			direction = ""
			continue
		}

		if !haveLine || from.Line != currentLine {
			currentLine = from.Line
			haveLine = true
			direction = r.directionInPath(path, i, currentLine)

			// Board the next scheduled train from this station.
			next := r.nextDepartures(from.ID, direction, dayType, entryOf(current), 1)
			if len(next) == 0 {
				return nil, ErrMetroClosed
			}
			boarding := next[0].At(current)
			if boarding.Before(current) {
				boarding = boarding.Add(24 * time.Hour)
			}
			current = boarding
		}

		arrival, ok := r.arrivalAt(to.ID, direction, dayType, current)
		travel := model.HopMinutes
		if ok {
			travel = int(arrival.Sub(current).Minutes())
		} else {
			arrival = current.Add(model.HopMinutes * time.Minute)
		}

		segments = append(segments, model.RouteSegment{
			From:            from,
			To:              to,
			Departure:       current,
			Arrival:         arrival,
			IsTransfer:      false,
			DurationMinutes: travel,
		})
		current = arrival
	}

	return finishRoute(segments, numTransfers), nil
}

func (r *Router) buildRouteArriveBy(path []string, arriveBy time.Time, dayType model.DayType) (*model.Route, error) {
	stations := r.network.Stations()

	reversed := []model.RouteSegment{}
	numTransfers := 0

	current := arriveBy
	var currentLine model.Line
	haveLine := false
	direction := ""

	for i := len(path) - 1; i > 0; i-- {
		from := stations[path[i-1]]
		to := stations[path[i]]

		if from.TransferTo == to.ID {
			departure := current.Add(-model.TransferMinutes * time.Minute)
			reversed = append(reversed, model.RouteSegment{
				From:            from,
				To:              to,
				Departure:       departure,
				Arrival:         current,
				IsTransfer:      true,
				DurationMinutes: model.TransferMinutes,
			})
			numTransfers++
			current = departure
			haveLine = false
			direction = ""
			continue
		}

		if !haveLine || from.Line != currentLine {
			currentLine = from.Line
			haveLine = true
			direction = r.directionInPath(path, i-1, currentLine)
		}

		departure, arrival, found, empty := r.departureBefore(from.ID, to.ID, direction, dayType, current)
		var travel int
		switch {
		case found:
			travel = int(arrival.Sub(departure).Minutes())
			if travel <= 0 {
				travel = model.HopMinutes
				arrival = departure.Add(model.HopMinutes * time.Minute)
			}
		case empty:
			// No published departures at all for this hop: anchor the
			// segment at the target and assume the fixed hop cost.
			travel = model.HopMinutes
			arrival = current
			departure = current.Add(-model.HopMinutes * time.Minute)
		default:
			// Departures exist but none arrives in time. Keep the real
			// schedule; the late arrival fails the caller's target check.
			departure, arrival = r.latestRealPlacement(from.ID, to.ID, direction, dayType, current)
			travel = int(arrival.Sub(departure).Minutes())
			if travel <= 0 {
				travel = model.HopMinutes
				arrival = departure.Add(model.HopMinutes * time.Minute)
			}
		}

		reversed = append(reversed, model.RouteSegment{
			From:            from,
			To:              to,
			Departure:       departure,
			Arrival:         arrival,
			IsTransfer:      false,
			DurationMinutes: travel,
		})
		current = departure
	}

	segments := make([]model.RouteSegment, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		segments = append(segments, reversed[i])
	}

	return finishRoute(segments, numTransfers), nil
}

const arriveByCandidates = 5

// departureBefore finds the latest departure from the boarding station
// that still arrives at the alighting station by the target. empty is
// true when the schedule lookup returned nothing at all.
func (r *Router) departureBefore(fromID, toID, direction string, dayType model.DayType, target time.Time) (dep, arr time.Time, found, empty bool) {
	previous := r.previousDepartures(fromID, direction, dayType, entryOf(target), arriveByCandidates)
	if len(previous) == 0 {
		return time.Time{}, time.Time{}, false, true
	}

	for _, candidate := range previous {
		departure := candidate.At(target)
		if departure.After(target) {
			departure = departure.Add(-24 * time.Hour)
		}
		arrival, ok := r.arrivalAt(toID, direction, dayType, departure)
		if ok && !arrival.After(target) {
			return departure, arrival, true, false
		}
	}
	return time.Time{}, time.Time{}, false, false
}

// latestRealPlacement places the segment on the latest real departure
// before the target, with its actual (late) arrival.
func (r *Router) latestRealPlacement(fromID, toID, direction string, dayType model.DayType, target time.Time) (time.Time, time.Time) {
	previous := r.previousDepartures(fromID, direction, dayType, entryOf(target), 1)
	departure := previous[0].At(target)
	if departure.After(target) {
		departure = departure.Add(-24 * time.Hour)
	}
	arrival, ok := r.arrivalAt(toID, direction, dayType, departure)
	if !ok {
		arrival = departure.Add(model.HopMinutes * time.Minute)
	}
	return departure, arrival
}

// arrivalAt looks up when a train reaches the station heading toward the
// direction terminal, at or after t. Rolls past midnight when the next
// entry is earlier on the clock.
func (r *Router) arrivalAt(stationID, direction string, dayType model.DayType, t time.Time) (time.Time, bool) {
	arrivals := r.nextDepartures(stationID, direction, dayType, entryOf(t), 1)
	if len(arrivals) == 0 {
		return time.Time{}, false
	}
	arrival := arrivals[0].At(t)
	if arrival.Before(t) {
		arrival = arrival.Add(24 * time.Hour)
	}
	return arrival, true
}

// directionInPath resolves the direction terminal for the line run
// starting at startIdx: the terminal on the same side of the path as the
// following same-line stations.
func (r *Router) directionInPath(path []string, startIdx int, line model.Line) string {
	stations := r.network.Stations()

	lastIdx := startIdx
	for i := startIdx; i < len(path); i++ {
		if stations[path[i]].Line == line {
			lastIdx = i
		} else {
			break
		}
	}

	if lastIdx > startIdx {
		firstOrder := stations[path[startIdx]].Order
		lastOrder := stations[path[lastIdx]].Order
		first, last := r.lineTerminals(line)
		if lastOrder > firstOrder {
			return last
		}
		return first
	}

	return path[startIdx]
}

func (r *Router) lineTerminals(line model.Line) (string, string) {
	r.terminalsOnce.Do(func() {
		r.terminals = map[model.Line][2]string{}
		for _, l := range model.Lines {
			first, last := r.network.Terminals(l)
			r.terminals[l] = [2]string{first, last}
		}
	})
	t := r.terminals[line]
	return t[0], t[1]
}

func (r *Router) nextDepartures(stationID, direction string, dayType model.DayType, after model.ScheduleEntry, limit int) []model.ScheduleEntry {
	key := departureKey{stationID, direction, dayType, after.Hour, after.Minute, limit}

	r.cacheMu.RLock()
	cached, ok := r.nextCache[key]
	r.cacheMu.RUnlock()
	if ok {
		return cached
	}

	entries, err := r.store.GetNextDepartures(stationID, direction, dayType, after, limit)
	if err != nil {
		return nil
	}

	r.cacheMu.Lock()
	r.nextCache[key] = entries
	r.cacheMu.Unlock()
	return entries
}

func (r *Router) previousDepartures(stationID, direction string, dayType model.DayType, before model.ScheduleEntry, limit int) []model.ScheduleEntry {
	key := departureKey{stationID, direction, dayType, before.Hour, before.Minute, limit}

	r.cacheMu.RLock()
	cached, ok := r.prevCache[key]
	r.cacheMu.RUnlock()
	if ok {
		return cached
	}

	entries, err := r.store.GetPreviousDepartures(stationID, direction, dayType, before, limit)
	if err != nil {
		return nil
	}

	r.cacheMu.Lock()
	r.prevCache[key] = entries
	r.cacheMu.Unlock()
	return entries
}

// ScheduleForStation returns a station's schedules, optionally narrowed
// to one direction. An empty dayType means today's.
func (r *Router) ScheduleForStation(stationID, directionID string, dayType model.DayType) ([]*model.StationSchedule, error) {
	if dayType == "" {
		dayType = model.DayTypeFor(time.Now().In(r.loc))
	}
	if directionID != "" {
		sch, err := r.store.GetSchedule(stationID, directionID, dayType)
		if err != nil {
			return nil, err
		}
		if sch == nil {
			return nil, nil
		}
		return []*model.StationSchedule{sch}, nil
	}
	return r.store.GetAllSchedulesForStation(stationID, dayType)
}

func finishRoute(segments []model.RouteSegment, numTransfers int) *model.Route {
	route := &model.Route{Segments: segments, NumTransfers: numTransfers}
	if len(segments) == 0 {
		return route
	}

	first, last := segments[0], segments[len(segments)-1]
	if !first.Departure.IsZero() && !last.Arrival.IsZero() {
		route.Departure = first.Departure
		route.Arrival = last.Arrival
		route.TotalDurationMinutes = int(last.Arrival.Sub(first.Departure).Minutes())
	} else {
		for _, s := range segments {
			route.TotalDurationMinutes += s.DurationMinutes
		}
	}
	return route
}

func entryOf(t time.Time) model.ScheduleEntry {
	return model.ScheduleEntry{Hour: t.Hour(), Minute: t.Minute()}
}
