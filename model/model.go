package model

import (
	"crypto/md5"
	"fmt"
	"time"
)

// Holds the external facing types shared by the store, the graph, the
// router and the user-facing surfaces.

type Line string

const (
	LineKholodnohirskoZavodska Line = "kholodnohirsko_zavodska"
	LineSaltivska              Line = "saltivska"
	LineOleksiivska            Line = "oleksiivska"
)

// Lines in the order the network publishes them.
var Lines = []Line{LineKholodnohirskoZavodska, LineSaltivska, LineOleksiivska}

type DayType string

const (
	Weekday DayType = "weekday"
	Weekend DayType = "weekend"
)

// DayTypeFor maps a calendar day onto its schedule variant.
func DayTypeFor(t time.Time) DayType {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return Weekend
	}
	return Weekday
}

const (
	// HopMinutes is the fixed cost of one adjacency traversal.
	HopMinutes = 2
	// TransferMinutes is the fixed cost of a cross-line interchange walk.
	TransferMinutes = 3
)

// Station is immutable after the network data is loaded.
type Station struct {
	ID         string
	NameUA     string
	NameEN     string
	Line       Line
	Order      int
	TransferTo string
}

// Name returns the station name in the requested language, falling back
// to Ukrainian.
func (s *Station) Name(lang string) string {
	if lang == "en" {
		return s.NameEN
	}
	return s.NameUA
}

// ScheduleEntry is a single published departure, clock-time on a 24 hour
// cycle.
type ScheduleEntry struct {
	Hour   int
	Minute int
}

func (e ScheduleEntry) String() string {
	return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
}

// Compare orders entries lexicographically on (hour, minute).
func (e ScheduleEntry) Compare(o ScheduleEntry) int {
	if e.Hour != o.Hour {
		return e.Hour - o.Hour
	}
	return e.Minute - o.Minute
}

// At composes the entry with the date and location of base. The result
// always carries base's location.
func (e ScheduleEntry) At(base time.Time) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), e.Hour, e.Minute, 0, 0, base.Location())
}

// StationSchedule is the departure list for one (station, direction,
// day type). Direction is the terminal the train is heading toward.
type StationSchedule struct {
	StationID   string
	DirectionID string
	DayType     DayType
	Entries     []ScheduleEntry
}

// NextDepartures returns up to limit entries at or after after, ascending.
func (s *StationSchedule) NextDepartures(after ScheduleEntry, limit int) []ScheduleEntry {
	out := []ScheduleEntry{}
	for _, e := range s.Entries {
		if e.Compare(after) >= 0 {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// RouteSegment is one hop of an itinerary: a single adjacency traversal
// or one transfer walk.
type RouteSegment struct {
	From            *Station
	To              *Station
	Departure       time.Time
	Arrival         time.Time
	IsTransfer      bool
	DurationMinutes int
}

// Route is a complete timed itinerary.
type Route struct {
	Segments             []RouteSegment
	TotalDurationMinutes int
	NumTransfers         int
	Departure            time.Time
	Arrival              time.Time
}

// Stations returns every station visited, in order.
func (r *Route) Stations() []*Station {
	if len(r.Segments) == 0 {
		return nil
	}
	out := []*Station{r.Segments[0].From}
	for _, seg := range r.Segments {
		out = append(out, seg.To)
	}
	return out
}

// LineGroup is a maximal run of same-line segments, or a single transfer.
type LineGroup struct {
	From            *Station
	To              *Station
	IsTransfer      bool
	Line            Line
	DurationMinutes int
	Departure       time.Time
	Arrival         time.Time
	Segments        []RouteSegment
}

// LineGroups collapses the segment list into per-line runs with transfers
// kept as their own groups.
func (r *Route) LineGroups() []LineGroup {
	groups := []LineGroup{}
	i := 0
	for i < len(r.Segments) {
		seg := r.Segments[i]
		if seg.IsTransfer {
			groups = append(groups, LineGroup{
				From:            seg.From,
				To:              seg.To,
				IsTransfer:      true,
				DurationMinutes: seg.DurationMinutes,
				Departure:       seg.Departure,
				Arrival:         seg.Arrival,
				Segments:        []RouteSegment{seg},
			})
			i++
			continue
		}
		g := LineGroup{
			From:            seg.From,
			To:              seg.To,
			Line:            seg.From.Line,
			DurationMinutes: seg.DurationMinutes,
			Departure:       seg.Departure,
			Arrival:         seg.Arrival,
			Segments:        []RouteSegment{seg},
		}
		i++
		for i < len(r.Segments) && !r.Segments[i].IsTransfer {
			g.To = r.Segments[i].To
			g.Arrival = r.Segments[i].Arrival
			g.DurationMinutes += r.Segments[i].DurationMinutes
			g.Segments = append(g.Segments, r.Segments[i])
			i++
		}
		groups = append(groups, g)
	}
	return groups
}

// Path renders the visited stations as an arrow-joined string. Compact
// mode keeps only the endpoints and the transfer pairs.
func (r *Route) Path(lang string, compact bool) string {
	if len(r.Segments) == 0 {
		return ""
	}
	if compact {
		parts := []string{r.Segments[0].From.Name(lang)}
		for _, seg := range r.Segments {
			if seg.IsTransfer {
				parts = append(parts, seg.From.Name(lang)+" ⇌ "+seg.To.Name(lang))
			}
		}
		last := r.Segments[len(r.Segments)-1]
		if !last.IsTransfer {
			parts = append(parts, last.To.Name(lang))
		}
		return joinArrow(parts)
	}

	seen := map[string]bool{r.Segments[0].From.Name(lang): true}
	parts := []string{r.Segments[0].From.Name(lang)}
	for _, seg := range r.Segments {
		name := seg.To.Name(lang)
		if seen[name] {
			continue
		}
		if seg.IsTransfer {
			parts = append(parts, "⇌ "+name)
		} else {
			parts = append(parts, name)
		}
		seen[name] = true
	}
	return joinArrow(parts)
}

func joinArrow(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " → "
		}
		out += p
	}
	return out
}

// Fingerprint is the short key used in inline-button payloads: the first
// 12 hex digits of the MD5 of (from, to, departure epoch).
func (r *Route) Fingerprint() string {
	if len(r.Segments) == 0 {
		return ""
	}
	from := r.Segments[0].From.ID
	to := r.Segments[len(r.Segments)-1].To.ID
	var epoch int64
	if !r.Segments[0].Departure.IsZero() {
		epoch = r.Segments[0].Departure.Unix()
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s:%d", from, to, epoch)))
	return fmt.Sprintf("%x", sum)[:12]
}
