// Package toolserver exposes the routing core as tool calls over HTTP.
// Each tool answers with dual output: a human-readable text block and the
// structured payload.
package toolserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"kharkivmetro.dev/metro"
	"kharkivmetro.dev/metro/i18n"
	"kharkivmetro.dev/metro/model"
)

// Server handles the tool-call surface.
type Server struct {
	router *metro.Router
	logger *slog.Logger
}

func New(router *metro.Router, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{router: router, logger: logger}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/tools/get_route", s.handleGetRoute).Methods(http.MethodPost)
	r.HandleFunc("/tools/get_schedule", s.handleGetSchedule).Methods(http.MethodPost)
	r.HandleFunc("/tools/list_stations", s.handleListStations).Methods(http.MethodPost)
	r.HandleFunc("/tools/find_station", s.handleFindStation).Methods(http.MethodPost)
	return r
}

// ListenAndServe runs the server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("tool server listening", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

type toolResponse struct {
	Status string      `json:"status"`
	Text   string      `json:"text,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"message,omitempty"`
}

func (s *Server) reply(w http.ResponseWriter, text string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toolResponse{Status: "ok", Text: text, Data: data}); err != nil {
		s.logger.Error("encoding tool response", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(toolResponse{Status: "error", Error: err.Error()}); encErr != nil {
		s.logger.Error("encoding tool error", "error", encErr)
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decoding request body")
	}
	return nil
}

func lang(requested string) string {
	if requested == "en" {
		return "en"
	}
	return "ua"
}

type getRouteRequest struct {
	FromStation   string `json:"from_station"`
	ToStation     string `json:"to_station"`
	DepartureTime string `json:"departure_time"`
	DayType       string `json:"day_type"`
	Language      string `json:"language"`
	Format        string `json:"format"`
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	var req getRouteRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	language := lang(req.Language)

	from, err := s.router.FindStation(req.FromStation, language)
	if err != nil {
		s.fail(w, http.StatusNotFound, errors.Wrap(err, req.FromStation))
		return
	}
	to, err := s.router.FindStation(req.ToStation, language)
	if err != nil {
		s.fail(w, http.StatusNotFound, errors.Wrap(err, req.ToStation))
		return
	}

	departure := time.Now().In(s.router.Location())
	if req.DepartureTime != "" {
		parsed, err := parseClock(req.DepartureTime)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err)
			return
		}
		departure = time.Date(departure.Year(), departure.Month(), departure.Day(),
			parsed.Hour, parsed.Minute, 0, 0, s.router.Location())
	}

	route, err := s.router.FindRoute(from.ID, to.ID, departure, model.DayType(req.DayType))
	switch {
	case errors.Is(err, metro.ErrMetroClosed):
		s.fail(w, http.StatusConflict, errors.New(i18n.T(language, "error_metro_closed")))
		return
	case errors.Is(err, metro.ErrNoRoute):
		s.fail(w, http.StatusNotFound, errors.New(i18n.T(language, "error_route_not_found")))
		return
	case err != nil:
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	text := routeText(route, language, req.Format == "detailed")
	s.reply(w, text, routePayload(route, language))
}

type getScheduleRequest struct {
	Station   string `json:"station"`
	Direction string `json:"direction"`
	DayType   string `json:"day_type"`
	Language  string `json:"language"`
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	var req getScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	language := lang(req.Language)

	st, err := s.router.FindStation(req.Station, language)
	if err != nil {
		s.fail(w, http.StatusNotFound, errors.Wrap(err, req.Station))
		return
	}

	directionID := ""
	if req.Direction != "" {
		direction, err := s.router.FindStation(req.Direction, language)
		if err != nil {
			s.fail(w, http.StatusNotFound, errors.Wrap(err, req.Direction))
			return
		}
		directionID = direction.ID
	}

	schedules, err := s.router.ScheduleForStation(st.ID, directionID, model.DayType(req.DayType))
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if len(schedules) == 0 {
		s.fail(w, http.StatusNotFound, errors.New(i18n.T(language, "schedule_not_found")))
		return
	}

	s.reply(w, scheduleText(s.router.Network(), st, schedules, language), schedulePayload(s.router.Network(), schedules, language))
}

type listStationsRequest struct {
	Line     string `json:"line"`
	Language string `json:"language"`
}

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	var req listStationsRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	language := lang(req.Language)
	network := s.router.Network()

	lineKeys := network.Data.LineOrder
	if req.Line != "" {
		lineKeys = []string{req.Line}
	}

	type stationRow struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Line string `json:"line"`
	}

	rows := []stationRow{}
	textLines := []string{}
	for _, lineKey := range lineKeys {
		stations := network.StationsOnLine(model.Line(lineKey))
		if len(stations) == 0 {
			s.fail(w, http.StatusNotFound, errors.Errorf("unknown line: %s", req.Line))
			return
		}
		textLines = append(textLines, network.Data.LineDisplayName(lineKey, language)+":")
		for _, st := range stations {
			rows = append(rows, stationRow{ID: st.ID, Name: st.Name(language), Line: network.Data.LineName(lineKey, language)})
			textLines = append(textLines, "  • "+st.Name(language))
		}
		textLines = append(textLines, "")
	}

	s.reply(w, strings.Join(textLines, "\n"), rows)
}

type findStationRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

func (s *Server) handleFindStation(w http.ResponseWriter, r *http.Request) {
	var req findStationRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}
	language := lang(req.Language)

	st, err := s.router.FindStation(req.Name, language)
	if err != nil {
		s.fail(w, http.StatusNotFound, errors.Wrap(err, req.Name))
		return
	}

	network := s.router.Network()
	payload := map[string]interface{}{
		"id":          st.ID,
		"name":        st.Name(language),
		"line":        network.Data.LineName(string(st.Line), language),
		"order":       st.Order,
		"transfer_to": st.TransferTo,
	}
	s.reply(w, fmt.Sprintf("%s (%s)", st.Name(language), network.Data.LineDisplayName(string(st.Line), language)), payload)
}

func parseClock(raw string) (model.ScheduleEntry, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return model.ScheduleEntry{}, errors.Errorf("invalid time: %s", raw)
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return model.ScheduleEntry{}, errors.Errorf("invalid time: %s", raw)
	}
	return model.ScheduleEntry{Hour: hour, Minute: minute}, nil
}

func routeText(route *model.Route, language string, detailed bool) string {
	minText := i18n.T(language, "min")
	lines := []string{
		route.Path(language, !detailed),
		fmt.Sprintf("%s → %s | %d %s, %s",
			route.Departure.Format("15:04"), route.Arrival.Format("15:04"),
			route.TotalDurationMinutes, minText, i18n.Transfers(language, route.NumTransfers)),
	}
	if detailed {
		for _, seg := range route.Segments {
			marker := "•"
			if seg.IsTransfer {
				marker = "⇌"
			}
			lines = append(lines, fmt.Sprintf("%s %s → %s (%d %s)",
				marker, seg.From.Name(language), seg.To.Name(language), seg.DurationMinutes, minText))
		}
	}
	return strings.Join(lines, "\n")
}

func routePayload(route *model.Route, language string) map[string]interface{} {
	segments := make([]map[string]interface{}, 0, len(route.Segments))
	for _, seg := range route.Segments {
		segments = append(segments, map[string]interface{}{
			"from_station":     seg.From.Name(language),
			"to_station":       seg.To.Name(language),
			"departure_time":   formatTime(seg.Departure),
			"arrival_time":     formatTime(seg.Arrival),
			"is_transfer":      seg.IsTransfer,
			"duration_minutes": seg.DurationMinutes,
		})
	}
	return map[string]interface{}{
		"total_duration_minutes": route.TotalDurationMinutes,
		"num_transfers":          route.NumTransfers,
		"departure_time":         formatTime(route.Departure),
		"arrival_time":           formatTime(route.Arrival),
		"segments":               segments,
	}
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func scheduleText(n *metro.Network, st *model.Station, schedules []*model.StationSchedule, language string) string {
	lines := []string{st.Name(language)}
	for _, sch := range schedules {
		direction := n.Station(sch.DirectionID)
		if direction == nil {
			continue
		}
		lines = append(lines, "", i18n.T(language, "direction")+": "+direction.Name(language))

		byHour := map[int][]int{}
		for _, e := range sch.Entries {
			byHour[e.Hour] = append(byHour[e.Hour], e.Minute)
		}
		hours := make([]int, 0, len(byHour))
		for h := range byHour {
			hours = append(hours, h)
		}
		sort.Ints(hours)
		for _, h := range hours {
			minutes := byHour[h]
			sort.Ints(minutes)
			parts := make([]string, len(minutes))
			for i, m := range minutes {
				parts[i] = fmt.Sprintf("%02d", m)
			}
			lines = append(lines, fmt.Sprintf("%02d: %s", h, strings.Join(parts, ", ")))
		}
	}
	return strings.Join(lines, "\n")
}

func schedulePayload(n *metro.Network, schedules []*model.StationSchedule, language string) []map[string]interface{} {
	out := []map[string]interface{}{}
	for _, sch := range schedules {
		entries := make([]string, 0, len(sch.Entries))
		for _, e := range sch.Entries {
			entries = append(entries, e.String())
		}
		directionName := sch.DirectionID
		if direction := n.Station(sch.DirectionID); direction != nil {
			directionName = direction.Name(language)
		}
		out = append(out, map[string]interface{}{
			"station_id": sch.StationID,
			"direction":  directionName,
			"day_type":   string(sch.DayType),
			"entries":    entries,
		})
	}
	return out
}
