// Package metro is the routing core: the static network model, the
// weighted graph over it, and the schedule-aware trip builder.
package metro

import (
	"sort"
	"strings"

	"kharkivmetro.dev/metro/metrodata"
	"kharkivmetro.dev/metro/model"
)

// Network is the deeply immutable view of the metro topology plus the
// name-lookup index. Built once at process init.
type Network struct {
	Data     *metrodata.Data
	stations map[string]*model.Station
	byLine   map[model.Line][]*model.Station

	// lang -> lower-cased/normalized name -> station
	nameIndex map[string]map[string]*model.Station
}

// NewNetwork loads the bundled data and builds the lookup indexes.
func NewNetwork() (*Network, error) {
	data, err := metrodata.Load()
	if err != nil {
		return nil, err
	}

	n := &Network{
		Data:      data,
		stations:  data.Stations(),
		byLine:    map[model.Line][]*model.Station{},
		nameIndex: map[string]map[string]*model.Station{},
	}

	for _, st := range n.stations {
		n.byLine[st.Line] = append(n.byLine[st.Line], st)
	}
	for _, line := range n.byLine {
		sort.Slice(line, func(i, j int) bool { return line[i].Order < line[j].Order })
	}

	n.buildNameIndex()
	return n, nil
}

func (n *Network) buildNameIndex() {
	for _, lang := range []string{"ua", "en"} {
		index := map[string]*model.Station{}
		for _, st := range n.stations {
			name := strings.ToLower(st.Name(lang))
			index[name] = st
			if norm := normalizeName(name); norm != name {
				index[norm] = st
			}
		}
		n.nameIndex[lang] = index
	}

	// Aliases resolve against canonical Ukrainian names.
	ua := n.nameIndex["ua"]
	for alias, canonical := range n.Data.Aliases {
		if st, ok := ua[strings.ToLower(strings.TrimSpace(canonical))]; ok {
			ua[strings.ToLower(strings.TrimSpace(alias))] = st
		}
	}
}

// normalizeName strips guillemets, curly quotes and apostrophes and
// collapses whitespace.
func normalizeName(name string) string {
	r := strings.NewReplacer("«", "", "»", "", "“", "", "”", "", "'", "", "’", "", "ʼ", "")
	return strings.Join(strings.Fields(r.Replace(name)), " ")
}

// Station returns a station by id, or nil.
func (n *Network) Station(id string) *model.Station {
	return n.stations[id]
}

// Stations returns the id-keyed station map. Callers must not mutate it.
func (n *Network) Stations() map[string]*model.Station {
	return n.stations
}

// StationsOnLine returns a line's stations in physical order.
func (n *Network) StationsOnLine(line model.Line) []*model.Station {
	return n.byLine[line]
}

// FindStation resolves a user-supplied name to a station. Exact matches
// (including aliases and normalized forms) win; otherwise the first
// substring match in either direction is returned.
func (n *Network) FindStation(name, lang string) *model.Station {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}

	index := n.nameIndex[lang]
	if index == nil {
		index = n.nameIndex["ua"]
	}
	if st, ok := index[needle]; ok {
		return st
	}
	if st, ok := index[normalizeName(needle)]; ok {
		return st
	}

	for _, line := range model.Lines {
		for _, st := range n.byLine[line] {
			stName := strings.ToLower(st.Name(lang))
			if strings.Contains(stName, needle) || strings.Contains(needle, stName) {
				return st
			}
		}
	}
	return nil
}

// Terminals returns a line's (first, last) terminal ids.
func (n *Network) Terminals(line model.Line) (string, string) {
	stations := n.byLine[line]
	if len(stations) == 0 {
		return "", ""
	}
	return stations[0].ID, stations[len(stations)-1].ID
}
