// Package metrodata loads the bundled description of the network: line
// order, per-line station lists, transfer pairs, display metadata and the
// alias table. The data is embedded at build time and normalized once.
package metrodata

import (
	_ "embed"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"kharkivmetro.dev/metro/model"
)

//go:embed data.toml
var rawData []byte

// StationRecord is a raw station row from the data file.
type StationRecord struct {
	ID     string `toml:"id"`
	NameUA string `toml:"name_ua"`
	NameEN string `toml:"name_en"`
}

// LineMeta is per-line display metadata.
type LineMeta struct {
	Color     string `toml:"color"`
	Emoji     string `toml:"emoji"`
	NameUA    string `toml:"name_ua"`
	NameEN    string `toml:"name_en"`
	DisplayUA string `toml:"display_ua"`
	DisplayEN string `toml:"display_en"`
}

// DayTypeMeta is per-day-type display metadata.
type DayTypeMeta struct {
	Emoji  string `toml:"emoji"`
	NameUA string `toml:"name_ua"`
	NameEN string `toml:"name_en"`
}

// Data is the normalized, read-only view of the bundled file.
type Data struct {
	LineOrder      []string
	StationsByLine map[string][]StationRecord
	Transfers      map[string]string
	Aliases        map[string]string
	LineMeta       map[string]LineMeta
	DayTypes       map[string]DayTypeMeta
}

var (
	loadOnce sync.Once
	loaded   *Data
	loadErr  error
)

// Load parses and normalizes the embedded data file. The result is shared
// and must not be mutated.
func Load() (*Data, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parse(rawData)
	})
	return loaded, loadErr
}

// The [lines] table mixes the "order" array with per-line subtables, so
// it is decoded generically and normalized by hand.
func parse(raw []byte) (*Data, error) {
	var doc struct {
		Lines    map[string]interface{}  `toml:"lines"`
		Transfer map[string]string       `toml:"transfers"`
		Aliases  map[string]string       `toml:"aliases"`
		LineMeta map[string]LineMeta     `toml:"line_meta"`
		DayTypes map[string]DayTypeMeta  `toml:"day_types"`
	}
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing metro data")
	}

	d := &Data{
		StationsByLine: map[string][]StationRecord{},
		Transfers:      doc.Transfer,
		Aliases:        doc.Aliases,
		LineMeta:       doc.LineMeta,
		DayTypes:       doc.DayTypes,
	}

	order, ok := doc.Lines["order"].([]interface{})
	if !ok {
		return nil, errors.New("metro data: lines.order missing")
	}
	for _, v := range order {
		key, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("metro data: bad line key %v", v)
		}
		d.LineOrder = append(d.LineOrder, key)
	}

	for key, v := range doc.Lines {
		if key == "order" {
			continue
		}
		table, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		rows, ok := table["stations"].([]interface{})
		if !ok {
			return nil, errors.Errorf("metro data: line %s has no stations", key)
		}
		for _, r := range rows {
			row, ok := r.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("metro data: bad station row on line %s", key)
			}
			rec := StationRecord{
				ID:     asString(row["id"]),
				NameUA: asString(row["name_ua"]),
				NameEN: asString(row["name_en"]),
			}
			if rec.ID == "" {
				return nil, errors.Errorf("metro data: station without id on line %s", key)
			}
			d.StationsByLine[key] = append(d.StationsByLine[key], rec)
		}
	}

	for from, to := range d.Transfers {
		if d.Transfers[to] != from {
			return nil, errors.Errorf("metro data: transfer %s -> %s is not symmetric", from, to)
		}
	}

	return d, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// Stations builds the full station map from the bundled data, assigning
// dense 1-based orders per line and wiring transfer links.
func (d *Data) Stations() map[string]*model.Station {
	stations := map[string]*model.Station{}
	for _, lineKey := range d.LineOrder {
		for i, rec := range d.StationsByLine[lineKey] {
			stations[rec.ID] = &model.Station{
				ID:         rec.ID,
				NameUA:     rec.NameUA,
				NameEN:     rec.NameEN,
				Line:       model.Line(lineKey),
				Order:      i + 1,
				TransferTo: d.Transfers[rec.ID],
			}
		}
	}
	return stations
}

// LineDisplayName returns the display name (emoji prefixed) for a line key.
func (d *Data) LineDisplayName(lineKey, lang string) string {
	meta, ok := d.LineMeta[lineKey]
	if !ok {
		return lineKey
	}
	if lang == "en" {
		return meta.DisplayEN
	}
	return meta.DisplayUA
}

// LineName returns the plain line name without emoji.
func (d *Data) LineName(lineKey, lang string) string {
	meta, ok := d.LineMeta[lineKey]
	if !ok {
		return lineKey
	}
	if lang == "en" {
		return meta.NameEN
	}
	return meta.NameUA
}
