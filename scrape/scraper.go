// Package scrape ingests the published timetables from metro.kharkiv.ua.
// The site lists weekday and weekend pages per line; the green line's
// stations are reached through direct URLs because the line page does
// not link them all. Several slugs carry the site's own misspellings.
package scrape

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"kharkivmetro.dev/metro/model"
)

const BaseURL = "https://www.metro.kharkiv.ua"

var lineURLs = map[model.DayType]map[string]string{
	model.Weekday: {
		"kholodnohirsko_zavodska": "kholodnohikrsko-zavodska-liniia/",
		"saltivska":               "saltivska-liniia/",
		"oleksiivska":             "oleksiivska-liniia/",
	},
	model.Weekend: {
		"kholodnohirsko_zavodska": "kholodnohikrsko-zavodska-liniia-vykhidni-dni/",
		"saltivska":               "saltivska-liniia.html",
		"oleksiivska":             "oleksiivska-liniia-vykhidni-dni/",
	},
}

// Direct station URLs for the green line, keyed by station id. The slugs
// reproduce the site's typos verbatim.
var line3StationURLs = map[model.DayType]map[string]string{
	model.Weekday: {
		"metrobudivnykiv":     "stantsiia-%C2%ABmetkrobudivnykiv%C2%BB.html",
		"zakhysnykiv_ukrainy": "stantsiia-%C2%ABzakhysnykiv-ukkrainy%C2%BB.html",
		"beketova":            "stantsiia-%C2%ABakrkhitektokra-beketova%C2%BB.html",
		"derzhprom":           "stantsiia-%C2%ABdekrzhpkrom%C2%BB.html",
		"naukova":             "stantsiia-%C2%ABnaukova%C2%BB.html",
		"botanichnyi_sad":     "stantsiia-%C2%ABbotanichnyi-sad%C2%BB.html",
		"23_serpnia":          "stantsiia-%C2%AB23-sekrpnia%C2%BB.html",
		"oleksiivska":         "stantsiia-%C2%ABoleksiivska%C2%BB.html",
		"peremoha":            "stantsiia-%C2%ABpekremoha%C2%BB.html",
	},
	model.Weekend: {
		"metrobudivnykiv":     "stantsiia-%C2%ABmetkrobudivnykiv%C2%BB-(vykhidni-dni).html",
		"zakhysnykiv_ukrainy": "stantsiia-%C2%ABzakhysnykiv-ukkrainy%C2%BB-(vykhidni-dni).html",
		"beketova":            "stantsiia-%C2%ABakrkhitektokra-beketova%C2%BB-(vykhidni-dni).html",
		"derzhprom":           "stantsiia-%C2%ABdekrzhpkrom%C2%BB-(vykhidni-dni).html",
		"naukova":             "stantsiia-%C2%ABnaukova%C2%BB-(vykhidni-dni).html",
		"botanichnyi_sad":     "stantsiia-%C2%ABbotanichnyi-sad%C2%BB-(vykhidni-dni).html",
		"23_serpnia":          "stantsiia-%C2%AB23-sekrpnia%C2%BB-(vykhidni-dni).html",
		"oleksiivska":         "stantsiia-%C2%ABoleksiivska%C2%BB-(vykhidni-dni).html",
		"peremoha":            "stantsiia-%C2%ABpekremoha%C2%BB-(vykhidni-dni).html",
	},
}

// URL slug to station id, including the misspelled variants.
var stationSlugs = map[string]string{
	"kholodna-hokra":       "kholodna_hora",
	"vokzalna":             "vokzalna",
	"tsentkralnyi-krynok":  "tsentralnyi_rynok",
	"maidan-konstytutsii":  "maidan_konstytutsii",
	"levada":               "levada",
	"spokrtyvna":           "sportyvna",
	"zavodska":             "zavodska",
	"tukrboatom":           "turboatom",
	"palats-spokrtu":       "palats_sportu",
	"akrmiiska":            "armiiska",
	"im.-o.s.-maselskoho":  "maselskoho",
	"tkraktokrnyi-zavod":   "traktornyi_zavod",
	"industkrialna":        "industrialna",
	"istokrychnyi-muzei":   "istorychnyi_muzei",
	"universytet":          "university",
	"univekrsytet":         "university",
	"pushkinska":           "yaroslava_mudroho",
	"yakroslava-mudkroho":  "yaroslava_mudroho",
	"kyivska":              "kyivska",
	"akademika-bakrabashova": "barabashova",
	"akademika-pavlova":    "pavlova",
	"studentska":           "studentska",
	"heroiv-praci":         "saltivska",
	"saltivska":            "saltivska",
	"metrobudivnykiv":      "metrobudivnykiv",
	"metkrobudivnykiv":     "metrobudivnykiv",
	"zakhysnykiv-ukrainy":  "zakhysnykiv_ukrainy",
	"zakhysnykiv-ukkrainy": "zakhysnykiv_ukrainy",
	"akrkhitektokra-beketova": "beketova",
	"derzhprom":            "derzhprom",
	"dekrzhpkrom":          "derzhprom",
	"nauky":                "naukova",
	"naukova":              "naukova",
	"botanichnyi-sad":      "botanichnyi_sad",
	"23-serpnia":           "23_serpnia",
	"23-sekrpnia":          "23_serpnia",
	"oleksiivska":          "oleksiivska",
	"pekremoha":            "peremoha",
	"peremoha":             "peremoha",
}

var (
	slugRe   = regexp.MustCompile(`stantsiia-[«"]?([^"»]+?)["»]?(?:-\(?(?:vykhidni-dni)\)?)?\.html`)
	hourRe   = regexp.MustCompile(`^(\d+):?`)
	minuteRe = regexp.MustCompile(`(\d+)`)
	headerRe = regexp.MustCompile(`[«"]([^»"]+)[»"]`)
)

// Scraper fetches and parses timetable pages with bounded concurrency.
type Scraper struct {
	client      *http.Client
	baseURL     string
	userAgent   string
	concurrency int
	logger      *slog.Logger

	// Ukrainian station name -> id, built from the network plus the
	// historical names still used on the weekend pages.
	nameToID map[string]string
}

// New builds a scraper against baseURL (empty means the live site).
func New(baseURL string, timeout time.Duration, userAgent string, stations map[string]*model.Station, logger *slog.Logger) *Scraper {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	nameToID := map[string]string{}
	for id, st := range stations {
		name := strings.ToLower(st.NameUA)
		nameToID[name] = id
		normalized := strings.Join(strings.Fields(strings.NewReplacer("'", "", "«", "", "»", "").Replace(name)), " ")
		nameToID[normalized] = id
	}
	// Former names that still appear in weekend page headings.
	nameToID["героїв праці"] = "saltivska"
	nameToID["пушкінська"] = "yaroslava_mudroho"
	nameToID["проспект гагаріна"] = "levada"
	nameToID["південний вокзал"] = "vokzalna"

	return &Scraper{
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		userAgent:   userAgent,
		concurrency: 10,
		logger:      logger,
		nameToID:    nameToID,
	}
}

type stationPage struct {
	id  string
	url string
}

// ScrapeAll fetches every line page for both day types and then every
// station page, returning the parsed schedules grouped by station id.
func (s *Scraper) ScrapeAll() (map[string][]*model.StationSchedule, error) {
	pages := []stationPage{}
	seen := map[string]bool{}

	for _, dayType := range []model.DayType{model.Weekday, model.Weekend} {
		for lineKey, linePath := range lineURLs[dayType] {
			stations, err := s.fetchLineStations(linePath)
			if err != nil {
				s.logger.Warn("fetching line page failed", "line", lineKey, "day_type", string(dayType), "error", err)
				continue
			}
			for _, p := range stations {
				key := string(dayType) + "|" + p.id
				if !seen[key] {
					seen[key] = true
					pages = append(pages, p)
				}
			}
			if lineKey == "oleksiivska" {
				for id, path := range line3StationURLs[dayType] {
					key := string(dayType) + "|" + id
					if !seen[key] {
						seen[key] = true
						pages = append(pages, stationPage{id: id, url: s.baseURL + "/" + path})
					}
				}
			}
		}
	}

	if len(pages) == 0 {
		return nil, errors.New("no station pages discovered")
	}

	type result struct {
		id        string
		schedules []*model.StationSchedule
	}

	sem := make(chan struct{}, s.concurrency)
	results := make(chan result, len(pages))
	var wg sync.WaitGroup

	for _, page := range pages {
		wg.Add(1)
		go func(p stationPage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			schedules, err := s.fetchStationSchedules(p.url, p.id)
			if err != nil {
				s.logger.Warn("fetching station page failed", "station", p.id, "error", err)
				return
			}
			results <- result{id: p.id, schedules: schedules}
		}(page)
	}
	wg.Wait()
	close(results)

	all := map[string][]*model.StationSchedule{}
	for r := range results {
		all[r.id] = append(all[r.id], r.schedules...)
	}
	return all, nil
}

func (s *Scraper) fetch(pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", pageURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", pageURL)
	}
	return doc, nil
}

func (s *Scraper) fetchLineStations(linePath string) ([]stationPage, error) {
	doc, err := s.fetch(s.baseURL + "/" + linePath)
	if err != nil {
		return nil, err
	}

	pages := []stationPage{}
	doc.Find("div.content-text a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "stantsiia-") {
			return
		}
		slug := extractSlug(href)
		id, ok := stationSlugs[slug]
		if !ok {
			return
		}
		pages = append(pages, stationPage{id: id, url: s.resolve(href)})
	})
	return pages, nil
}

func (s *Scraper) resolve(href string) string {
	base, err := url.Parse(s.baseURL + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func extractSlug(href string) string {
	decoded, err := url.QueryUnescape(href)
	if err != nil {
		decoded = href
	}
	m := slugRe.FindStringSubmatch(decoded)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

// fetchStationSchedules parses the departure tables of one station page.
// Each table is preceded by a heading naming the direction terminal in
// guillemets; tables without a resolvable direction are skipped.
func (s *Scraper) fetchStationSchedules(pageURL, stationID string) ([]*model.StationSchedule, error) {
	doc, err := s.fetch(pageURL)
	if err != nil {
		return nil, err
	}

	dayType := model.Weekday
	if strings.Contains(strings.ToLower(pageURL), "vykhidni") {
		dayType = model.Weekend
	}

	schedules := []*model.StationSchedule{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		direction := s.directionFor(table)
		if direction == "" {
			return
		}
		entries := parseScheduleTable(table)
		if len(entries) == 0 {
			return
		}
		schedules = append(schedules, &model.StationSchedule{
			StationID:   stationID,
			DirectionID: direction,
			DayType:     dayType,
			Entries:     entries,
		})
	})
	return schedules, nil
}

func (s *Scraper) directionFor(table *goquery.Selection) string {
	header := table.PrevAllFiltered("h3, h4, h5, strong, p").First()
	if header.Length() == 0 {
		return ""
	}
	m := headerRe.FindStringSubmatch(header.Text())
	if m == nil {
		return ""
	}
	return s.findStationID(m[1])
}

func (s *Scraper) findStationID(name string) string {
	needle := strings.ToLower(strings.TrimSpace(name))
	if id, ok := s.nameToID[needle]; ok {
		return id
	}
	normalized := strings.Join(strings.Fields(strings.NewReplacer("'", "", "«", "", "»", "").Replace(needle)), " ")
	if id, ok := s.nameToID[normalized]; ok {
		return id
	}
	for stationName, id := range s.nameToID {
		if strings.Contains(stationName, needle) || strings.Contains(needle, stationName) {
			return id
		}
	}
	return ""
}

// parseScheduleTable reads rows of the form: hour cell followed by minute
// cells. Minute cells may carry a * marking last trains.
func parseScheduleTable(table *goquery.Selection) []model.ScheduleEntry {
	entries := []model.ScheduleEntry{}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}

		hourText := strings.TrimSpace(cells.First().Text())
		m := hourRe.FindStringSubmatch(hourText)
		if m == nil {
			return
		}
		hour, err := strconv.Atoi(m[1])
		if err != nil || hour > 23 {
			return
		}

		cells.Slice(1, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
			text := strings.TrimSpace(cell.Text())
			if text == "" {
				return
			}
			mm := minuteRe.FindStringSubmatch(text)
			if mm == nil {
				return
			}
			minute, err := strconv.Atoi(mm[1])
			if err != nil || minute < 0 || minute >= 60 {
				return
			}
			entries = append(entries, model.ScheduleEntry{Hour: hour, Minute: minute})
		})
	})

	return dedupeSorted(entries)
}

func dedupeSorted(entries []model.ScheduleEntry) []model.ScheduleEntry {
	if len(entries) == 0 {
		return entries
	}
	out := make([]model.ScheduleEntry, 0, len(entries))
	seen := map[string]bool{}
	for _, e := range entries {
		key := fmt.Sprintf("%d:%d", e.Hour, e.Minute)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Compare(out[j-1]) < 0; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
