package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/sire-dashboard/internal/adapter/geo"
	"github.com/couchcryptid/sire-dashboard/internal/domain"
)

// Map viewport shared by both views.
var MapCenter = orb.Point{-36.7246, -7.1212}

const MapZoom = 8

// Municipality fill colours.
const (
	ColorUnserved = "gray"
	ColorWithData = "blue"
	ColorNoData   = "red"
	ColorFiltered = "gray"
)

// RegionPalette colours regions by their position in the selection.
var RegionPalette = []string{"red", "green", "orange", "blue", "purple", "yellow"}

const (
	municipalityOpacity = 0.7
	regionOpacity       = 0.5
)

// Popup messages.
const (
	MsgUnserved = "Não atendida."
	MsgNoData   = "Sem dados disponíveis."
	MsgFiltered = "Sem dados disponíveis (fora do filtro)."
)

var (
	tabsTemplate = template.Must(template.New("tabs").Parse(
		`<h4>{{.Title}}</h4><div class="container-fluid" style="max-width: 800px;">` +
			`<ul class="nav nav-tabs" role="tablist">` +
			`{{range $i, $t := .Tabs}}<li class="nav-item" role="presentation">` +
			`<button class="nav-link{{if eq $i 0}} active{{end}}" id="{{$t.ID}}-tab" data-bs-toggle="tab" data-bs-target="#{{$t.ID}}" type="button" role="tab" aria-controls="{{$t.ID}}" aria-selected="{{eq $i 0}}">{{$t.Indicator}}</button>` +
			`</li>{{end}}</ul>` +
			`<div class="tab-content" style="max-height: 400px; overflow-y: auto;">` +
			`{{range $i, $t := .Tabs}}<div class="tab-pane fade{{if eq $i 0}} show active{{end}}" id="{{$t.ID}}" role="tabpanel" aria-labelledby="{{$t.ID}}-tab">` +
			`<div class="table-responsive"><table class="table table-hover custom-table">` +
			`<thead><tr><th>Ano</th><th>Mês</th><th>Valor</th></tr></thead><tbody>` +
			`{{range $t.Rows}}<tr><td>{{.Year}}</td><td>{{.Month}}</td><td>{{.Value}}</td></tr>{{end}}` +
			`</tbody></table></div></div>{{end}}</div></div>`))

	messageTemplate = template.Must(template.New("message").Parse(`<b>{{.Title}}</b><br>{{.Message}}`))
)

type popupTab struct {
	ID        string
	Indicator string
	Rows      []popupRow
}

type popupRow struct {
	Year, Month, Value string
}

// MunicipalityMap colours every boundary for the municipality view.
// Unserved municipalities are gray; selected ones are blue with a popup of
// their records per indicator, or red when they have none; everything else
// is gray as outside the filter.
func MunicipalityMap(bs geo.Boundaries, selected []string, records []domain.IndicatorRecord, unserved []string) (*geojson.FeatureCollection, error) {
	sel := make(map[string]struct{}, len(selected))
	for _, c := range selected {
		sel[c] = struct{}{}
	}
	notServed := make(map[string]struct{}, len(unserved))
	for _, c := range unserved {
		notServed[c] = struct{}{}
	}
	byCode := make(map[string][]popupEntry)
	for _, r := range records {
		byCode[r.IBGECode] = append(byCode[r.IBGECode], popupEntry{r.IndicatorCode, r.Year, r.Month, r.Value})
	}

	fc := newCollection()
	for _, b := range bs {
		name := strings.ToUpper(b.Name)
		_, isSelected := sel[b.Code]
		data := byCode[b.Code]

		var (
			fill  string
			popup string
			err   error
		)
		switch _, isUnserved := notServed[b.Code]; {
		case isUnserved:
			fill = ColorUnserved
			popup, err = messagePopup(name, MsgUnserved)
		case isSelected && len(data) > 0:
			fill = ColorWithData
			popup, err = tabsPopup(name, b.Code, data)
		case isSelected:
			fill = ColorNoData
			popup, err = messagePopup(name, MsgNoData)
		default:
			fill = ColorFiltered
			popup, err = messagePopup(name, MsgFiltered)
		}
		if err != nil {
			return nil, fmt.Errorf("popup %s: %w", b.Code, err)
		}

		f := newFeature(b, fill, municipalityOpacity, name, popup)
		fc.Append(f)
	}
	return fc, nil
}

// RegionMap colours the members of each selected region with the region's
// palette colour. Boundaries outside every selected region are omitted.
func RegionMap(bs geo.Boundaries, regions []domain.MicroRegion, selected []string, records []domain.AggregatedRecord) (*geojson.FeatureCollection, error) {
	var chosen []domain.MicroRegion
	for _, name := range selected {
		for _, r := range regions {
			if r.Name == name {
				chosen = append(chosen, r)
				break
			}
		}
	}
	colour := make(map[string]string, len(chosen))
	for i, r := range chosen {
		colour[r.Name] = RegionPalette[i%len(RegionPalette)]
	}
	byRegion := make(map[string][]popupEntry)
	for _, r := range records {
		byRegion[r.MicroRegion] = append(byRegion[r.MicroRegion], popupEntry{r.IndicatorCode, r.Year, r.Month, r.Value})
	}

	popups := make(map[string]string, len(chosen))
	for _, r := range chosen {
		var (
			popup string
			err   error
		)
		if data := byRegion[r.Name]; len(data) > 0 {
			popup, err = tabsPopup(r.Name, r.Name, data)
		} else {
			popup, err = messagePopup(r.Name, MsgNoData)
		}
		if err != nil {
			return nil, fmt.Errorf("popup %s: %w", r.Name, err)
		}
		popups[r.Name] = popup
	}

	fc := newCollection()
	for _, b := range bs {
		region, ok := domain.RegionOf(chosen, b.Code)
		if !ok {
			continue
		}
		f := newFeature(b, colour[region.Name], regionOpacity, b.Name+" ("+region.Name+")", popups[region.Name])
		f.Properties["region"] = region.Name
		fc.Append(f)
	}
	return fc, nil
}

func newCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"center":     map[string]float64{"lat": MapCenter.Lat(), "lon": MapCenter.Lon()},
		"zoom":       MapZoom,
		"fullscreen": true,
	}
	return fc
}

func newFeature(b geo.Boundary, fill string, opacity float64, tooltip, popup string) *geojson.Feature {
	f := geojson.NewFeature(b.Geometry)
	f.ID = b.Code
	f.Properties["id"] = b.Code
	f.Properties["name"] = b.Name
	f.Properties["fill_color"] = fill
	f.Properties["fill_opacity"] = opacity
	f.Properties["tooltip"] = tooltip
	f.Properties["popup_html"] = popup
	return f
}

type popupEntry struct {
	indicator, year, month string
	value                  float64
}

// tabsPopup renders one tab per indicator, in first-appearance order after
// sorting by year and month ordinal.
func tabsPopup(title, key string, entries []popupEntry) (string, error) {
	sorted := make([]popupEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.year != b.year {
			return yearLess(a.year, b.year)
		}
		return domain.MonthOrdinal(a.month) < domain.MonthOrdinal(b.month)
	})

	var tabs []*popupTab
	byIndicator := make(map[string]*popupTab)
	for _, e := range sorted {
		t, ok := byIndicator[e.indicator]
		if !ok {
			t = &popupTab{ID: tabID(key, e.indicator), Indicator: e.indicator}
			byIndicator[e.indicator] = t
			tabs = append(tabs, t)
		}
		t.Rows = append(t.Rows, popupRow{Year: e.year, Month: e.month, Value: formatValue(e.value)})
	}

	var buf bytes.Buffer
	if err := tabsTemplate.Execute(&buf, struct {
		Title string
		Tabs  []*popupTab
	}{title, tabs}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func messagePopup(title, message string) (string, error) {
	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, struct{ Title, Message string }{title, message}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func tabID(key, indicator string) string {
	id := "tab-" + key + "-" + indicator
	return strings.Map(func(r rune) rune {
		if r == ' ' {
			return '-'
		}
		return r
	}, id)
}

func yearLess(a, b string) bool {
	na, aok := domain.YearNumber(a)
	nb, bok := domain.YearNumber(b)
	if aok && bok {
		return na < nb
	}
	return a < b
}
