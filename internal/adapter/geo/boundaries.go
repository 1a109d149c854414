// Package geo loads municipality boundary polygons.
package geo

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Boundary is one municipality polygon keyed by IBGE code.
type Boundary struct {
	Code     string
	Name     string
	Geometry orb.Geometry
}

// Boundaries is the parsed boundary set in file order.
type Boundaries []Boundary

// Lookup returns the boundary with the given code.
func (bs Boundaries) Lookup(code string) (Boundary, bool) {
	for _, b := range bs {
		if b.Code == code {
			return b, true
		}
	}
	return Boundary{}, false
}

var gzipMagic = []byte{0x1f, 0x8b}

// Parse decodes a GeoJSON FeatureCollection, gunzipping it first when the
// bytes carry the gzip magic number. The IBGE code is read from the "id"
// property, falling back to the feature id; features without one are skipped.
func Parse(data []byte) (Boundaries, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		raw, err := gunzip(data)
		if err != nil {
			return nil, err
		}
		data = raw
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode boundaries: %w", err)
	}

	out := make(Boundaries, 0, len(fc.Features))
	for _, f := range fc.Features {
		code := featureCode(f)
		if code == "" || f.Geometry == nil {
			continue
		}
		out = append(out, Boundary{
			Code:     code,
			Name:     f.Properties.MustString("name", ""),
			Geometry: f.Geometry,
		})
	}
	return out, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open gzip boundaries: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip boundaries: %w", err)
	}
	return raw, nil
}

func featureCode(f *geojson.Feature) string {
	if v, ok := f.Properties["id"]; ok {
		if s := idString(v); s != "" {
			return s
		}
	}
	return idString(f.ID)
}

// idString renders string or numeric ids; numeric ids from JSON arrive as
// float64.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	default:
		return ""
	}
}
