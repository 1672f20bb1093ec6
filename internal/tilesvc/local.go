package tilesvc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"go.uber.org/zap"

	"github.com/jask/tileswipe/internal/tile"
)

const (
	maxZoom     = 24
	maxMiniGrid = 8
	maxLat      = 85.0511287798066
	// nudges east/south edges inward so a bbox ending exactly on a tile
	// boundary does not pull in the neighbouring row or column
	edgeEpsilon = 1e-11
)

// Local decomposes and converts tiles in-process with orb's web-mercator
// tile math.
type Local struct {
	Log *zap.Logger
}

func (l Local) logger() *zap.Logger {
	if l.Log == nil {
		return zap.NewNop()
	}
	return l.Log
}

func (l Local) LoadTiles(_ context.Context, req Request) (Response, error) {
	w, err := decompose(req)
	if err != nil {
		return Response{}, err
	}
	return w.decode(l.logger()), nil
}

func (l Local) GeoJSON(_ context.Context, tiles []tile.Child, category string) (json.RawMessage, error) {
	return featureCollection(tiles, category)
}

func decompose(req Request) (wireResponse, error) {
	if req.Zoom < 0 || req.Zoom > maxZoom {
		return wireResponse{}, fmt.Errorf("zoom %d outside 0..%d: %w", req.Zoom, maxZoom, ErrInvalidRequest)
	}
	if req.MiniGrid < 0 || req.MiniGrid > maxMiniGrid {
		return wireResponse{}, fmt.Errorf("mini grid %d outside 0..%d: %w", req.MiniGrid, maxMiniGrid, ErrInvalidRequest)
	}
	bound, err := aoiBound(req.AOI)
	if err != nil {
		return wireResponse{}, err
	}

	z := maptile.Zoom(req.Zoom)
	childZoom := req.Zoom + req.MiniGrid
	west, east := clampLon(bound.Min[0]), clampLon(bound.Max[0])
	south, north := clampLat(bound.Min[1]), clampLat(bound.Max[1])
	ul := maptile.At(orb.Point{west, north}, z)
	lr := maptile.At(orb.Point{math.Max(west, east-edgeEpsilon), math.Min(north, south+edgeEpsilon)}, z)
	last := uint32(1)<<uint32(z) - 1
	minX, maxX := min(ul.X, last), min(lr.X, last)
	minY, maxY := min(ul.Y, last), min(lr.Y, last)

	var mothers []wireMother
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			mothers = append(mothers, motherAt(maptile.New(x, y, z), req.MiniGrid))
		}
	}
	sort.Slice(mothers, func(i, j int) bool {
		if mothers[i].X != mothers[j].X {
			return mothers[i].X < mothers[j].X
		}
		return mothers[i].Y < mothers[j].Y
	})

	cfg, err := json.Marshal(map[string]int{
		"zoom":       req.Zoom,
		"mini_grid":  req.MiniGrid,
		"child_zoom": childZoom,
	})
	if err != nil {
		return wireResponse{}, err
	}
	return wireResponse{MotherTiles: mothers, Config: cfg}, nil
}

func motherAt(t maptile.Tile, miniGrid int) wireMother {
	n := uint32(1) << uint32(miniGrid)
	cz := t.Z + maptile.Zoom(miniGrid)
	x0, y0 := t.X<<uint32(miniGrid), t.Y<<uint32(miniGrid)
	children := make([]tile.Child, 0, n*n)
	for r := uint32(0); r < n; r++ {
		for c := uint32(0); c < n; c++ {
			ct := maptile.New(x0+c, y0+r, cz)
			children = append(children, tile.Child{
				X: int(ct.X), Y: int(ct.Y), Z: int(ct.Z),
				Bounds: boundsOf(ct),
			})
		}
	}
	return wireMother{X: int(t.X), Y: int(t.Y), Z: int(t.Z), Bounds: boundsOf(t), Children: children}
}

// boundsOf is [west, south, east, north].
func boundsOf(t maptile.Tile) []float64 {
	b := t.Bound()
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// aoiBound accepts a FeatureCollection (first feature), a Feature or a bare
// geometry, either as a JSON object or as a JSON string holding one.
func aoiBound(raw json.RawMessage) (orb.Bound, error) {
	if len(raw) == 0 {
		return orb.Bound{}, fmt.Errorf("empty aoi: %w", ErrInvalidAOI)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return orb.Bound{}, fmt.Errorf("%v: %w", err, ErrInvalidAOI)
		}
		raw = json.RawMessage(s)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return orb.Bound{}, fmt.Errorf("%v: %w", err, ErrInvalidAOI)
	}

	var g orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%v: %w", err, ErrInvalidAOI)
		}
		if len(fc.Features) == 0 {
			return orb.Bound{}, fmt.Errorf("feature collection has no features: %w", ErrInvalidAOI)
		}
		g = fc.Features[0].Geometry
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%v: %w", err, ErrInvalidAOI)
		}
		g = f.Geometry
	case "Polygon", "MultiPolygon":
		gg, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("%v: %w", err, ErrInvalidAOI)
		}
		g = gg.Geometry()
	default:
		return orb.Bound{}, fmt.Errorf("unsupported type %q: %w", head.Type, ErrInvalidAOI)
	}
	if g == nil {
		return orb.Bound{}, fmt.Errorf("missing geometry: %w", ErrInvalidAOI)
	}
	b := g.Bound()
	if b.IsEmpty() {
		return orb.Bound{}, fmt.Errorf("empty geometry: %w", ErrInvalidAOI)
	}
	return b, nil
}

func featureCollection(tiles []tile.Child, category string) (json.RawMessage, error) {
	fc := geojson.NewFeatureCollection()
	for _, t := range tiles {
		if t.X < 0 || t.Y < 0 || t.Z < 0 || t.Z > maxZoom+maxMiniGrid {
			return nil, fmt.Errorf("tile %s out of range", t.ID())
		}
		mt := maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Z))
		f := geojson.NewFeature(mt.Bound().ToPolygon())
		f.Properties["category"] = category
		f.Properties["tile_x"] = t.X
		f.Properties["tile_y"] = t.Y
		f.Properties["tile_z"] = t.Z
		fc.Append(f)
	}
	return json.Marshal(fc)
}

func clampLat(v float64) float64 { return math.Max(-maxLat, math.Min(maxLat, v)) }

func clampLon(v float64) float64 { return math.Max(-180, math.Min(180, v)) }
