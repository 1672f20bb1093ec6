// Package tilesvc covers the two services an annotation session consumes:
// decomposing an area of interest into mother/child tiles, and converting
// selected tiles into GeoJSON. Local computes both in-process, Client calls a
// remote service, and NewHandler serves Local over HTTP.
package tilesvc

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/jask/tileswipe/internal/tile"
)

var (
	// ErrInvalidAOI marks area-of-interest input that is not a usable
	// GeoJSON polygon, feature or feature collection.
	ErrInvalidAOI = errors.New("invalid area of interest")
	// ErrInvalidRequest marks out-of-range zoom or grid parameters.
	ErrInvalidRequest = errors.New("invalid tile request")
)

// Request asks for the tiles covering AOI at Zoom, each split into
// 2^MiniGrid x 2^MiniGrid children.
type Request struct {
	AOI      json.RawMessage `json:"aoi"`
	Zoom     int             `json:"zoom"`
	MiniGrid int             `json:"mini_grid"`
}

// Response carries decoded mother tiles and the opaque config echoed at export.
type Response struct {
	Mothers []tile.Mother
	Config  json.RawMessage
}

// GeometryRequest is the body of a geometry conversion call.
type GeometryRequest struct {
	TileIDs  []tile.Child `json:"tile_ids"`
	Category string       `json:"category"`
}

// Provider decomposes an area of interest.
type Provider interface {
	LoadTiles(ctx context.Context, req Request) (Response, error)
}

// Converter turns tiles into a GeoJSON document.
type Converter interface {
	GeoJSON(ctx context.Context, tiles []tile.Child, category string) (json.RawMessage, error)
}

type wireMother struct {
	X        int          `json:"x"`
	Y        int          `json:"y"`
	Z        int          `json:"z"`
	Bounds   []float64    `json:"bounds,omitempty"`
	Children []tile.Child `json:"children"`
}

type wireResponse struct {
	MotherTiles []wireMother    `json:"mother_tiles"`
	Config      json.RawMessage `json:"config"`
}

// decode builds validated mother tiles from the wire shape. Children are put
// into row-major order first. A mother whose children still cannot form a
// grid is kept with Err set so the session can skip its overlay.
func (w wireResponse) decode(log *zap.Logger) Response {
	out := Response{Config: w.Config, Mothers: make([]tile.Mother, 0, len(w.MotherTiles))}
	for _, wm := range w.MotherTiles {
		id := tile.ID{Z: wm.Z, X: wm.X, Y: wm.Y}
		children := append([]tile.Child(nil), wm.Children...)
		tile.SortRowMajor(children)
		m, err := tile.NewMotherTile(id, wm.Bounds, children)
		if err != nil {
			log.Warn("mother tile grid rejected", zap.String("tile", id.Key()), zap.Int("children", len(children)), zap.Error(err))
			m = tile.Mother{ID: id, Bounds: wm.Bounds, Children: children, Err: err}
		}
		out.Mothers = append(out.Mothers, m)
	}
	return out
}
