package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/jask/tileswipe/internal/session"
	"github.com/jask/tileswipe/internal/tile"
	"github.com/jask/tileswipe/internal/tilesvc"
)

// ErrGeometryConversion is recorded on ExportResult when the GeoJSON
// artifact could not be produced. The manifest is kept.
var ErrGeometryConversion = errors.New("geometry conversion failed")

const (
	ContentTypeJSON    = "application/json"
	ContentTypeGeoJSON = "application/geo+json"
)

// ExportService turns a session's selection into the manifest and GeoJSON
// artifacts and then resets the session.
type ExportService struct {
	Converter tilesvc.Converter
	Sink      Sink
	Log       *zap.Logger
	Now       func() time.Time
}

// Manifest is the flat selection document.
type Manifest struct {
	Category      string          `json:"category"`
	SelectedTiles []tile.Child    `json:"selected_tiles"`
	TotalTiles    int             `json:"total_tiles"`
	Config        json.RawMessage `json:"config"`
}

type ExportResult struct {
	Manifest    Delivered
	GeoJSON     *Delivered
	Selected    int
	Total       int
	GeometryErr error
	ResetErr    error
}

// Export delivers the manifest, then the GeoJSON, then resets the session.
// A geometry failure is logged and returned on the result only. A failed
// manifest delivery returns an error and leaves the session untouched so
// nothing is lost.
func (s *ExportService) Export(ctx context.Context, sess *session.Session) (ExportResult, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	selected := sess.Selection.Entries()
	res := ExportResult{Selected: len(selected), Total: len(sess.Mothers)}
	stamp := now().UnixMilli()
	base := fmt.Sprintf("tileswipe_%s_%d", FileSafe(sess.Category), stamp)

	manifest, err := BuildManifest(sess.Category, selected, len(sess.Mothers), sess.Config)
	if err != nil {
		return res, err
	}
	res.Manifest, err = s.Sink.Deliver(ctx, Artifact{Name: base + ".json", ContentType: ContentTypeJSON, Data: manifest})
	if err != nil {
		return res, fmt.Errorf("deliver manifest: %w", err)
	}
	log.Info("manifest exported",
		zap.String("session", sess.ID),
		zap.String("location", res.Manifest.Location),
		zap.Int("selected", res.Selected),
		zap.Int("total", res.Total))

	if doc, err := s.geometry(ctx, selected, sess.Category); err != nil {
		res.GeometryErr = err
		log.Warn("geojson export skipped", zap.String("session", sess.ID), zap.Error(err))
	} else if d, err := s.Sink.Deliver(ctx, Artifact{Name: base + ".geojson", ContentType: ContentTypeGeoJSON, Data: doc}); err != nil {
		res.GeometryErr = fmt.Errorf("%w: deliver: %w", ErrGeometryConversion, err)
		log.Warn("geojson delivery failed", zap.String("session", sess.ID), zap.Error(err))
	} else {
		res.GeoJSON = &d
	}

	if err := sess.Reset(ctx); err != nil {
		res.ResetErr = err
		log.Error("reset session after export", zap.String("session", sess.ID), zap.Error(err))
	}
	return res, nil
}

func (s *ExportService) geometry(ctx context.Context, selected []tile.Child, category string) ([]byte, error) {
	if s.Converter == nil {
		return nil, fmt.Errorf("%w: no converter", ErrGeometryConversion)
	}
	raw, err := s.Converter.GeoJSON(ctx, selected, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeometryConversion, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("%w: response is not json: %w", ErrGeometryConversion, err)
	}
	return buf.Bytes(), nil
}

// BuildManifest renders the manifest with two-space indentation. A missing
// config is written as an empty object.
func BuildManifest(category string, selected []tile.Child, total int, config json.RawMessage) ([]byte, error) {
	if selected == nil {
		selected = []tile.Child{}
	}
	if len(bytes.TrimSpace(config)) == 0 {
		config = json.RawMessage(`{}`)
	}
	data, err := json.MarshalIndent(Manifest{
		Category:      category,
		SelectedTiles: selected,
		TotalTiles:    total,
		Config:        config,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileSafe maps a category onto a file-name fragment.
func FileSafe(category string) string {
	s := unsafeChars.ReplaceAllString(category, "_")
	if s == "" || s == "_" {
		return "export"
	}
	return s
}
