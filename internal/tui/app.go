// Package tui is the annotation front end: a bubbletea program that pages
// through mother tiles and paints child selections with the mouse.
package tui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jask/tileswipe/internal/kv"
	"github.com/jask/tileswipe/internal/render"
	"github.com/jask/tileswipe/internal/service"
	"github.com/jask/tileswipe/internal/session"
	"github.com/jask/tileswipe/internal/tile"
	"github.com/jask/tileswipe/internal/tilesvc"
)

// Images loads the base raster for a mother tile.
type Images interface {
	Fetch(ctx context.Context, id tile.ID) (image.Image, error)
}

// Exporter writes the session's artifacts and resets it.
type Exporter interface {
	Export(ctx context.Context, s *session.Session) (service.ExportResult, error)
}

type Deps struct {
	Store       kv.Store
	Provider    tilesvc.Provider
	Images      Images
	Exporter    Exporter
	Engine      *render.Engine
	Log         *zap.Logger
	SnapshotDir string
	Now         func() time.Time
}

type appState string

const (
	stateLoading   appState = "loading"
	stateFailed    appState = "failed"
	stateAnnotate  appState = "annotate"
	stateExporting appState = "exporting"
	stateDone      appState = "done"
)

// Rows reserved around the canvas: title and info above, notice and help
// below.
const (
	headerRows = 2
	footerRows = 2
)

// App ties the session to the terminal.
type App struct {
	ctx  context.Context
	deps Deps
	req  tilesvc.Request
	cat  string
	keys keyMap

	state appState
	sess  *session.Session

	// current base image; baseFor says which tile it belongs to
	base    image.Image
	baseErr error
	baseFor tile.ID
	hasBase bool
	gen     int

	frame  *image.RGBA
	canvas string
	cols   int
	rows   int

	width, height int
	notice        string
	noticeErr     bool
	lastExport    *service.ExportResult
}

func New(ctx context.Context, deps Deps, req tilesvc.Request, category string) *App {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Engine == nil {
		deps.Engine = render.NewEngine()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &App{
		ctx:    ctx,
		deps:   deps,
		req:    req,
		cat:    category,
		keys:   newKeyMap(),
		state:  stateLoading,
		width:  80,
		height: 24,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadSessionCmd(), tickCmd())
}

type sessionMsg struct{ sess *session.Session }

type imageMsg struct {
	id  tile.ID
	gen int
	img image.Image
	err error
}

type tickMsg time.Time

type exportDoneMsg struct {
	res service.ExportResult
	err error
}

type noticeMsg string

type errMsg struct{ error }

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) loadSessionCmd() tea.Cmd {
	return func() tea.Msg {
		resp, err := session.Load(a.ctx, a.deps.Provider, a.req)
		if err != nil {
			return errMsg{err}
		}
		s, err := session.Open(a.ctx, a.deps.Store, a.cat, resp, a.deps.Now)
		if err != nil {
			return errMsg{fmt.Errorf("%w: %w", session.ErrConfigLoad, err)}
		}
		return sessionMsg{s}
	}
}

// loadImageCmd starts a load tagged with the tile and a fresh generation.
// Results carrying an older tag are dropped in Update.
func (a *App) loadImageCmd() tea.Cmd {
	if a.sess == nil || a.deps.Images == nil {
		return nil
	}
	a.gen++
	id, gen := a.sess.Current().ID, a.gen
	images := a.deps.Images
	ctx := a.ctx
	return func() tea.Msg {
		img, err := images.Fetch(ctx, id)
		return imageMsg{id: id, gen: gen, img: img, err: err}
	}
}

func (a *App) exportCmd() tea.Cmd {
	s, exp := a.sess, a.deps.Exporter
	ctx := a.ctx
	return func() tea.Msg {
		res, err := exp.Export(ctx, s)
		return exportDoneMsg{res: res, err: err}
	}
}

func (a *App) snapshotCmd() tea.Cmd {
	frame := a.frame
	if frame == nil {
		return nil
	}
	name := fmt.Sprintf("tileswipe_%s_%d.png", a.sess.Current().ID.Key(), a.deps.Now().UnixMilli())
	path := filepath.Join(a.deps.SnapshotDir, name)
	return func() tea.Msg {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errMsg{err}
		}
		f, err := os.Create(path)
		if err != nil {
			return errMsg{err}
		}
		if err := render.EncodePNG(f, frame); err != nil {
			_ = f.Close()
			return errMsg{err}
		}
		if err := f.Close(); err != nil {
			return errMsg{err}
		}
		return noticeMsg("snapshot saved to " + path)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.redraw()
	case tea.KeyMsg:
		return a.handleKey(m)
	case tea.MouseMsg:
		return a.handleMouse(m)
	case tickMsg:
		return a, tickCmd()
	case sessionMsg:
		a.sess = m.sess
		a.state = stateAnnotate
		a.hasBase = false
		a.frame, a.canvas = nil, ""
		a.deps.Log.Info("session started",
			zap.String("session", m.sess.ID),
			zap.Int("mother_tiles", len(m.sess.Mothers)),
			zap.Int("selected", m.sess.Selection.Len()),
			zap.Int("index", m.sess.Nav.Index()))
		a.setNotice("", false)
		a.compose()
		return a, a.loadImageCmd()
	case imageMsg:
		if a.state != stateAnnotate {
			a.deps.Log.Debug("image load outside annotation dropped", zap.String("tile", m.id.Key()))
			return a, nil
		}
		if a.sess == nil || m.gen != a.gen || m.id != a.sess.Current().ID {
			a.deps.Log.Debug("stale image load discarded", zap.String("tile", m.id.Key()), zap.Int("gen", m.gen))
			return a, nil
		}
		a.base, a.baseErr, a.baseFor, a.hasBase = m.img, m.err, m.id, true
		if m.err != nil {
			a.deps.Log.Debug("placeholder for tile", zap.String("tile", m.id.Key()), zap.Error(m.err))
		}
		a.compose()
	case exportDoneMsg:
		if m.err != nil {
			a.state = stateAnnotate
			a.setNotice("export failed: "+m.err.Error(), true)
			return a, nil
		}
		a.state = stateDone
		a.lastExport = &m.res
		a.setNotice(exportSummary(m.res), m.res.GeometryErr != nil)
	case noticeMsg:
		a.setNotice(string(m), false)
	case errMsg:
		if errors.Is(m.error, session.ErrConfigLoad) {
			a.state = stateFailed
		}
		a.deps.Log.Error("tui error", zap.Error(m.error))
		a.setNotice("error: "+m.Error(), true)
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case a.state == stateExporting:
		return a, nil
	case key.Matches(m, a.keys.Restart) && (a.state == stateDone || a.state == stateFailed):
		a.state = stateLoading
		a.sess = nil
		a.setNotice("", false)
		return a, a.loadSessionCmd()
	case a.state != stateAnnotate:
		return a, nil
	case key.Matches(m, a.keys.Prev):
		return a, a.step(a.sess.Retreat)
	case key.Matches(m, a.keys.Next):
		return a, a.step(a.sess.Advance)
	case key.Matches(m, a.keys.Finish):
		if a.deps.Exporter == nil {
			a.setNotice("export is not configured", true)
			return a, nil
		}
		a.state = stateExporting
		a.sess.PointerUp()
		a.setNotice("exporting...", false)
		return a, a.exportCmd()
	case key.Matches(m, a.keys.Snapshot):
		return a, a.snapshotCmd()
	}
	return a, nil
}

// step navigates and, when the index moved, issues a load for the new tile.
// The previous frame stays on screen until that load resolves.
func (a *App) step(move func(context.Context) (bool, error)) tea.Cmd {
	moved, err := move(a.ctx)
	if err != nil {
		a.setNotice("error: "+err.Error(), true)
		return nil
	}
	if !moved {
		return nil
	}
	return a.loadImageCmd()
}

func (a *App) handleMouse(m tea.MouseMsg) (tea.Model, tea.Cmd) {
	if a.state != stateAnnotate || a.sess == nil {
		return a, nil
	}
	px, py, inside := a.canvasPoint(m.X, m.Y)
	w, h := float64(a.cols), float64(a.rows*2)
	var (
		changed bool
		err     error
	)
	switch m.Action {
	case tea.MouseActionPress:
		if m.Button != tea.MouseButtonLeft || !inside {
			return a, nil
		}
		changed, err = a.sess.PointerDown(a.ctx, px, py, w, h)
	case tea.MouseActionMotion:
		if !a.sess.Dragging() {
			return a, nil
		}
		if !inside {
			a.sess.PointerUp()
			return a, nil
		}
		changed, err = a.sess.PointerMove(a.ctx, px, py, w, h)
	case tea.MouseActionRelease:
		a.sess.PointerUp()
	}
	if err != nil {
		a.setNotice("error: "+err.Error(), true)
		return a, nil
	}
	if changed {
		a.compose()
	}
	return a, nil
}

// canvasPoint maps a terminal cell to the centre of its pixel pair on the
// cols x 2*rows canvas.
func (a *App) canvasPoint(x, y int) (float64, float64, bool) {
	cx, cy := x, y-headerRows
	if a.cols == 0 || cx < 0 || cy < 0 || cx >= a.cols || cy >= a.rows {
		return 0, 0, false
	}
	return float64(cx) + 0.5, float64(cy*2) + 1, true
}

// compose redraws the frame for the current tile. Until the tile's own image
// resolves the previous frame is kept.
func (a *App) compose() {
	if a.sess == nil || !a.hasBase || a.baseFor != a.sess.Current().ID {
		return
	}
	a.frame = a.deps.Engine.Frame(a.sess.Current(), a.base, a.baseErr, a.sess.Selection)
	a.redraw()
}

func (a *App) redraw() {
	if a.frame == nil {
		// a nil *image.RGBA must not reach canvasSize as a non-nil interface
		a.cols, a.rows = canvasSize(a.width, a.height-headerRows-footerRows, nil)
		a.canvas = ""
		return
	}
	a.cols, a.rows = canvasSize(a.width, a.height-headerRows-footerRows, a.frame)
	a.canvas = render.Terminal(a.frame, a.cols, a.rows)
}

// canvasSize fits the frame into the available cells, two pixels per cell
// vertically.
func canvasSize(width, height int, frame image.Image) (int, int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	fw, fh := render.PlaceholderSize, render.PlaceholderSize
	if frame != nil && !frame.Bounds().Empty() {
		fw, fh = frame.Bounds().Dx(), frame.Bounds().Dy()
	}
	cols := width
	rows := cols * fh / fw / 2
	if rows > height {
		rows = height
		cols = rows * 2 * fw / fh
	}
	if cols < 1 || rows < 1 {
		return 0, 0
	}
	return cols, rows
}

func (a *App) setNotice(s string, isErr bool) {
	a.notice, a.noticeErr = s, isErr
}

func exportSummary(res service.ExportResult) string {
	s := fmt.Sprintf("exported %d of %d tiles to %s", res.Selected, res.Total, res.Manifest.Location)
	if res.GeometryErr != nil {
		s += " (geojson skipped: " + res.GeometryErr.Error() + ")"
	}
	if res.ResetErr != nil {
		s += " (reset failed: " + res.ResetErr.Error() + ")"
	}
	return s + " - press n for a new session"
}
