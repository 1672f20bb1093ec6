package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jask/tileswipe/internal/config"
	"github.com/jask/tileswipe/internal/imagery"
	"github.com/jask/tileswipe/internal/logging"
	"github.com/jask/tileswipe/internal/service"
	"github.com/jask/tileswipe/internal/session"
	"github.com/jask/tileswipe/internal/tilesvc"
	"github.com/jask/tileswipe/internal/tui"
)

var (
	cfg    config.Config
	logger *zap.Logger

	aoiPath       string
	zoom          int
	miniGrid      int
	category      string
	tilesEndpoint string
	tileURL       string
	serveAddr     string
	forceInit     bool
	resetState    bool
)

var rootCmd = &cobra.Command{
	Use:   "tileswipe",
	Short: "Page through map tiles and paint child-tile annotations",
	Long: `tileswipe splits an area of interest into mother tiles, shows each one
in the terminal with a grid of child tiles, and lets you mark children
with the mouse. Finishing writes a selection manifest and a GeoJSON file.

Run without a subcommand to annotate.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		applyFlags(cmd)
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runAnnotate,
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Start or resume an annotation session",
	RunE:  runAnnotate,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tile decomposition and GeoJSON API over HTTP",
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path()
		if _, err := os.Stat(path); err == nil && !forceInit {
			return fmt.Errorf("%s exists (use --force to overwrite)", path)
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&aoiPath, "aoi", "", "GeoJSON file with the area of interest")
	pf.IntVar(&zoom, "zoom", 0, "mother tile zoom level")
	pf.IntVar(&miniGrid, "mini-grid", 0, "extra zoom levels per mother tile (grid is 2^n)")
	pf.StringVar(&category, "category", "", "annotation category")
	pf.StringVar(&tilesEndpoint, "tiles-endpoint", "", "remote tile API base URL (empty decomposes locally)")
	pf.StringVar(&tileURL, "tile-url", "", "raster tile URL template with {z}, {x} and {y}")
	pf.BoolVar(&resetState, "reset", false, "discard the persisted selection, index and start time before annotating")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(annotateCmd, serveCmd, configCmd)
}

// applyFlags lets explicitly set flags win over file and env config.
func applyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("aoi") {
		cfg.Source.AOIPath = aoiPath
	}
	if f.Changed("zoom") {
		cfg.Source.Zoom = zoom
	}
	if f.Changed("mini-grid") {
		cfg.Source.MiniGrid = miniGrid
	}
	if f.Changed("category") {
		cfg.Source.Category = category
	}
	if f.Changed("tiles-endpoint") {
		cfg.Source.TilesEndpoint = tilesEndpoint
	}
	if f.Changed("tile-url") {
		cfg.Source.TileURL = tileURL
	}
	if f.Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	logger, err = logging.New(cfg.Log.Path, cfg.Log.Level)
	if err != nil {
		return err
	}

	req, err := buildRequest(cfg.Source)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if resetState {
		if err := session.Discard(ctx, store); err != nil {
			return err
		}
		logger.Info("discarded persisted session state")
	}

	now := time.Now
	tiles := tileBackend(cfg.Source, logger)
	images := imagery.NewFetcher(cfg.Source.TileURL, logger)
	defer images.Close()

	logger.Info("annotate",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("category", cfg.Source.Category),
		zap.Int("zoom", cfg.Source.Zoom),
		zap.Int("mini_grid", cfg.Source.MiniGrid))

	app := tui.New(ctx, tui.Deps{
		Store:    store,
		Provider: tiles,
		Images:   images,
		Exporter: &service.ExportService{
			Converter: tiles,
			Sink:      service.DirSink{Dir: cfg.Export.Dir},
			Log:       logger,
			Now:       now,
		},
		Log:         logger,
		SnapshotDir: cfg.Export.Dir,
		Now:         now,
	}, req, cfg.Source.Category)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// backend is both halves of the tile API.
type backend interface {
	tilesvc.Provider
	tilesvc.Converter
}

func tileBackend(src config.SourceConfig, log *zap.Logger) backend {
	if src.TilesEndpoint == "" {
		return tilesvc.Local{Log: log}
	}
	return tilesvc.NewClient(src.TilesEndpoint, log)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	logger, err = logging.New("", cfg.Log.Level)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           tilesvc.NewHandler(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
