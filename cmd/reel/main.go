package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/config"
	"github.com/mmcdole/reel/internal/hls"
	"github.com/mmcdole/reel/internal/imagecache"
	"github.com/mmcdole/reel/internal/loader"
	"github.com/mmcdole/reel/internal/log"
	"github.com/mmcdole/reel/internal/mpv"
	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/service"
	"github.com/mmcdole/reel/internal/store"
	"github.com/mmcdole/reel/internal/tui"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// Version is set at build time via -ldflags
var Version = "dev"

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                        \r"

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func main() {
	var showVersion, forget bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&forget, "clear-cache", false, "delete the local catalog cache and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("reel %s\n", Version)
		return
	}
	if forget {
		if err := config.ClearCache(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Cache cleared")
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting reel", "version", Version)

	if !cfg.IsConfigured() {
		return runSetupFlow(cfg)
	}

	if !styles.UseTheme(cfg.UI.Theme) && cfg.UI.Theme != "default" {
		logger.Warn("unknown theme, using default", "theme", cfg.UI.Theme)
	}

	if cfg.Metrics.Listen != "" {
		serveMetrics(cfg.Metrics.Listen, logger)
	}

	filmStore, err := store.NewFilmStore(config.GetCachePath(), cfg.Catalog.URL)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer filmStore.Close()
	session := filmStore.Session()

	covers := imagecache.New(imagecache.NewHTTPFetcher(nil), imagecache.Options{
		MaxEntries:   cfg.Cache.MaxEntries,
		MaxAge:       cfg.Cache.MaxAge,
		Stagger:      cfg.Cache.Stagger,
		Concurrency:  cfg.Cache.Concurrency,
		MaxDimension: cfg.Cache.MaxDimension,
		Logger:       logger,
	})
	defer covers.Close()

	config.Watch(logger, func(next *config.Config) {
		covers.SetLimits(next.Cache.MaxEntries, next.Cache.MaxAge)
	})

	progress := loader.New(logger)
	defer progress.Close()

	client := catalog.NewClient(cfg.Catalog.URL, logger)
	librarySvc := service.NewLibraryService(client, filmStore, service.LibraryOptions{
		TTL:    cfg.Catalog.CacheTTL,
		Loader: progress,
		Covers: covers,
		Logger: logger,
	})

	engine := hls.NewEngine(hls.Options{
		MaxBandwidth: cfg.Player.MaxBandwidth,
		Logger:       logger,
	})
	playbackSvc := service.NewPlaybackService(filmStore, service.PlaybackOptions{
		Engine:          engine,
		Volume:          cfg.Player.Volume,
		Viewport:        player.Viewport{Width: terminalWidth(), NarrowWidth: cfg.UI.NarrowWidth},
		ResumeThreshold: cfg.Player.ResumeThreshold,
		Logger:          logger,
	})
	searchSvc := service.NewSearchService(logger)
	sessionSvc := service.NewSessionService(filmStore, session, logger)

	mpvPlayer := mpv.NewPlayer(
		mpv.LaunchOptions{
			Command:   cfg.Player.Command,
			Args:      cfg.Player.Args,
			SocketDir: cfg.Player.SocketDir,
			Logger:    logger,
		},
		mpv.SurfaceOptions{Logger: logger},
	)
	defer mpvPlayer.Close()

	model := tui.NewModel(tui.Deps{
		Library:     librarySvc,
		Playback:    playbackSvc,
		Search:      searchSvc,
		Forget:      sessionSvc.Forget,
		Covers:      covers,
		Loader:      progress,
		Player:      mpvPlayer,
		Session:     session,
		WaveCount:   cfg.UI.WaveCount,
		NarrowWidth: cfg.UI.NarrowWidth,
		Logger:      logger,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)

	logger.Info("starting TUI")

	final, err := p.Run()
	if m, ok := final.(tui.Model); ok {
		m.Close()
	}
	if err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down", "covers", covers.Stats().Size)
	return nil
}

// serveMetrics exposes the prometheus registry in the background
func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
}

// terminalWidth returns the width of stdout, 0 if it is not a terminal
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// runSetupFlow asks for the catalog URL when none is configured
func runSetupFlow(cfg *config.Config) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("no catalog configured: set REEL_CATALOG_URL or catalog.url in config.yaml")
	}

	fmt.Println()
	fmt.Println("Welcome to reel!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	var catalogURL string
	var count int
	for {
		fmt.Print("Enter the catalog URL (e.g., https://films.example.com/api): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		catalogURL = strings.TrimRight(strings.TrimSpace(input), "/")

		if catalogURL == "" {
			fmt.Println("Catalog URL cannot be empty. Please try again.")
			continue
		}

		fmt.Println()
		count, err = checkCatalogWithSpinner(catalogURL)
		if err != nil {
			fmt.Printf("\n✗ Could not reach the catalog: %v\n", err)
			fmt.Println("Please check the URL and try again.")
			fmt.Println()
			continue
		}
		break
	}

	cfg.Catalog.URL = catalogURL
	if err := config.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("✓ Configuration saved! The catalog has %d films.\n", count)
	fmt.Println()
	fmt.Println("Run reel again to start the application.")
	return nil
}

// checkCatalogWithSpinner fetches the film list once with a visual spinner
func checkCatalogWithSpinner(catalogURL string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	type result struct {
		count int
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		films, err := catalog.NewClient(catalogURL, log.NullLogger()).GetFilms(ctx)
		resultCh <- result{len(films), err}
	}()

	frame := 0
	fmt.Printf("\r%s Checking catalog...", spinnerFrames[frame])

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Print(clearSpinnerLine)
			if res.err != nil {
				return 0, res.err
			}
			fmt.Printf("✓ Found %d films\n", res.count)
			return res.count, nil

		case <-ticker.C:
			frame++
			fmt.Printf("\r%s Checking catalog...", spinnerFrames[frame%len(spinnerFrames)])

		case <-ctx.Done():
			fmt.Print(clearSpinnerLine)
			return 0, fmt.Errorf("catalog check timed out")
		}
	}
}
