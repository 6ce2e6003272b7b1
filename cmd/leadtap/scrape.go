package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rendis/leadtap/internal/browser"
	"github.com/rendis/leadtap/internal/engine/dom"
	"github.com/rendis/leadtap/internal/engine/dom/htmlpage"
	"github.com/rendis/leadtap/internal/engine/dom/rodpage"
	"github.com/rendis/leadtap/internal/engine/fetch"
	"github.com/rendis/leadtap/internal/engine/session"
	"github.com/rendis/leadtap/internal/engine/storage"
	"github.com/rendis/leadtap/internal/model"
	"github.com/rendis/leadtap/internal/tui"
)

type scrapeFlags struct {
	dbPath     string
	tab        string
	controlURL string
	proxyURL   string
	headless   bool
	static     bool
	useTUI     bool
	debug      bool
	logDir     string
	profile    string
	maxResults int
	delayMs    int
}

func newScrapeCmd() *cobra.Command {
	var f scrapeFlags

	cmd := &cobra.Command{
		Use:   "scrape [TAB-MATCH-OR-URL]",
		Short: "Scrape the listings shown in a browser tab",
		Long: `scrape attaches to a browser (LEADTAP_CONTROL_URL or --control-url) or launches
one, selects the first tab whose URL contains the argument and extracts its
listings. An absolute URL with no matching tab is opened in a new tab.

Options not given on the command line come from the saved settings, and the
effective options are saved back for the next run.`,
		Example: `  # Google Maps search already open in a Chrome started with --remote-debugging-port
  leadtap scrape --control-url ws://127.0.0.1:9222/devtools/browser/... google.com/maps

  # Directory page fetched without a browser
  leadtap scrape --static --profile generic-listing https://directory.example/plumbers`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.tab = args[0]
			}
			return runScrape(cmd, f)
		},
	}

	fl := cmd.Flags()
	addDBFlag(cmd, &f.dbPath)
	fl.StringVar(&f.controlURL, "control-url", os.Getenv("LEADTAP_CONTROL_URL"), "DevTools websocket of a running browser, defaults to LEADTAP_CONTROL_URL env var")
	fl.StringVarP(&f.proxyURL, "proxy", "p", os.Getenv("LEADTAP_PROXY"), "Proxy URL for launched browsers and static fetches, defaults to LEADTAP_PROXY env var")
	fl.BoolVar(&f.headless, "headless", false, "Launch the browser without a window")
	fl.BoolVar(&f.static, "static", false, "Fetch the page over HTTP instead of using a browser (generic-listing only)")
	fl.BoolVar(&f.useTUI, "tui", false, "Show an interactive progress view")
	fl.BoolVar(&f.debug, "debug", false, "Write debug lines to the log file")
	fl.StringVar(&f.logDir, "log-dir", "", "Directory for log files (default: next to the database)")
	fl.StringVar(&f.profile, "profile", "", "Extraction profile: google-maps or generic-listing")
	fl.IntVarP(&f.maxResults, "max-results", "n", 0, "Maximum number of listings to scrape")
	fl.IntVar(&f.delayMs, "delay", 0, "Delay between feed scrolls in milliseconds")

	return cmd
}

func runScrape(cmd *cobra.Command, f scrapeFlags) error {
	repo, err := openRepository(f.dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Setup context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts, err := effectiveOptions(ctx, cmd, f, repo)
	if err != nil {
		return err
	}

	logDir := f.logDir
	if logDir == "" {
		logDir = filepath.Dir(f.dbPath)
	}
	log, logPath, closeLog, err := newLogger(logDir, !f.useTUI, f.debug)
	if err != nil {
		return err
	}
	defer closeLog()
	fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)

	page, target, closePage, err := openPage(ctx, f, opts.Profile, log)
	if err != nil {
		return err
	}
	defer closePage()

	var feed *tui.Feed
	listener := printEvent
	if f.useTUI {
		feed = tui.NewFeed()
		listener = feed.Listen
	}

	coord := session.New(page, repo,
		session.WithLogger(log),
		session.WithListener(listener))

	startTime := time.Now()
	if err := coord.Start(ctx, opts); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	if err := repo.SaveSettings(ctx, opts); err != nil {
		log.Warn("saving settings", zap.Error(err))
	}

	if f.useTUI {
		err := tui.Run(coord, feed, tui.Params{
			Target:     target,
			Profile:    opts.Profile,
			MaxResults: opts.MaxResults,
			DBPath:     f.dbPath,
		})
		// Quitting the TUI ends the session too.
		coord.Stop()
		if err != nil {
			log.Error("tui", zap.Error(err))
		}
	}

	if err := coord.Wait(context.Background()); err != nil {
		return err
	}

	snap := coord.Status()
	total, _ := repo.RecordCount(context.Background())
	duration := time.Since(startTime).Truncate(time.Second)

	if !f.useTUI {
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "  LeadTap %s\n", snap.Status)
		fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
		fmt.Fprintf(os.Stderr, "  Target:     %s\n", target)
		fmt.Fprintf(os.Stderr, "  Profile:    %s\n", opts.Profile)
		fmt.Fprintf(os.Stderr, "  Scraped:    %d\n", snap.Count)
		fmt.Fprintf(os.Stderr, "  In DB:      %d\n", total)
		fmt.Fprintf(os.Stderr, "  Duration:   %s\n", duration)
		fmt.Fprintf(os.Stderr, "  Database:   %s\n", f.dbPath)
		fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	}

	if snap.Status == model.StatusError {
		meta, _ := repo.LastRun(context.Background())
		return errors.New(meta.Error)
	}
	return nil
}

// effectiveOptions overlays the flags the user set on the saved settings.
func effectiveOptions(ctx context.Context, cmd *cobra.Command, f scrapeFlags, repo *storage.Repository) (model.StartOptions, error) {
	opts, err := repo.Settings(ctx)
	if err != nil {
		return model.StartOptions{}, fmt.Errorf("loading settings: %w", err)
	}
	fl := cmd.Flags()
	if fl.Changed("profile") {
		opts.Profile = model.Profile(f.profile)
	}
	if fl.Changed("max-results") {
		opts.MaxResults = f.maxResults
	}
	if fl.Changed("delay") {
		opts.DelayBetweenScrollsMs = f.delayMs
	}
	if f.static && !fl.Changed("profile") {
		opts.Profile = model.ProfileListing
	}
	if err := opts.Validate(); err != nil {
		return model.StartOptions{}, err
	}
	if f.static && opts.Profile != model.ProfileListing {
		return model.StartOptions{}, fmt.Errorf("--static only supports the %s profile", model.ProfileListing)
	}
	return opts, nil
}

// openPage resolves the page to scrape and a closer for what it opened. An
// empty profile picks the tab by f.tab alone.
func openPage(ctx context.Context, f scrapeFlags, profile model.Profile, log *zap.Logger) (dom.Page, string, func(), error) {
	if f.static {
		if f.tab == "" {
			return nil, "", nil, errors.New("--static needs a page URL")
		}
		client, err := fetch.NewClient(fetch.Config{ProxyURL: f.proxyURL, Logger: log})
		if err != nil {
			return nil, "", nil, err
		}
		body, err := client.Get(ctx, f.tab)
		if err != nil {
			return nil, "", nil, fmt.Errorf("fetching %s: %w", f.tab, err)
		}
		page, err := htmlpage.FromReader(f.tab, bytes.NewReader(body), htmlpage.Options{})
		if err != nil {
			return nil, "", nil, err
		}
		return page, f.tab, func() {}, nil
	}

	match := tabMatch(f.tab, profile)

	b, err := browser.Connect(ctx, browser.Config{
		ControlURL: f.controlURL,
		Headless:   f.headless,
		ProxyURL:   f.proxyURL,
		Logger:     log,
	})
	if err != nil {
		return nil, "", nil, err
	}
	tab, err := b.Pick(match)
	if err != nil {
		b.Close()
		return nil, "", nil, err
	}
	page := rodpage.New(tab)
	return page, page.URL(), func() { b.Close() }, nil
}

// tabMatch is the tab URL fragment to pick. Without an explicit tab the maps
// profile looks for a Maps tab; anything else takes the first open tab.
func tabMatch(tab string, profile model.Profile) string {
	if tab == "" && profile == model.ProfileMaps {
		return "google.com/maps"
	}
	return tab
}

func printEvent(e session.Event) {
	switch {
	case e.Kind == session.EventError:
		fmt.Fprintf(os.Stderr, "error: %s\n", e.Message)
	case e.Kind == session.EventDone:
		fmt.Fprintf(os.Stderr, "\rScraped %d businesses\n", e.Total)
	case e.Status == model.StatusStopped:
		fmt.Fprintf(os.Stderr, "\rStopped after %d businesses\n", e.Count)
	default:
		fmt.Fprintf(os.Stderr, "\rScraped %d...", e.Count)
	}
}
