package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rendis/leadtap/internal/engine/session"
	"github.com/rendis/leadtap/internal/transport"
)

func newHostCmd() *cobra.Command {
	var f scrapeFlags

	cmd := &cobra.Command{
		Use:   "host [TAB-MATCH-OR-URL]",
		Short: "Run as a browser native-messaging host",
		Long: `host speaks the native-messaging protocol on stdin/stdout: each message is a
little-endian uint32 length followed by a JSON envelope. START_SCRAPING,
STOP_SCRAPING, GET_STATUS and CLEAR_DATA are answered with STATUS_RESPONSE or
ERROR; session progress is pushed as SCRAPE_PROGRESS, SCRAPE_DONE and ERROR.

The argument selects the tab to scrape by URL fragment. Without it the first
open tab is used, so pass one (e.g. google.com/maps) when several are open.

Nothing but protocol frames is written to stdout. Logs go to the log file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.tab = args[0]
			}
			return runHost(f)
		},
	}

	fl := cmd.Flags()
	addDBFlag(cmd, &f.dbPath)
	fl.StringVar(&f.controlURL, "control-url", os.Getenv("LEADTAP_CONTROL_URL"), "DevTools websocket of a running browser, defaults to LEADTAP_CONTROL_URL env var")
	fl.StringVarP(&f.proxyURL, "proxy", "p", os.Getenv("LEADTAP_PROXY"), "Proxy URL for a launched browser, defaults to LEADTAP_PROXY env var")
	fl.BoolVar(&f.debug, "debug", false, "Write debug lines to the log file")
	fl.StringVar(&f.logDir, "log-dir", "", "Directory for log files (default: next to the database)")
	return cmd
}

func runHost(f scrapeFlags) error {
	logDir := f.logDir
	if logDir == "" {
		logDir = filepath.Dir(f.dbPath)
	}
	log, _, closeLog, err := newLogger(logDir, false, f.debug)
	if err != nil {
		return err
	}
	defer closeLog()

	repo, err := openRepository(f.dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The profile arrives with each START_SCRAPING, so the tab is picked by
	// the argument alone: the first open tab when none is given.
	page, target, closePage, err := openPage(ctx, f, "", log)
	if err != nil {
		return err
	}
	defer closePage()
	log.Info("native host ready", zap.String("tab", target))

	w := transport.NewWriter(os.Stdout)
	coord := session.New(page, repo,
		session.WithLogger(log),
		session.WithListener(transport.Bridge(w, log)))

	serveErr := transport.Serve(ctx, os.Stdin, w, transport.NewHandler(coord, repo, log))

	// The browser closed the pipe: let a running session settle and persist.
	coord.Stop()
	if err := coord.Wait(context.Background()); err != nil {
		return err
	}
	if serveErr != nil && ctx.Err() == nil {
		log.Error("native messaging", zap.Error(serveErr))
		return serveErr
	}
	return nil
}
