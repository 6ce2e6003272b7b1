// Package browser attaches to (or launches) a Chromium instance over the
// DevTools protocol and picks the tab to scrape.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ErrNoTab is returned by Pick when no open tab matches.
var ErrNoTab = errors.New("no matching browser tab")

type Config struct {
	// ControlURL attaches to a running browser. Empty launches a new one.
	ControlURL string
	Headless   bool
	ProxyURL   string
	Logger     *zap.Logger
}

// Browser wraps a rod browser together with the launcher that owns it, if any.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	log      *zap.Logger
}

// Connect attaches to cfg.ControlURL or launches a local browser.
func Connect(ctx context.Context, cfg Config) (*Browser, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	b := &Browser{log: log}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(cfg.Headless)
		if cfg.ProxyURL != "" {
			l = l.Proxy(cfg.ProxyURL)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		b.launcher = l
		controlURL = u
		log.Info("browser launched", zap.Bool("headless", cfg.Headless))
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	b.browser = rb
	log.Debug("browser connected", zap.String("control_url", controlURL))
	return b, nil
}

// Pick returns the first open tab whose URL contains match. When no tab
// matches and match is an absolute URL, a new tab is opened on it.
func (b *Browser) Pick(match string) (*rod.Page, error) {
	pages, err := b.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("listing tabs: %w", err)
	}

	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if info.Type != proto.TargetTargetInfoTypePage {
			continue
		}
		if match == "" || strings.Contains(info.URL, match) {
			b.log.Info("tab selected", zap.String("url", info.URL))
			return p, nil
		}
	}

	if !strings.HasPrefix(match, "http://") && !strings.HasPrefix(match, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrNoTab, match)
	}

	p, err := b.browser.Page(proto.TargetCreateTarget{URL: match})
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", match, err)
	}
	b.log.Info("tab opened", zap.String("url", match))
	return p, nil
}

// Close disconnects. A browser this package launched is also killed.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil && b.launcher != nil {
		err = b.browser.Close()
	}
	b.kill()
	return err
}

func (b *Browser) kill() {
	if b.launcher != nil {
		b.launcher.Kill()
	}
}
