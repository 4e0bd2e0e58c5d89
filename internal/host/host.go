// Package host attaches the bus to a Chromium page over CDP. It injects the
// legacy PalmSystem and PalmServiceBridge objects into every document and
// carries calls and responses across a runtime binding.
package host

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/lunashim/internal/bus"
	"github.com/dgnsrekt/lunashim/internal/luna"
)

//go:embed shim.js
var shimJS string

// BindingName is the runtime binding the page calls into.
const BindingName = "__lunaServiceCall"

const (
	outboxSize      = 256
	evaluateTimeout = 5 * time.Second
	navigateTimeout = 30 * time.Second
)

// ErrDetached is returned when the host has no page attached.
var ErrDetached = errors.New("host: no page attached")

// Options configures what the injected PalmSystem reports.
type Options struct {
	AppID        string
	LaunchParams string
	Locale       luna.Locale
	Timezone     string
	Device       luna.DeviceProfile
	// Banners receives PalmSystem banner messages. Nil only logs them.
	Banners BannerSink
}

type bootConfig struct {
	AppID        string             `json:"appId,omitempty"`
	LaunchParams string             `json:"launchParams,omitempty"`
	Locale       string             `json:"locale"`
	Region       string             `json:"region"`
	TimeFormat   string             `json:"timeFormat"`
	Timezone     string             `json:"timezone"`
	Device       luna.DeviceProfile `json:"device"`
}

// bootScript returns the document-start script: the boot values followed
// by the shim.
func bootScript(opts Options) (string, error) {
	loc := opts.Locale
	if loc.Language == "" {
		loc = luna.ParseLocale("")
	}
	tz := opts.Timezone
	if tz == "" {
		tz = "UTC"
	}
	dev := opts.Device
	if dev.ModelName == "" {
		dev = luna.DefaultDeviceProfile()
	}
	boot, err := json.Marshal(bootConfig{
		AppID:        opts.AppID,
		LaunchParams: opts.LaunchParams,
		Locale:       strings.ToLower(loc.Language + "_" + loc.Country),
		Region:       loc.Region(),
		TimeFormat:   loc.TimeFormat(),
		Timezone:     tz,
		Device:       dev,
	})
	if err != nil {
		return "", err
	}
	return "window.__lunaBoot = " + string(boot) + ";\n" + shimJS, nil
}

type delivery struct {
	token    string
	response string
}

// Host drives one page. It implements luna.Opener and the controller's
// navigation hook.
type Host struct {
	script  string
	banners BannerSink

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	session     *session

	outbox chan delivery
	done   chan struct{}
	wg     sync.WaitGroup
}

// New prepares a host. Nothing talks to the browser until Attach.
func New(opts Options) (*Host, error) {
	script, err := bootScript(opts)
	if err != nil {
		return nil, fmt.Errorf("host: boot script: %w", err)
	}
	return &Host{script: script, banners: opts.Banners, outbox: make(chan delivery, outboxSize)}, nil
}

// Attach connects to the browser at cdpURL, takes over its first page (or
// opens one) and installs the binding and shim. Calls made by the page are
// routed through bridge.
func (h *Host) Attach(ctx context.Context, cdpURL string, bridge *bus.Bridge) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tabCtx != nil {
		return errors.New("host: already attached")
	}

	slog.Info("connecting to chromium", "url", cdpURL)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)

	probeCtx, probeCancel := chromedp.NewContext(allocCtx)
	defer probeCancel()
	if err := chromedp.Run(probeCtx); err != nil {
		allocCancel()
		return fmt.Errorf("host: connect to browser: %w", err)
	}
	targets, err := chromedp.Targets(probeCtx)
	if err != nil {
		allocCancel()
		return fmt.Errorf("host: enumerate targets: %w", err)
	}

	var tabCtx context.Context
	var tabCancel context.CancelFunc
	if id, ok := firstPage(targets); ok {
		tabCtx, tabCancel = chromedp.NewContext(allocCtx, chromedp.WithTargetID(id))
		slog.Info("attaching to existing page", "target_id", id)
	} else {
		tabCtx, tabCancel = chromedp.NewContext(allocCtx)
		slog.Info("opening new page")
	}

	sess := newSession(bridge, h.enqueue)
	sess.banners = h.banners
	chromedp.ListenTarget(tabCtx, h.eventHandler(sess))

	// The first Run on tabCtx binds the page to its lifetime, so it carries
	// no timeout of its own.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	err = chromedp.Run(tabCtx,
		runtime.Enable(),
		page.Enable(),
		runtime.AddBinding(BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(h.script).Do(ctx)
			return err
		}),
	)
	if err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("host: install bridge: %w", err)
	}

	h.allocCancel = allocCancel
	h.tabCtx = tabCtx
	h.tabCancel = tabCancel
	h.session = sess
	h.done = make(chan struct{})

	h.wg.Add(1)
	go h.pump(tabCtx, h.done)

	slog.Info("page bridge installed", "binding", BindingName)
	return nil
}

func firstPage(targets []*target.Info) (target.ID, bool) {
	for _, t := range targets {
		if t.Type == "page" {
			return t.TargetID, true
		}
	}
	return "", false
}

func (h *Host) eventHandler(sess *session) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventBindingCalled:
			if e.Name == BindingName {
				sess.handle(e.Payload)
			}
		case *runtime.EventConsoleAPICalled:
			slog.Info("page console", "type", e.Type, "text", consoleText(e.Args))
		case *runtime.EventExceptionThrown:
			if e.ExceptionDetails != nil {
				slog.Warn("page exception", "text", exceptionText(e.ExceptionDetails))
			}
		case *page.EventFrameNavigated:
			if e.Frame != nil && e.Frame.ParentID == "" {
				// Detach in line so binding calls queued behind this event
				// land in the new document's table.
				ids := sess.detach()
				if len(ids) == 0 {
					return
				}
				slog.Info("page navigated, calls cancelled", "url", e.Frame.URL, "cancelled", len(ids))
				go sess.cancelAll(ids)
			}
		}
	}
}

func (h *Host) enqueue(token, response string) {
	select {
	case h.outbox <- delivery{token: token, response: response}:
	default:
		slog.Warn("page outbox full, response dropped", "token", token)
	}
}

// pump evaluates queued responses in the page one at a time.
func (h *Host) pump(tabCtx context.Context, done <-chan struct{}) {
	defer h.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-tabCtx.Done():
			return
		case d := <-h.outbox:
			if err := h.evaluate(tabCtx, callbackScript(d.token, d.response)); err != nil {
				slog.Warn("page callback failed", "token", d.token, "error", err)
			}
		}
	}
}

func (h *Host) evaluate(tabCtx context.Context, expr string) error {
	ctx, cancel := context.WithTimeout(tabCtx, evaluateTimeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, exc, err := runtime.Evaluate(expr).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("evaluate: %s", exceptionText(exc))
		}
		return nil
	}))
}

func (h *Host) attached() (context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tabCtx == nil {
		return nil, ErrDetached
	}
	return h.tabCtx, nil
}

// Navigate loads url in the attached page and waits for it to load.
func (h *Host) Navigate(ctx context.Context, url string) error {
	tabCtx, err := h.attached()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(tabCtx, navigateTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("host: navigate %s: %w", url, err)
	}
	slog.Info("page navigated", "url", url)
	return nil
}

// Open hands target to the browser in a new tab.
func (h *Host) Open(kind luna.OpenKind, url string) error {
	tabCtx, err := h.attached()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(tabCtx, evaluateTimeout)
	defer cancel()

	var id target.ID
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		id, err = target.CreateTarget(url).Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("host: open %s: %w", url, err)
	}
	slog.Info("opened target", "kind", kind, "url", url, "target_id", id)
	return nil
}

// Pending reports how many calls the current document has in flight.
func (h *Host) Pending() int {
	h.mu.Lock()
	sess := h.session
	h.mu.Unlock()
	if sess == nil {
		return 0
	}
	return sess.live()
}

// Close cancels the page's calls and disconnects. The browser keeps running.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tabCtx == nil {
		return nil
	}
	close(h.done)
	h.session.reset()
	h.tabCancel()
	h.allocCancel()
	h.wg.Wait()
	h.tabCtx = nil
	slog.Info("page bridge closed")
	return nil
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		parts = append(parts, remoteText(a))
	}
	return strings.Join(parts, " ")
}

func remoteText(o *runtime.RemoteObject) string {
	if len(o.Value) > 0 {
		var s string
		if err := json.Unmarshal(o.Value, &s); err == nil {
			return s
		}
		return string(o.Value)
	}
	if o.Description != "" {
		return o.Description
	}
	return string(o.Type)
}

func exceptionText(d *runtime.ExceptionDetails) string {
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}
