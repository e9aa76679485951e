package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrElementNotFound is returned when an XPath matches nothing on the page
var ErrElementNotFound = errors.New("element not found")

// Config holds headless browser settings
type Config struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

// Opener starts Chrome sessions through the DevTools protocol
type Opener struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
}

// NewOpener prepares the browser allocator. No process is started until a session is opened.
func NewOpener(cfg Config, logger *zap.Logger) *Opener {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Opener{allocCtx: allocCtx, cancel: cancel, logger: logger.Named("browser")}
}

// Open starts an independent browser session with a single tab
func (o *Opener) Open(ctx context.Context) (domain.Page, error) {
	tabCtx, cancel := chromedp.NewContext(o.allocCtx)
	s := &Session{ctx: tabCtx, cancel: cancel}

	// the first Run launches the browser
	if err := s.run(ctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	o.logger.Debug("browser session opened")
	return s, nil
}

// Close stops every browser started by this opener
func (o *Opener) Close() error {
	o.cancel()
	return nil
}

// Session is one browser tab implementing domain.Page. Selectors are XPath.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, aborting when either the tab or ctx ends
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url in the tab
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// WaitReady blocks until selector is present in the DOM, for at most timeout
func (s *Session) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.run(waitCtx, chromedp.WaitReady(selector, chromedp.BySearch)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s waiting for %s", timeout, selector)
		}
		return err
	}
	return nil
}

// Click activates the first element matching selector
func (s *Session) Click(ctx context.Context, selector string) error {
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(clickScript(selector), &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

// ReadText returns the rendered text of the first element matching selector
func (s *Session) ReadText(ctx context.Context, selector string) (string, error) {
	var text *string
	if err := s.run(ctx, chromedp.Evaluate(textScript(selector), &text)); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return *text, nil
}

// ReadAllText returns the rendered text of every element matching selector
func (s *Session) ReadAllText(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	if err := s.run(ctx, chromedp.Evaluate(allTextScript(selector), &texts)); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return texts, nil
}

// Close shuts the tab and its browser
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// The scripts below never wait: a missing node yields false, null or [] at once.

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func firstNode(xpath string) string {
	return `document.evaluate(` + jsString(xpath) + `, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`
}

func clickScript(xpath string) string {
	return `(() => { const n = ` + firstNode(xpath) + `; if (!n) return false; n.click(); return true; })()`
}

func textScript(xpath string) string {
	return `(() => { const n = ` + firstNode(xpath) + `; return n ? (n.innerText ?? n.textContent) : null; })()`
}

func allTextScript(xpath string) string {
	return `(() => { const r = document.evaluate(` + jsString(xpath) +
		`, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null); const out = [];` +
		` for (let i = 0; i < r.snapshotLength; i++) { const n = r.snapshotItem(i); out.push(n.innerText ?? n.textContent ?? ""); }` +
		` return out; })()`
}
