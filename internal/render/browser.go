package render

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (Linux; Android 6.0; Nexus 5 Build/MRA58N) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Mobile Safari/537.36"

// Browser lazily launches one shared headless Chrome and hands out short-lived
// tab contexts per request. Chrome is expensive to start; tabs are cheap, and
// multiple tabs can run concurrently against the one instance.
type Browser struct {
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger

	once     sync.Once
	allocCtx context.Context
	cancel   context.CancelFunc
}

func NewBrowser(timeout time.Duration, logger *zap.Logger) *Browser {
	return &Browser{
		timeout:   timeout,
		userAgent: defaultUserAgent,
		logger:    logger,
	}
}

func (b *Browser) init() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(b.userAgent),
	)
	b.allocCtx, b.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.logger.Info("headless browser allocator initialized")
}

// tab opens a new page context bounded by the navigation timeout and the
// caller's context.
func (b *Browser) tab(ctx context.Context) (context.Context, context.CancelFunc) {
	b.once.Do(b.init)

	taskCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, b.timeout)
	stop := context.AfterFunc(ctx, cancelTimeout)

	return taskCtx, func() {
		stop()
		cancelTimeout()
		cancelTab()
	}
}

// FetchPage navigates to url and returns the fully rendered HTML once the
// page body is visible.
func (b *Browser) FetchPage(ctx context.Context, url string) (string, error) {
	taskCtx, cancel := b.tab(ctx)
	defer cancel()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// FetchAPIResponse navigates to pageURL and captures the body of the first
// successful network response whose URL contains apiPattern. Useful for sites
// that render their search results from an internal JSON API.
func (b *Browser) FetchAPIResponse(ctx context.Context, pageURL, apiPattern string) (string, error) {
	taskCtx, cancel := b.tab(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		requestID network.RequestID
		finished  = make(chan struct{})
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			mu.Lock()
			if requestID == "" && strings.Contains(e.Response.URL, apiPattern) && e.Response.Status == 200 {
				requestID = e.RequestID
			}
			mu.Unlock()
		case *network.EventLoadingFinished:
			mu.Lock()
			if requestID != "" && e.RequestID == requestID {
				select {
				case <-finished:
				default:
					close(finished)
				}
			}
			mu.Unlock()
		}
	})

	if err := chromedp.Run(taskCtx, network.Enable(), chromedp.Navigate(pageURL)); err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	select {
	case <-finished:
	case <-taskCtx.Done():
		return "", fmt.Errorf("waiting for %q response on %s: %w", apiPattern, pageURL, taskCtx.Err())
	}

	var body []byte
	err := chromedp.Run(taskCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(requestID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("read %q response body: %w", apiPattern, err)
	}
	return string(body), nil
}

// Close tears down the shared browser. Safe to call even if no page was ever
// rendered.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}
