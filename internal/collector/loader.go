// Package collector drives the provider's checkout widget on behalf of a
// client and hands the provider-signed completion to the caller untouched.
package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Checkout is everything the widget needs to open for one payment intent.
type Checkout struct {
	KeyID          string
	OrderID        string
	GatewayOrderID string
	Amount         int64
	Currency       string
	Name           string
	Email          string
	Phone          string
}

// Completion is the untrusted tuple the provider returns on success.
type Completion struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

var ErrDismissed = errors.New("checkout widget dismissed")

type Widget interface {
	// Open blocks until the user completes or dismisses the widget.
	// Dismissal returns ErrDismissed.
	Open(ctx context.Context, checkout Checkout) (*Completion, error)
}

// WidgetFactory builds a Widget from the loaded provider script.
type WidgetFactory func(script []byte) (Widget, error)

// Loader fetches the provider script once per process. Concurrent callers
// share one fetch; a failed fetch is retried by the next caller.
type Loader struct {
	scriptURL  string
	httpClient *http.Client
	factory    WidgetFactory

	group singleflight.Group

	mu     sync.RWMutex
	widget Widget
}

func NewLoader(scriptURL string, factory WidgetFactory, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Loader{
		scriptURL:  scriptURL,
		httpClient: &http.Client{Timeout: timeout},
		factory:    factory,
	}
}

func (l *Loader) loaded() Widget {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.widget
}

func (l *Loader) Ensure(ctx context.Context) (Widget, error) {
	if w := l.loaded(); w != nil {
		return w, nil
	}

	// the shared fetch outlives any one caller; the http client timeout bounds it
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(l.scriptURL, func() (interface{}, error) {
		if w := l.loaded(); w != nil {
			return w, nil
		}

		script, err := l.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		w, err := l.factory(script)
		if err != nil {
			return nil, fmt.Errorf("init checkout widget: %w", err)
		}

		l.mu.Lock()
		l.widget = w
		l.mu.Unlock()
		return w, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Widget), nil
	}
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.scriptURL, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load checkout script: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load checkout script: status %d", resp.StatusCode)
	}

	script, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read checkout script: %w", err)
	}
	if len(script) == 0 {
		return nil, errors.New("load checkout script: empty body")
	}

	return script, nil
}
