package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/vk/flowdash/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// WatchLine is one line written by Watch.
type WatchLine struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
	Data  any       `json:"data,omitempty"`
}

// lineWriter serialises concurrent event callbacks onto w.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

func newLineWriter(w io.Writer, now func() time.Time) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w), now: now}
}

func (l *lineWriter) write(event string, data []any) error {
	line := WatchLine{Event: event, At: l.now().UTC()}
	switch len(data) {
	case 0:
	case 1:
		line.Data = data[0]
	default:
		line.Data = data
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(line)
}

// Watch connects to the feed at rawURL and writes every event to w as a JSON
// line until ctx is done. rawURL is the server's base URL; the socket.io path
// is appended when it has none.
func Watch(ctx context.Context, rawURL string, w io.Writer) error {
	logger := ctxlog.FromContext(ctx).With("component", "feed_watch", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("watch URL %q must be absolute", rawURL)
	}
	path := parsedURL.Path
	if path == "" || path == "/" {
		path = Path
	}

	opts := socket.DefaultOptions()
	opts.SetPath(path)
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	client := manager.Socket("/", opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		client.Disconnect()
	}()

	out := newLineWriter(w, time.Now)
	failed := make(chan error, 1)
	report := func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	client.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected to feed", "sid", client.Id())
	})
	client.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("socket.io connection failed")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = fmt.Errorf("socket.io connection failed: %w", e)
			}
		}
		report(err)
	})
	for _, name := range []string{EventSnapshot, EventNodeUpdate, EventSelection, EventConnection} {
		client.On(types.EventName(name), func(data ...any) {
			if err := out.write(name, data); err != nil {
				report(fmt.Errorf("failed to write %s event: %w", name, err))
			}
		})
	}

	client.Connect()

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		return err
	}
}
