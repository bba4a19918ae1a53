package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/offer"
)

// Event is one offer notification from the marketplace feed.
type Event struct {
	Type         string          `json:"type"` // "offer_new" | "offer_changed"
	OfferID      offer.ID        `json:"offerId"`
	Counterparty string          `json:"counterparty"`
	State        string          `json:"state,omitempty"`
	Raw          json.RawMessage `json:"payload,omitempty"`
}

// Feed is a reconnecting websocket subscription to offer notifications.
// Dropped connections are re-dialed with doubling delay; events land on a
// buffered channel the lifecycle manager drains.
type Feed struct {
	url    string
	log    *zap.SugaredLogger
	events chan Event

	readTimeout  time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration
	maxReconnect time.Duration
}

func NewFeed(url string, log *zap.SugaredLogger) *Feed {
	return &Feed{
		url:          url,
		log:          log,
		events:       make(chan Event, 256),
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		pingInterval: 20 * time.Second,
		maxReconnect: time.Minute,
	}
}

func (f *Feed) Events() <-chan Event { return f.events }

// Run blocks until ctx is canceled, reconnecting as needed. The backoff
// doubles across consecutive dial failures and resets once a session is
// established.
func (f *Feed) Run(ctx context.Context) {
	delay := time.Second
	for {
		connected, err := f.runConn(ctx)
		if connected {
			delay = time.Second
		}
		if err != nil {
			f.log.Warnw("feed_disconnected", "err", err, "retry_in", delay)
		}
		select {
		case <-ctx.Done():
			close(f.events)
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.maxReconnect {
			delay = f.maxReconnect
		}
	}
}

// runConn reports whether a session was established along with the error
// that ended it.
func (f *Feed) runConn(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	f.log.Infow("feed_connected", "url", f.url)

	conn.SetReadDeadline(time.Now().Add(f.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		return nil
	})

	// ping loop; also closes the conn on ctx cancel to unblock the reader
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(f.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			return true, err
		}
		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			f.log.Warnw("feed_bad_message", "err", err)
			continue
		}
		select {
		case f.events <- ev:
		default:
			// consumer wedged; dropping is safer than blocking the read loop,
			// re-delivery comes from the next poll
			f.log.Warnw("feed_event_dropped", "offer", ev.OfferID)
		}
	}
}
