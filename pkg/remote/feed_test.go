package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/offer"
)

func wsURL(s *httptest.Server) string { return "ws" + strings.TrimPrefix(s.URL, "http") }

func TestRunConnReportsDialFailure(t *testing.T) {
	f := NewFeed("ws://127.0.0.1:1/feed", zap.NewNop().Sugar())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	connected, err := f.runConn(ctx)
	require.False(t, connected, "failed dial must keep the backoff growing")
	require.Error(t, err)
}

func TestRunConnDeliversEventsAndReportsSession(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"offer_new","offerId":"42"}`))
		conn.Close()
	}))
	defer srv.Close()

	f := NewFeed(wsURL(srv), zap.NewNop().Sugar())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connected, err := f.runConn(ctx)
	require.True(t, connected, "an established session resets the backoff")
	require.Error(t, err, "server-side close ends the session with a read error")

	select {
	case ev := <-f.Events():
		require.Equal(t, "offer_new", ev.Type)
		require.Equal(t, offer.ID("42"), ev.OfferID)
	default:
		t.Fatal("event not delivered")
	}
}
