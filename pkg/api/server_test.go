package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/lifecycle"
	"github.com/viktorwb/scrapbot/pkg/offer"
	"github.com/viktorwb/scrapbot/pkg/reserve"
	"github.com/viktorwb/scrapbot/pkg/storage"
)

func newTestServer(t *testing.T) (*Server, *reserve.Set, *storage.TradeStore) {
	t.Helper()
	res := reserve.NewSet()
	history, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	// the read endpoints never drive the pipeline, so the manager needs no
	// remote collaborators here
	mgr := lifecycle.NewManager(lifecycle.Config{}, lifecycle.Deps{
		Res: res,
		Log: zap.NewNop().Sugar(),
	}, nil)
	return NewServer(mgr, nil, res, history, zap.NewNop().Sugar()), res, history
}

func TestHandleQueueEmpty(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/queue", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var st queueStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Zero(t, st.Depth)
	require.Empty(t, st.Processing)
}

func TestHandleReservations(t *testing.T) {
	s, res, _ := newTestServer(t)
	res.Reserve("offer1", []item.AssetID{"a1", "a2"})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/reservations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[item.AssetID]offer.ID
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap, 2)
	require.Equal(t, offer.ID("offer1"), snap["a1"])
}

func TestHandleOffersFromHistory(t *testing.T) {
	s, _, history := newTestServer(t)
	require.NoError(t, history.Save(storage.TradeRecord{
		OfferID: "100", Counterparty: "alice", State: "accepted", ClosedAt: time.Now().UTC(),
	}))

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/offers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var recs []storage.TradeRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/offers/100", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/offers/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleOfferServesTrackedOffer(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.mgr.Enqueue(&offer.Offer{
		ID:           "live1",
		Counterparty: "alice",
		State:        offer.StateActive,
	})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/offers/live1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got offer.Offer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, offer.ID("live1"), got.ID)
	require.Equal(t, offer.StateActive, got.State)
}

func TestHandleProposeRejectsBadRequest(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/propose", strings.NewReader(`{"our":{}}`))
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing counterparty")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/v1/propose", strings.NewReader(`not json`))
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
