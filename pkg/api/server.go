// Package api exposes the agent's runtime state over HTTP: queue depth,
// reservations, and trade history. Read-only; trading commands come in
// through the chat/command subsystem, not this surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/cart"
	"github.com/viktorwb/scrapbot/pkg/construct"
	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/lifecycle"
	"github.com/viktorwb/scrapbot/pkg/offer"
	"github.com/viktorwb/scrapbot/pkg/reserve"
	"github.com/viktorwb/scrapbot/pkg/storage"
)

type Server struct {
	mgr     *lifecycle.Manager
	builder *construct.Builder
	res     *reserve.Set
	history *storage.TradeStore
	router  *mux.Router
	log     *zap.SugaredLogger
}

func NewServer(mgr *lifecycle.Manager, builder *construct.Builder, res *reserve.Set, history *storage.TradeStore, log *zap.SugaredLogger) *Server {
	s := &Server{mgr: mgr, builder: builder, res: res, history: history, router: mux.NewRouter(), log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/queue", s.handleQueue).Methods("GET")
	api.HandleFunc("/reservations", s.handleReservations).Methods("GET")
	api.HandleFunc("/offers", s.handleOffers).Methods("GET")
	api.HandleFunc("/offers/{id}", s.handleOffer).Methods("GET")
	api.HandleFunc("/propose", s.handlePropose).Methods("POST")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.log.Infow("api_listening", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      c.Handler(s.router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

type queueStatus struct {
	Depth      int      `json:"depth"`
	Processing offer.ID `json:"processing,omitempty"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	st := queueStatus{Depth: s.mgr.Depth()}
	if id, ok := s.mgr.Processing(); ok {
		st.Processing = id
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleReservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.res.Snapshot())
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := s.history.List(limit)
	if err != nil {
		s.log.Errorw("history_list_failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleOffer(w http.ResponseWriter, r *http.Request) {
	id := offer.ID(mux.Vars(r)["id"])
	if o, ok := s.mgr.OfferSnapshot(id); ok {
		writeJSON(w, http.StatusOK, o)
		return
	}
	rec, ok, err := s.history.Get(id)
	if err != nil {
		s.log.Errorw("history_get_failed", "offer", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown offer"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type proposeRequest struct {
	Counterparty string           `json:"counterparty"`
	Our          map[item.SKU]int `json:"our"`
	Their        map[item.SKU]int `json:"their"`
}

// handlePropose builds and sends an outbound offer. This is the operator
// trigger; the chat/command subsystem hits the same path.
func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Counterparty == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "counterparty and item lines required"})
		return
	}

	c := cart.New(req.Counterparty)
	for sku, n := range req.Our {
		c.AddOur(sku, n)
	}
	for sku, n := range req.Their {
		c.AddTheir(sku, n)
	}

	o, err := s.mgr.Propose(r.Context(), c, s.builder)
	if err != nil {
		var rej *construct.Rejection
		if errors.As(err, &rej) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": rej.Error()})
			return
		}
		s.log.Warnw("propose_failed", "counterparty", req.Counterparty, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
