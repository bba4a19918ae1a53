// Package lifecycle drives every offer, inbound or outbound, through a
// serialized pipeline: one offer is processed at a time, remote actions are
// retried with backoff, and the reservation set is kept consistent with
// offer state.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/inventory"
	"github.com/viktorwb/scrapbot/pkg/offer"
	"github.com/viktorwb/scrapbot/pkg/remote"
	"github.com/viktorwb/scrapbot/pkg/reserve"
	"github.com/viktorwb/scrapbot/pkg/storage"
	"github.com/viktorwb/scrapbot/pkg/util"
)

type Action int

const (
	ActionSkip Action = iota
	ActionAccept
	ActionDecline
)

// Decision is what the policy handler wants done with an offer.
type Decision struct {
	Action Action
	Reason string
}

// DecideFunc is the injected policy: it inspects an offer and picks an
// action. It must not perform remote calls.
type DecideFunc func(ctx context.Context, o *offer.Offer) Decision

type Config struct {
	AcceptRetry  util.RetryPolicy
	DeclineRetry util.RetryPolicy
	ConfirmRetry util.RetryPolicy
	SendRetry    util.RetryPolicy
	EscrowRetry  util.RetryPolicy

	// EscrowFailWindow arms the restart valve when two escrow pre-checks
	// fail terminally inside it.
	EscrowFailWindow time.Duration

	RemoteTimeout time.Duration
	EscrowTimeout time.Duration
}

type Deps struct {
	Trades  remote.TradingService
	Confirm remote.Confirmer
	Dupes   remote.DupeChecker
	Bans    remote.BanList
	Probe   remote.Prober

	Inv     *inventory.Manager
	Res     *reserve.Set
	History *storage.TradeStore // optional

	// Restart is the fail-fast escape hatch; cmd owns actual process death.
	Restart func()
	Clock   util.Clock
	Log     *zap.SugaredLogger
}

// job is one queue entry. Jobs are deduplicated by offer ID; the job ID only
// exists for logging.
type job struct {
	ID         string
	OfferID    offer.ID
	EnqueuedAt time.Time
}

type Manager struct {
	cfg    Config
	deps   Deps
	decide DecideFunc

	mu         sync.Mutex
	queue      []job
	queued     map[offer.ID]struct{}
	processing offer.ID
	offers     map[offer.ID]*offer.Offer
	wake       chan struct{}

	escrowMu       sync.Mutex
	escrowFails    int
	lastEscrowFail time.Time
}

func NewManager(cfg Config, deps Deps, decide DecideFunc) *Manager {
	if deps.Clock == nil {
		deps.Clock = util.RealClock{}
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 10 * time.Second
	}
	if cfg.EscrowTimeout <= 0 {
		cfg.EscrowTimeout = 20 * time.Second
	}
	if cfg.EscrowFailWindow <= 0 {
		cfg.EscrowFailWindow = 5 * time.Minute
	}
	cfg.EscrowRetry.Jitter = true
	return &Manager{
		cfg:    cfg,
		deps:   deps,
		decide: decide,
		queued: make(map[offer.ID]struct{}),
		offers: make(map[offer.ID]*offer.Offer),
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue registers an inbound offer for processing. Re-delivering an offer
// already queued or currently processing is a no-op; exactly one processing
// pass results. Returns whether the offer was newly queued.
func (m *Manager) Enqueue(o *offer.Offer) bool {
	m.mu.Lock()
	if _, dup := m.queued[o.ID]; dup || m.processing == o.ID {
		m.mu.Unlock()
		return false
	}
	m.offers[o.ID] = o
	m.queued[o.ID] = struct{}{}
	m.queue = append(m.queue, job{
		ID:         uuid.NewString(),
		OfferID:    o.ID,
		EnqueuedAt: m.deps.Clock.Now(),
	})
	st := o.State
	m.mu.Unlock()

	// inbound active offers pledge our items the moment we know about them
	if st == offer.StateActive || st == offer.StateActiveUnconfirmed {
		m.deps.Res.Reserve(o.ID, o.GiveAssets())
	}

	select {
	case m.wake <- struct{}{}:
	default:
	}
	m.deps.Log.Infow("offer_queued", "offer", o.ID, "counterparty", o.Counterparty)
	return true
}

// Run owns the single processing slot until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	for {
		j, o, ok := m.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
				continue
			}
		}

		m.process(ctx, j, o)

		m.mu.Lock()
		m.processing = ""
		m.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
	}
}

// next claims the processing slot for the head of the queue. The slot is
// held only in the bookkeeping sense; the queue lock is never held across a
// remote call or a retry sleep.
func (m *Manager) next() (job, *offer.Offer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return job{}, nil, false
	}
	j := m.queue[0]
	m.queue = m.queue[1:]
	delete(m.queued, j.OfferID)
	m.processing = j.OfferID
	return j, m.offers[j.OfferID], true
}

func (m *Manager) process(ctx context.Context, j job, o *offer.Offer) {
	if o == nil {
		return
	}
	log := m.deps.Log.With("offer", o.ID, "job", j.ID)

	m.mu.Lock()
	st := o.State
	m.mu.Unlock()
	if st.Terminal() {
		log.Debugw("offer_already_terminal", "state", st.String())
		return
	}

	d := m.decide(ctx, o)
	log.Infow("offer_decision", "action", actionName(d.Action), "reason", d.Reason)

	switch d.Action {
	case ActionAccept:
		switch m.dupeGate(ctx, o) {
		case gateDuped:
			log.Warnw("offer_duped_item", "candidates", len(o.Details.DupeCandidates))
			m.executeDecline(ctx, o, "includes a duped item")
			return
		case gateUnknown:
			// inconclusive check never auto-accepts
			log.Warnw("offer_dupe_check_inconclusive")
			return
		}
		m.executeAccept(ctx, o, d.Reason)
	case ActionDecline:
		m.executeDecline(ctx, o, d.Reason)
	default:
		log.Infow("offer_skipped", "reason", d.Reason)
	}
}

func (m *Manager) executeAccept(ctx context.Context, o *offer.Offer, reason string) {
	log := m.deps.Log.With("offer", o.ID)
	var pending bool

	err := util.Retry(ctx, m.deps.Clock, m.cfg.AcceptRetry, remote.Transient, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		defer cancel()
		res, err := m.deps.Trades.Accept(callCtx, o.ID)
		if err == nil {
			pending = res.Pending
			return nil
		}
		if remote.Ambiguous(err) {
			// the accept may have landed; check before retrying
			if st, ok := m.remoteState(ctx, o); ok && st == offer.StateAccepted {
				return nil
			}
		}
		return err
	})
	if err != nil {
		log.Errorw("offer_accept_failed", "err", err, "reason", reason)
		return
	}

	if pending {
		if err := m.confirm(ctx, o.ID); err != nil {
			log.Errorw("offer_confirm_failed", "err", err)
			return
		}
	}
	log.Infow("offer_accepted", "reason", reason)
	m.ApplyState(ctx, o, offer.StateAccepted)
}

func (m *Manager) executeDecline(ctx context.Context, o *offer.Offer, reason string) {
	log := m.deps.Log.With("offer", o.ID)
	err := util.Retry(ctx, m.deps.Clock, m.cfg.DeclineRetry, remote.Transient, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		defer cancel()
		return m.deps.Trades.Decline(callCtx, o.ID)
	})
	if err != nil {
		log.Errorw("offer_decline_failed", "err", err, "reason", reason)
		return
	}
	log.Infow("offer_declined", "reason", reason)
	m.ApplyState(ctx, o, offer.StateDeclined)
}

func (m *Manager) confirm(ctx context.Context, id offer.ID) error {
	return util.Retry(ctx, m.deps.Clock, m.cfg.ConfirmRetry, remote.Transient, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		defer cancel()
		return m.deps.Confirm.Confirm(callCtx, id)
	})
}

// remoteState looks the offer up in recent history. Used to resolve
// ambiguous timeouts without blind re-submission.
func (m *Manager) remoteState(ctx context.Context, o *offer.Offer) (offer.State, bool) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
	defer cancel()
	recent, err := m.deps.Trades.Recent(callCtx)
	if err != nil {
		return offer.StateUnknown, false
	}
	for _, r := range recent {
		if r.ID == o.ID {
			return r.State, true
		}
	}
	return offer.StateUnknown, false
}

type gateVerdict int

const (
	gateClean gateVerdict = iota
	gateUnknown
	gateDuped
)

// dupeGate runs the deferred fraud check on the offer's flagged items. It is
// consulted before any accept or send, never during construction.
func (m *Manager) dupeGate(ctx context.Context, o *offer.Offer) gateVerdict {
	worst := gateClean
	for _, id := range o.Details.DupeCandidates {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		v, err := m.deps.Dupes.CheckDuped(callCtx, id)
		cancel()
		if err != nil || v == remote.DupeUnknown {
			if worst < gateUnknown {
				worst = gateUnknown
			}
			continue
		}
		if v == remote.DupeConfirmed {
			return gateDuped
		}
	}
	return worst
}

// ApplyState records a state transition and keeps reservations and local
// inventory consistent with it. State writes go through the queue mutex:
// feed notifications land on their own goroutine while the processing slot
// works the same offer. Terminal offers leave the tracking map; history
// keeps serving them.
func (m *Manager) ApplyState(ctx context.Context, o *offer.Offer, st offer.State) {
	m.mu.Lock()
	o.State = st
	if st.Terminal() {
		delete(m.offers, o.ID)
	}
	m.mu.Unlock()

	switch {
	case st == offer.StateActive || st == offer.StateActiveUnconfirmed:
		m.deps.Res.Reserve(o.ID, o.GiveAssets())
	case st == offer.StateAccepted:
		// the items are gone, not merely unpledged
		m.deps.Res.ReleaseAll(o.ID)
		m.deps.Inv.RemoveAssets(o.GiveAssets())
		m.record(o)
		go m.refreshInventory()
	case st.Terminal():
		m.deps.Res.ReleaseAll(o.ID)
		m.record(o)
	}
}

func (m *Manager) refreshInventory() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := m.deps.Inv.Refresh(ctx); err != nil {
		m.deps.Log.Warnw("inventory_refresh_failed", "err", err)
	}
}

func (m *Manager) record(o *offer.Offer) {
	if m.deps.History == nil {
		return
	}
	rec := storage.TradeRecord{
		OfferID:      o.ID,
		Counterparty: o.Counterparty,
		State:        o.State.String(),
		OurValue:     o.Details.OurValue,
		TheirValue:   o.Details.TheirValue,
		HighValue:    o.Details.HighValue,
		Notes:        o.Details.Notes,
		ClosedAt:     m.deps.Clock.Now(),
	}
	if err := m.deps.History.Save(rec); err != nil {
		m.deps.Log.Warnw("trade_record_failed", "offer", o.ID, "err", err)
	}
}

// Depth reports queued offers, excluding the one being processed.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Processing returns the offer currently holding the slot, if any.
func (m *Manager) Processing() (offer.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing, m.processing != ""
}

// Lookup returns a tracked offer by ID.
func (m *Manager) Lookup(id offer.ID) (*offer.Offer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	return o, ok
}

// OfferSnapshot returns a copy of a tracked offer, safe to serialize while
// the pipeline keeps mutating the original.
func (m *Manager) OfferSnapshot(id offer.ID) (offer.Offer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return offer.Offer{}, false
	}
	return *o, true
}

func actionName(a Action) string {
	switch a {
	case ActionAccept:
		return "accept"
	case ActionDecline:
		return "decline"
	default:
		return "skip"
	}
}
