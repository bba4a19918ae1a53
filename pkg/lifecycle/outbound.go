package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/viktorwb/scrapbot/pkg/cart"
	"github.com/viktorwb/scrapbot/pkg/construct"
	"github.com/viktorwb/scrapbot/pkg/offer"
	"github.com/viktorwb/scrapbot/pkg/remote"
	"github.com/viktorwb/scrapbot/pkg/util"
)

// Outbound terminal failures. All of them leave no reservations behind.
var (
	ErrCounterpartyBanned = errors.New("lifecycle: counterparty is banned")
	ErrEscrowHold         = errors.New("lifecycle: trade would be held in escrow")
	ErrDupedItem          = errors.New("lifecycle: offer includes a duped item")
	ErrDupeUnknown        = errors.New("lifecycle: dupe check inconclusive, manual review required")
	ErrEscrowCheckFailed  = errors.New("lifecycle: escrow check failed")
)

// Propose vets the counterparty, constructs an offer from the cart, and
// sends it. This is the one entry point for outbound trades.
func (m *Manager) Propose(ctx context.Context, c *cart.Cart, b *construct.Builder) (*offer.Offer, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
	banned, err := m.deps.Bans.IsBanned(callCtx, c.Counterparty())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("ban check: %w", err)
	}
	if banned {
		return nil, ErrCounterpartyBanned
	}

	o, err := b.Build(ctx, c)
	if err != nil {
		return nil, err
	}

	if err := m.SendOutbound(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// SendOutbound drives a constructed offer to the remote service: escrow
// pre-check, dupe gate, send with ambiguity reconciliation, confirmation.
// On any failure the offer's reservations are released.
func (m *Manager) SendOutbound(ctx context.Context, o *offer.Offer) error {
	log := m.deps.Log.With("offer", o.ID, "counterparty", o.Counterparty)

	details, err := m.escrowCheck(ctx, o)
	if err != nil {
		m.deps.Res.ReleaseAll(o.ID)
		m.escrowFailure(ctx)
		return fmt.Errorf("%w: %v", ErrEscrowCheckFailed, err)
	}
	m.escrowOK()
	if details.Holds() {
		m.deps.Res.ReleaseAll(o.ID)
		log.Infow("offer_blocked_escrow",
			"our_days", details.OurHoldDays, "their_days", details.TheirHoldDays)
		return ErrEscrowHold
	}

	switch m.dupeGate(ctx, o) {
	case gateDuped:
		m.deps.Res.ReleaseAll(o.ID)
		return ErrDupedItem
	case gateUnknown:
		m.deps.Res.ReleaseAll(o.ID)
		return ErrDupeUnknown
	}

	var res remote.SendResult
	err = util.Retry(ctx, m.deps.Clock, m.cfg.SendRetry, remote.Transient, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		defer cancel()
		r, sendErr := m.deps.Trades.Send(callCtx, o)
		if sendErr == nil {
			res = r
			return nil
		}
		if remote.Ambiguous(sendErr) {
			// the offer may exist remotely; re-sending would duplicate it
			if found := m.findMatching(ctx, o); found != nil {
				res = remote.SendResult{Status: remote.SendSent, OfferID: found.ID}
				return nil
			}
		}
		return sendErr
	})
	if err != nil {
		m.deps.Res.ReleaseAll(o.ID)
		log.Errorw("offer_send_failed", "err", err)
		return err
	}

	// adopt the remote identity, moving reservations with it
	if res.OfferID != "" && res.OfferID != o.ID {
		m.deps.Res.Rehold(o.ID, res.OfferID)
		m.mu.Lock()
		delete(m.offers, o.ID)
		o.ID = res.OfferID
		m.offers[o.ID] = o
		m.mu.Unlock()
	} else {
		m.mu.Lock()
		m.offers[o.ID] = o
		m.mu.Unlock()
	}

	if res.Status == remote.SendPending {
		m.ApplyState(ctx, o, offer.StateActiveUnconfirmed)
		if err := m.confirm(ctx, o.ID); err != nil {
			log.Errorw("offer_confirm_failed", "err", err)
			return err
		}
	}
	m.ApplyState(ctx, o, offer.StateActive)
	log.Infow("offer_sent", "state", offer.StateActive.String())
	return nil
}

// escrowCheck queries hold days with randomized backoff. A terminal failure
// here is counted by the restart valve.
func (m *Manager) escrowCheck(ctx context.Context, o *offer.Offer) (remote.EscrowDetails, error) {
	var details remote.EscrowDetails
	err := util.Retry(ctx, m.deps.Clock, m.cfg.EscrowRetry, remote.Transient, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.EscrowTimeout)
		defer cancel()
		d, err := m.deps.Trades.GetUserDetails(callCtx, o.ID)
		if err != nil {
			return err
		}
		details = d
		return nil
	})
	return details, err
}

// escrowFailure counts terminal escrow-check failures. Two inside the
// configured window mean the check itself is broken; a broken check risks
// shipping items into permanent loss, so unless the probe blames the remote
// service or a maintenance window, the process restarts instead of limping on.
func (m *Manager) escrowFailure(ctx context.Context) {
	now := m.deps.Clock.Now()

	m.escrowMu.Lock()
	if m.escrowFails > 0 && now.Sub(m.lastEscrowFail) <= m.cfg.EscrowFailWindow {
		m.escrowFails++
	} else {
		m.escrowFails = 1
	}
	m.lastEscrowFail = now
	tripped := m.escrowFails >= 2
	m.escrowMu.Unlock()

	if !tripped {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
	defer cancel()
	if err := m.deps.Probe.Healthy(callCtx); err != nil {
		m.deps.Log.Warnw("escrow_check_degraded_remote", "err", err)
		return
	}
	if m.deps.Probe.UnderMaintenance(callCtx) {
		m.deps.Log.Warnw("escrow_check_maintenance_window")
		return
	}

	m.deps.Log.Errorw("escrow_check_broken_restarting")
	if m.deps.Restart != nil {
		m.deps.Restart()
	}
}

func (m *Manager) escrowOK() {
	m.escrowMu.Lock()
	m.escrowFails = 0
	m.escrowMu.Unlock()
}

// findMatching searches recent remote offers for one that moves the same
// item sets with the same counterparty.
func (m *Manager) findMatching(ctx context.Context, o *offer.Offer) *offer.Offer {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
	defer cancel()
	recent, err := m.deps.Trades.Recent(callCtx)
	if err != nil {
		return nil
	}
	for _, r := range recent {
		if r.Counterparty == o.Counterparty && o.SameItems(r) {
			return r
		}
	}
	return nil
}

// OnEvent feeds a marketplace notification into the pipeline.
func (m *Manager) OnEvent(ctx context.Context, ev remote.Event) {
	switch ev.Type {
	case "offer_new":
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		o, err := m.deps.Trades.GetOffer(callCtx, ev.OfferID)
		cancel()
		if err != nil {
			m.deps.Log.Warnw("offer_fetch_failed", "offer", ev.OfferID, "err", err)
			return
		}
		m.Enqueue(o)
	case "offer_changed":
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.RemoteTimeout)
		o, err := m.deps.Trades.GetOffer(callCtx, ev.OfferID)
		cancel()
		if err != nil {
			m.deps.Log.Warnw("offer_fetch_failed", "offer", ev.OfferID, "err", err)
			return
		}
		if tracked, ok := m.Lookup(ev.OfferID); ok {
			m.ApplyState(ctx, tracked, o.State)
		} else {
			m.Enqueue(o)
		}
	default:
		m.deps.Log.Debugw("feed_event_ignored", "type", ev.Type)
	}
}
