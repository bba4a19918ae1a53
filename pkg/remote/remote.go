// Package remote declares the collaborator contracts the trade pipeline
// consumes. Every operation is a network call; retry and timeout policy
// lives in the callers, never behind these interfaces.
package remote

import (
	"context"
	"errors"

	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/offer"
)

// Transient remote failures, retried with backoff by the lifecycle manager.
var (
	ErrTimeout     = errors.New("remote: timeout")
	ErrNotLoggedIn = errors.New("remote: not logged in")
	ErrRateLimited = errors.New("remote: rate limited")
)

// Transient reports whether an error is worth another attempt.
func Transient(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrNotLoggedIn) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Ambiguous reports a failure where the operation may have gone through
// remotely. Blind retry risks a duplicate submission; callers reconcile
// against offer history instead.
func Ambiguous(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

type SendStatus int

const (
	SendSent SendStatus = iota
	// SendPending means the offer needs mobile confirmation before it goes
	// active.
	SendPending
)

type SendResult struct {
	Status  SendStatus
	OfferID offer.ID
}

type AcceptResult struct {
	// Pending means the accept needs mobile confirmation to finalize.
	Pending bool
}

// EscrowDetails is the answer to the pre-send escrow query.
type EscrowDetails struct {
	OurHoldDays   int
	TheirHoldDays int
}

// Holds reports whether the trade would sit in escrow on either side.
func (d EscrowDetails) Holds() bool { return d.OurHoldDays > 0 || d.TheirHoldDays > 0 }

// TradingService is the remote marketplace.
type TradingService interface {
	Send(ctx context.Context, o *offer.Offer) (SendResult, error)
	Accept(ctx context.Context, id offer.ID) (AcceptResult, error)
	Decline(ctx context.Context, id offer.ID) error
	GetUserDetails(ctx context.Context, id offer.ID) (EscrowDetails, error)
	// GetOffer resolves a notification into the full offer.
	GetOffer(ctx context.Context, id offer.ID) (*offer.Offer, error)
	// Recent lists recently created or changed offers, newest first. Used to
	// reconcile ambiguous send/accept timeouts.
	Recent(ctx context.Context) ([]*offer.Offer, error)
}

// Confirmer finalizes offers the marketplace reports as pending.
type Confirmer interface {
	Confirm(ctx context.Context, id offer.ID) error
}

type DupeVerdict int

const (
	DupeClean DupeVerdict = iota
	DupeConfirmed
	// DupeUnknown forces manual review; it must never be treated as clean.
	DupeUnknown
)

type DupeChecker interface {
	CheckDuped(ctx context.Context, id item.AssetID) (DupeVerdict, error)
}

type BanList interface {
	IsBanned(ctx context.Context, userID string) (bool, error)
}

// Prober answers whether the remote service itself is degraded, and whether
// a maintenance window explains current failures. The escrow safety valve
// consults it before forcing a restart.
type Prober interface {
	Healthy(ctx context.Context) error
	UnderMaintenance(ctx context.Context) bool
}

// InventorySource fetches a user's live inventory. Failure (network,
// private profile) aborts construction.
type InventorySource interface {
	Fetch(ctx context.Context, ownerID string) ([]item.Item, error)
}
