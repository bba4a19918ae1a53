package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/offer"
)

// Client talks to the trade gateway, the sidecar that owns the session with
// the actual marketplace. It implements every collaborator contract the
// pipeline consumes.
type Client struct {
	base string
	http *http.Client
	log  *zap.SugaredLogger
}

func NewClient(base string, log *zap.SugaredLogger) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

func (c *Client) Send(ctx context.Context, o *offer.Offer) (SendResult, error) {
	var out SendResult
	err := c.call(ctx, http.MethodPost, "/trade/send", o, &out)
	return out, err
}

func (c *Client) Accept(ctx context.Context, id offer.ID) (AcceptResult, error) {
	var out AcceptResult
	err := c.call(ctx, http.MethodPost, fmt.Sprintf("/trade/%s/accept", id), nil, &out)
	return out, err
}

func (c *Client) Decline(ctx context.Context, id offer.ID) error {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/trade/%s/decline", id), nil, nil)
}

func (c *Client) GetUserDetails(ctx context.Context, id offer.ID) (EscrowDetails, error) {
	var out EscrowDetails
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/trade/%s/escrow", id), nil, &out)
	return out, err
}

func (c *Client) GetOffer(ctx context.Context, id offer.ID) (*offer.Offer, error) {
	var out offer.Offer
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/trade/%s", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Recent(ctx context.Context) ([]*offer.Offer, error) {
	var out []*offer.Offer
	err := c.call(ctx, http.MethodGet, "/trade/recent", nil, &out)
	return out, err
}

func (c *Client) Confirm(ctx context.Context, id offer.ID) error {
	return c.call(ctx, http.MethodPost, fmt.Sprintf("/trade/%s/confirm", id), nil, nil)
}

func (c *Client) CheckDuped(ctx context.Context, id item.AssetID) (DupeVerdict, error) {
	var out struct {
		Duped *bool `json:"duped"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/dupe/%s", id), nil, &out); err != nil {
		return DupeUnknown, err
	}
	if out.Duped == nil {
		return DupeUnknown, nil
	}
	if *out.Duped {
		return DupeConfirmed, nil
	}
	return DupeClean, nil
}

func (c *Client) IsBanned(ctx context.Context, userID string) (bool, error) {
	var out struct {
		Banned bool `json:"banned"`
	}
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/user/%s/banned", userID), nil, &out)
	return out.Banned, err
}

func (c *Client) Healthy(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) UnderMaintenance(ctx context.Context) bool {
	var out struct {
		Maintenance bool `json:"maintenance"`
	}
	if err := c.call(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return false
	}
	return out.Maintenance
}

func (c *Client) Fetch(ctx context.Context, ownerID string) ([]item.Item, error) {
	var out []item.Item
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/inventory/%s", ownerID), nil, &out)
	return out, err
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrNotLoggedIn
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode == http.StatusGatewayTimeout:
		return ErrTimeout
	case resp.StatusCode >= 400:
		return fmt.Errorf("gateway: %s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var (
	_ TradingService  = (*Client)(nil)
	_ Confirmer       = (*Client)(nil)
	_ DupeChecker     = (*Client)(nil)
	_ BanList         = (*Client)(nil)
	_ Prober          = (*Client)(nil)
	_ InventorySource = (*Client)(nil)
)
