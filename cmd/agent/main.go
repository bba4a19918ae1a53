package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/viktorwb/scrapbot/params"
	"github.com/viktorwb/scrapbot/pkg/api"
	"github.com/viktorwb/scrapbot/pkg/construct"
	"github.com/viktorwb/scrapbot/pkg/inventory"
	"github.com/viktorwb/scrapbot/pkg/item"
	"github.com/viktorwb/scrapbot/pkg/lifecycle"
	"github.com/viktorwb/scrapbot/pkg/offer"
	"github.com/viktorwb/scrapbot/pkg/pricedb"
	"github.com/viktorwb/scrapbot/pkg/remote"
	"github.com/viktorwb/scrapbot/pkg/reserve"
	"github.com/viktorwb/scrapbot/pkg/storage"
	"github.com/viktorwb/scrapbot/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Agent.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("agent_starting", "owner", cfg.Agent.OwnerID)

	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		sugar.Fatalw("missing_config", "var", "GATEWAY_URL")
	}
	client := remote.NewClient(gatewayURL, sugar)

	prices, err := pricedb.Open(filepath.Join(cfg.Agent.DataDir, "prices"), sugar)
	if err != nil {
		sugar.Fatalw("pricedb_open_failed", "err", err)
	}
	defer prices.Close()

	history, err := storage.Open(filepath.Join(cfg.Agent.DataDir, "trades"))
	if err != nil {
		sugar.Fatalw("history_open_failed", "err", err)
	}
	defer history.Close()

	res := reserve.NewSet()
	inv := inventory.NewManager(client, cfg.Agent.OwnerID, sugar)

	builder := construct.NewBuilder(construct.Config{
		KeySKU:            item.SKU(cfg.Currency.KeySKU),
		RefinedSKU:        item.SKU(cfg.Currency.RefinedSKU),
		ReclaimedSKU:      item.SKU(cfg.Currency.ReclaimedSKU),
		ScrapSKU:          item.SKU(cfg.Currency.ScrapSKU),
		WeaponsAsCurrency: cfg.Currency.WeaponsAsCurrency,
		WeaponSKUs:        toSKUs(cfg.Currency.WeaponSKUs),
		HighValueMultiple: cfg.Currency.HighValueMultiple,
	}, prices, inv, res, sugar)

	mgr := lifecycle.NewManager(lifecycle.Config{
		AcceptRetry:      util.RetryPolicy{MaxAttempts: cfg.Retry.AcceptAttempts, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay},
		DeclineRetry:     util.RetryPolicy{MaxAttempts: cfg.Retry.DeclineAttempts, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay},
		ConfirmRetry:     util.RetryPolicy{MaxAttempts: cfg.Retry.ConfirmAttempts, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay},
		SendRetry:        util.RetryPolicy{MaxAttempts: cfg.Retry.AcceptAttempts, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay},
		EscrowRetry:      util.RetryPolicy{MaxAttempts: cfg.Retry.EscrowAttempts, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay, Jitter: true},
		EscrowFailWindow: cfg.Retry.EscrowFailWindow,
		RemoteTimeout:    cfg.Retry.RemoteTimeout,
		EscrowTimeout:    cfg.Retry.EscrowTimeout,
	}, lifecycle.Deps{
		Trades:  client,
		Confirm: client,
		Dupes:   client,
		Bans:    client,
		Probe:   client,
		Inv:     inv,
		Res:     res,
		History: history,
		Restart: func() {
			// deliberate fail-fast: the supervisor brings the process back up
			sugar.Errorw("agent_restarting")
			logger.Sync()
			os.Exit(1)
		},
		Clock: util.RealClock{},
		Log:   sugar,
	}, valuePolicy(prices, sugar))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := inv.Refresh(ctx); err != nil {
		sugar.Warnw("initial_inventory_refresh_failed", "err", err)
	}

	go mgr.Run(ctx)

	if cfg.Agent.FeedURL != "" {
		feed := remote.NewFeed(cfg.Agent.FeedURL, sugar)
		go feed.Run(ctx)
		go func() {
			for ev := range feed.Events() {
				mgr.OnEvent(ctx, ev)
			}
		}()
	}

	srv := api.NewServer(mgr, builder, res, history, sugar)
	go func() {
		if err := srv.Start(cfg.Agent.ListenAddr); err != nil {
			sugar.Errorw("api_server_stopped", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("agent_stopping")
}

// valuePolicy is the default decision handler: accept offers that pay at
// least what our side is worth, decline clear losses, and leave anything
// with an unpriced item for manual handling.
func valuePolicy(prices pricedb.List, sugar *zap.SugaredLogger) lifecycle.DecideFunc {
	return func(ctx context.Context, o *offer.Offer) lifecycle.Decision {
		var give, receive int64
		for _, it := range o.ToGive {
			e, ok := prices.Price(it.SKU)
			if !ok {
				return lifecycle.Decision{Action: lifecycle.ActionSkip, Reason: "unpriced item on my side"}
			}
			give += int64(e.Sell)
		}
		for _, it := range o.ToReceive {
			e, ok := prices.Price(it.SKU)
			if !ok {
				return lifecycle.Decision{Action: lifecycle.ActionSkip, Reason: "unpriced item on your side"}
			}
			receive += int64(e.Buy)
		}
		sugar.Debugw("offer_valued", "offer", o.ID, "give", give, "receive", receive)
		if receive >= give {
			return lifecycle.Decision{Action: lifecycle.ActionAccept, Reason: "fair or better value"}
		}
		return lifecycle.Decision{Action: lifecycle.ActionDecline, Reason: "offer pays less than asking price"}
	}
}

func toSKUs(in []string) []item.SKU {
	out := make([]item.SKU, 0, len(in))
	for _, s := range in {
		out = append(out, item.SKU(s))
	}
	return out
}
