package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/services/ledger"
	marketsvc "github.com/R3E-Network/nft_exchange/internal/app/services/market"
	"github.com/R3E-Network/nft_exchange/internal/app/services/registry"
	"github.com/R3E-Network/nft_exchange/internal/app/services/royalty"
	"github.com/R3E-Network/nft_exchange/internal/app/services/tradeconfig"
	"github.com/R3E-Network/nft_exchange/internal/app/storage"
	"github.com/R3E-Network/nft_exchange/internal/app/storage/memory"
	"github.com/R3E-Network/nft_exchange/internal/app/system"
	"github.com/R3E-Network/nft_exchange/internal/config"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

// Stores encapsulates persistence dependencies. A nil Events log defaults
// to the in-memory implementation. Sinks receive every committed event in
// addition to Events.
type Stores struct {
	Events storage.EventLog
	Sinks  []events.Recorder
}

// Application ties the registry, royalty, trade config and exchange services
// together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	cfg     *config.Config

	bootOnce sync.Once
	bootErr  error

	Ledger      *ledger.Ledger
	Royalty     *royalty.Registry
	Royalties   *royalty.Directory
	Registry    *registry.Registry
	Registries  *registry.Directory
	TradeConfig *tradeconfig.Config
	Market      *marketsvc.Engine
	Events      storage.EventLog
}

// New builds the application. Services are bootstrapped from cfg on Start.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Events == nil {
		stores.Events = memory.New(cfg.Journal.Capacity)
	}
	sink := events.Multi(append([]events.Recorder{stores.Events}, stores.Sinks...))

	a := &Application{
		manager:    system.NewManager(),
		log:        log,
		cfg:        cfg,
		Ledger:     ledger.New(log.Named("ledger")),
		Royalty:    royalty.New(log.Named("royalty")),
		Royalties:  royalty.NewDirectory(),
		Registries: registry.NewDirectory(),
		Events:     stores.Events,
	}
	a.Registry = registry.New(a.Ledger, sink, log.Named("registry"))
	a.TradeConfig = tradeconfig.New(a.Royalties, log.Named("tradeconfig"))
	a.Royalty.SetGuard(a.TradeConfig)
	a.Market = marketsvc.New(marketsvc.CollectionsFunc(a.custody), a.Ledger, sink, log.Named("market"))

	var lifecycle []system.Service
	if svc, ok := stores.Events.(system.Service); ok {
		lifecycle = append(lifecycle, svc)
	}
	for _, s := range stores.Sinks {
		if svc, ok := s.(system.Service); ok {
			lifecycle = append(lifecycle, svc)
		}
	}
	for _, svc := range lifecycle {
		if err := a.manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}
	return a, nil
}

func (a *Application) custody(_ context.Context, collection chain.Address) (marketsvc.Custody, error) {
	r, ok := a.Registries.Lookup(collection)
	if !ok {
		return nil, marketsvc.ErrUnknownCollection.WithDetails("collection", collection)
	}
	return r, nil
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.cfg }

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the lifecycle-managed services (journals, publishers and
// attached listeners) in start order. The in-process services have no
// lifecycle of their own and are not listed.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start bootstraps the services from configuration and starts every
// registered lifecycle service.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Bootstrap(ctx); err != nil {
		return err
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Bootstrap initializes the configured royalty registry, collection, trade
// rules and exchange. It runs once; later calls return the first result.
func (a *Application) Bootstrap(ctx context.Context) error {
	a.bootOnce.Do(func() {
		a.bootErr = a.bootstrap(ctx)
		if a.bootErr != nil {
			a.log.WithError(a.bootErr).Error("bootstrap failed")
		}
	})
	return a.bootErr
}

func (a *Application) bootstrap(ctx context.Context) error {
	cfg := a.cfg

	var provider royalty.Provider
	if rc := cfg.Royalty; rc.Address != "" {
		owner := chain.Address(rc.Owner)
		if err := a.Royalty.Initialize(ctx, owner, chain.Address(rc.Address), rc.TotalRoyaltiesBp); err != nil {
			return fmt.Errorf("initialize royalty registry: %w", err)
		}
		for _, c := range rc.AllowedCollections {
			if err := a.Royalty.SetAllowedCollection(ctx, owner, chain.Address(c), true); err != nil {
				return fmt.Errorf("allow collection %s: %w", c, err)
			}
		}
		a.Royalties.Register(chain.Address(rc.Address), a.Royalty)
		provider = a.Royalty
	}

	if rc := cfg.Registry; rc.Enabled() {
		fee, err := rc.Fee()
		if err != nil {
			return err
		}
		owner := chain.Address(rc.Owner)
		if err := a.Registry.Initialize(ctx, owner, registry.Settings{
			Address:      chain.Address(rc.Address),
			Name:         rc.Name,
			Symbol:       rc.Symbol,
			FeeCollector: chain.Address(rc.FeeCollector),
			MintingFee:   fee,
			Royalties:    provider,
			RoyaltyLimit: a.TradeConfig,
		}); err != nil {
			return fmt.Errorf("initialize registry: %w", err)
		}
		for _, op := range rc.Operators {
			if err := a.Registry.GrantOperator(ctx, owner, chain.Address(op)); err != nil {
				return fmt.Errorf("grant operator %s: %w", op, err)
			}
		}
		a.Registries.Register(a.Registry)
	}

	if mc := cfg.Market; mc.Address != "" {
		owner := chain.Address(mc.Owner)
		if err := a.TradeConfig.Initialize(ctx, owner); err != nil {
			return fmt.Errorf("initialize trade config: %w", err)
		}
		if err := a.Market.Initialize(ctx, owner, marketsvc.Settings{
			Address:     chain.Address(mc.Address),
			TradeConfig: a.TradeConfig,
		}); err != nil {
			return fmt.Errorf("initialize exchange: %w", err)
		}
		for _, rule := range cfg.TradeRules {
			quotes := make([]tradeconfig.QuoteRule, 0, len(rule.Quotes))
			for _, q := range rule.Quotes {
				quotes = append(quotes, tradeconfig.QuoteRule{
					Denomination:    q.Address(),
					Enabled:         q.Enabled,
					Fees:            q.Fees,
					RoyaltyRegistry: chain.Address(q.RoyaltyRegistry),
					RoyaltyBurn:     q.RoyaltyBurn,
				})
			}
			if err := a.TradeConfig.AddTradeRule(ctx, owner, chain.Address(rule.Collection), rule.Enabled, quotes...); err != nil {
				return fmt.Errorf("add trade rule for %s: %w", rule.Collection, err)
			}
		}
	}

	a.log.WithFields(map[string]interface{}{
		"collections": len(a.Registries.Collections()),
		"trade_rules": len(cfg.TradeRules),
	}).Info("exchange bootstrapped")
	return nil
}
