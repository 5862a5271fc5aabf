// Package tradeconfig holds the trading rules of the exchange: which
// collections and payment denominations are enabled, the fee table of each
// pair and the royalty registry settlement should honour.
package tradeconfig

import (
	"context"
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/internal/app/services/access"
	"github.com/R3E-Network/nft_exchange/internal/app/services/royalty"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/internal/ordered"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

var (
	ErrCollectionDisabled = errors.StateConflict("collection_disabled", "nft disable")
	ErrQuoteDisabled      = errors.StateConflict("quote_disabled", "quote disable")
	ErrUnknownPair        = errors.StateConflict("unknown_pair", "no trading rule for pair")
	ErrZeroCollection     = errors.Validation("zero_collection", "collection cannot be the zero address")
	ErrZeroDenomination   = errors.Validation("zero_denomination", "denomination cannot be the zero address")
	ErrZeroFeeRecipient   = errors.Validation("zero_fee_recipient", "fee recipient cannot be the zero address")
	ErrShareOverflow      = errors.Validation("share_overflow", "fees plus royalty cap exceed 10000 bp")
	ErrUnknownRegistry    = errors.Validation("unknown_royalty_registry", "royalty registry is not registered")
	ErrDuplicateQuote     = errors.Validation("duplicate_quote", "denomination listed twice")
)

// QuoteRule is the configuration of one denomination of a collection.
type QuoteRule struct {
	Denomination    chain.Address
	Enabled         bool
	Fees            []market.FeeEntry
	RoyaltyRegistry chain.Address
	RoyaltyBurn     bool
}

type collectionRules struct {
	enabled bool
	quotes  *ordered.Map[chain.Address, market.FeeRule]
}

var (
	_ royalty.CapGuard = (*Config)(nil)
	_ royalty.Provider = (*Config)(nil)
)

// Config is safe for concurrent use. It doubles as the mint-time royalty
// limit of the collections it configures and as the guard of the royalty
// registries its pairs settle with.
type Config struct {
	caps      access.Capabilities
	providers *royalty.Directory
	log       *logger.Logger

	mu          sync.RWMutex
	collections *ordered.Map[chain.Address, *collectionRules]
}

// New creates an uninitialized configuration. providers resolves royalty
// registry references when checking share totals.
func New(providers *royalty.Directory, log *logger.Logger) *Config {
	if log == nil {
		log = logger.NewDefault("tradeconfig")
	}
	if providers == nil {
		providers = royalty.NewDirectory()
	}
	return &Config{
		providers:   providers,
		log:         log,
		collections: ordered.NewMap[chain.Address, *collectionRules](),
	}
}

// Initialize runs once; caller becomes the configuration owner.
func (c *Config) Initialize(ctx context.Context, caller chain.Address) error {
	if err := c.caps.Initialize(caller); err != nil {
		return err
	}
	c.log.WithContext(ctx).WithField("owner", caller).Info("trade config initialized")
	return nil
}

func (c *Config) Owner() chain.Address { return c.caps.Owner() }

func (c *Config) TransferOwnership(ctx context.Context, caller, next chain.Address) error {
	return c.caps.TransferOwnership(caller, next)
}

// =============================================================================
// Mutations (owner only)
// =============================================================================

// AddTradeRule enables trading of collection in the given denominations,
// replacing any earlier rule of the same denominations. Owner only.
func (c *Config) AddTradeRule(ctx context.Context, caller, collection chain.Address, enabled bool, rules ...QuoteRule) error {
	if err := c.caps.RequireOwner(caller); err != nil {
		return err
	}
	if collection.IsZero() {
		return ErrZeroCollection
	}
	seen := make(map[chain.Address]bool, len(rules))
	built := make([]market.FeeRule, 0, len(rules))
	for _, q := range rules {
		if seen[q.Denomination] {
			return ErrDuplicateQuote.WithDetails("denomination", q.Denomination)
		}
		seen[q.Denomination] = true
		built = append(built, market.FeeRule{
			Collection:      collection,
			Denomination:    q.Denomination,
			Enabled:         enabled,
			QuoteEnabled:    q.Enabled,
			Fees:            append([]market.FeeEntry(nil), q.Fees...),
			RoyaltyRegistry: q.RoyaltyRegistry,
			RoyaltyBurn:     q.RoyaltyBurn,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rule := range built {
		if err := c.validate(ctx, rule); err != nil {
			return err
		}
	}
	cr := c.rulesLocked(collection)
	cr.enabled = enabled
	for _, rule := range built {
		cr.quotes.Set(rule.Denomination, rule)
	}
	c.log.WithContext(ctx).WithFields(map[string]interface{}{
		"collection": collection,
		"quotes":     len(built),
	}).Info("trade rule added")
	return nil
}

// SetEnabled toggles trading of every denomination of collection.
func (c *Config) SetEnabled(ctx context.Context, caller, collection chain.Address, enabled bool) error {
	if err := c.caps.RequireOwner(caller); err != nil {
		return err
	}
	if collection.IsZero() {
		return ErrZeroCollection
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rulesLocked(collection).enabled = enabled
	return nil
}

// SetQuoteEnabled toggles the given denominations of collection. Unknown
// denominations are added with an empty fee table.
func (c *Config) SetQuoteEnabled(ctx context.Context, caller, collection chain.Address, quotes []chain.Address, enabled bool) error {
	if err := c.caps.RequireOwner(caller); err != nil {
		return err
	}
	if collection.IsZero() {
		return ErrZeroCollection
	}
	for _, q := range quotes {
		if q.IsZero() {
			return ErrZeroDenomination
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rules := c.rulesLocked(collection)
	for _, q := range quotes {
		rule, ok := rules.quotes.Get(q)
		if !ok {
			rule = market.FeeRule{Collection: collection, Denomination: q}
		}
		rule.QuoteEnabled = enabled
		rules.quotes.Set(q, rule)
	}
	return nil
}

// SetFeeTable replaces the fee table of a configured pair.
func (c *Config) SetFeeTable(ctx context.Context, caller, collection, denom chain.Address, fees []market.FeeEntry) error {
	return c.update(ctx, caller, collection, denom, func(rule *market.FeeRule) {
		rule.Fees = append([]market.FeeEntry(nil), fees...)
	})
}

// SetRoyaltyRegistry sets (or with a zero address clears) the royalty
// registry of a configured pair.
func (c *Config) SetRoyaltyRegistry(ctx context.Context, caller, collection, denom, registry chain.Address, burn bool) error {
	return c.update(ctx, caller, collection, denom, func(rule *market.FeeRule) {
		rule.RoyaltyRegistry = registry
		rule.RoyaltyBurn = burn
	})
}

func (c *Config) update(ctx context.Context, caller, collection, denom chain.Address, edit func(*market.FeeRule)) error {
	if err := c.caps.RequireOwner(caller); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rules, ok := c.collections.Get(collection)
	if !ok {
		return ErrUnknownPair.WithDetails("collection", collection)
	}
	current, ok := rules.quotes.Get(denom)
	if !ok {
		return ErrUnknownPair.WithDetails("denomination", denom)
	}
	rule := current.Clone()
	edit(&rule)
	rule.Enabled = rules.enabled
	rule.QuoteEnabled = current.QuoteEnabled
	if err := c.validate(ctx, rule); err != nil {
		return err
	}
	rules.quotes.Set(denom, rule)
	return nil
}

// validate enforces that every fee recipient is set and that fees plus the
// royalty cap of the referenced registry stay within 10000 bp. Callers hold
// c.mu so a concurrent cap change cannot slip in between check and commit.
func (c *Config) validate(ctx context.Context, rule market.FeeRule) error {
	if rule.Denomination.IsZero() {
		return ErrZeroDenomination
	}
	for i, fee := range rule.Fees {
		if fee.Recipient.IsZero() && !fee.Burn {
			return ErrZeroFeeRecipient.WithDetails("index", i)
		}
	}
	total := rule.FeeBp()
	if rule.PaysRoyalties() {
		provider, ok := c.providers.Lookup(rule.RoyaltyRegistry)
		if !ok {
			return ErrUnknownRegistry.WithDetails("registry", rule.RoyaltyRegistry)
		}
		capBp, err := provider.MaxRoyaltyBp(ctx, rule.Collection)
		if err != nil {
			return err
		}
		total += uint64(capBp)
	}
	if total > chain.BasisPointsDenominator {
		return ErrShareOverflow.WithDetails("total_bp", total)
	}
	return nil
}

// GuardRoyaltyCap rejects a cap change of registry that would push any pair
// settling with it over 10000 bp, and otherwise commits the change while
// the rules stay locked.
func (c *Config) GuardRoyaltyCap(ctx context.Context, registry chain.Address, capOf func(collection chain.Address) uint32, commit func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, collection := range c.collections.Keys() {
		rules, _ := c.collections.Get(collection)
		var err error
		rules.quotes.Range(func(denom chain.Address, rule market.FeeRule) bool {
			if !rule.PaysRoyalties() || rule.RoyaltyRegistry != registry {
				return true
			}
			if total := rule.FeeBp() + uint64(capOf(collection)); total > chain.BasisPointsDenominator {
				err = ErrShareOverflow.
					WithDetails("collection", collection).
					WithDetails("denomination", denom).
					WithDetails("total_bp", total)
				return false
			}
			return true
		})
		if err != nil {
			c.log.WithContext(ctx).WithError(err).WithField("registry", registry).Warn("royalty cap change rejected")
			return err
		}
	}
	commit()
	return nil
}

func (c *Config) rulesLocked(collection chain.Address) *collectionRules {
	rules, ok := c.collections.Get(collection)
	if !ok {
		rules = &collectionRules{quotes: ordered.NewMap[chain.Address, market.FeeRule]()}
		c.collections.Set(collection, rules)
	}
	return rules
}

// =============================================================================
// Lookups
// =============================================================================

// IsEnabled reports whether collection may trade in denom.
func (c *Config) IsEnabled(ctx context.Context, collection, denom chain.Address) bool {
	return c.CheckEnableTrade(ctx, collection, denom) == nil
}

// CheckEnableTrade explains why a pair cannot trade, or returns nil.
func (c *Config) CheckEnableTrade(ctx context.Context, collection, denom chain.Address) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rules, ok := c.collections.Get(collection)
	if !ok || !rules.enabled {
		return ErrCollectionDisabled.WithDetails("collection", collection)
	}
	rule, ok := rules.quotes.Get(denom)
	if !ok || !rule.QuoteEnabled {
		return ErrQuoteDisabled.WithDetails("denomination", denom)
	}
	return nil
}

// FeeRule returns the rule of a configured pair, including its flags.
func (c *Config) FeeRule(ctx context.Context, collection, denom chain.Address) (market.FeeRule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rules, ok := c.collections.Get(collection)
	if !ok {
		return market.FeeRule{}, ErrUnknownPair.WithDetails("collection", collection)
	}
	rule, ok := rules.quotes.Get(denom)
	if !ok {
		return market.FeeRule{}, ErrUnknownPair.WithDetails("denomination", denom)
	}
	rule = rule.Clone()
	rule.Enabled = rules.enabled
	return rule, nil
}

// MaxRoyaltyBp is the largest royalty total a new asset of collection may
// carry and still settle in every pair of the collection that pays
// royalties: the least of each such pair's registry cap and 10000 bp minus
// the pair's fees. Collections without such pairs are not limited.
func (c *Config) MaxRoyaltyBp(ctx context.Context, collection chain.Address) (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	limit := uint64(chain.BasisPointsDenominator)
	rules, ok := c.collections.Get(collection)
	if !ok {
		return uint32(limit), nil
	}
	rules.quotes.Range(func(_ chain.Address, rule market.FeeRule) bool {
		if !rule.PaysRoyalties() {
			return true
		}
		room := uint64(0)
		if fee := rule.FeeBp(); fee < chain.BasisPointsDenominator {
			room = chain.BasisPointsDenominator - fee
		}
		if provider, ok := c.providers.Lookup(rule.RoyaltyRegistry); ok {
			if capBp, err := provider.MaxRoyaltyBp(ctx, collection); err == nil {
				room = min(room, uint64(capBp))
			}
		}
		limit = min(limit, room)
		return true
	})
	return uint32(limit), nil
}

// Quotes lists the configured denominations of collection in order.
func (c *Config) Quotes(ctx context.Context, collection chain.Address) []chain.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rules, ok := c.collections.Get(collection)
	if !ok {
		return []chain.Address{}
	}
	return rules.quotes.Keys()
}

// Collections lists configured collections in order.
func (c *Config) Collections(ctx context.Context) []chain.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collections.Keys()
}
