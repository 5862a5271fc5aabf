package app

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/services/registry"
	"github.com/R3E-Network/nft_exchange/internal/app/services/royalty"
	"github.com/R3E-Network/nft_exchange/internal/app/services/tradeconfig"
	"github.com/R3E-Network/nft_exchange/internal/config"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

const (
	owner    chain.Address = "0xowner"
	operator chain.Address = "0xoperator"
	seller   chain.Address = "0xseller"
	buyer    chain.Address = "0xbuyer"
	fees     chain.Address = "0xfees"
	nft      chain.Address = "0xnft"
	exchange chain.Address = "0xexchange"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Royalty = config.RoyaltyConfig{
		Owner:              owner.String(),
		Address:            "0xroyalty",
		TotalRoyaltiesBp:   1000,
		AllowedCollections: []string{nft.String()},
	}
	cfg.Registry.Owner = owner.String()
	cfg.Registry.Address = nft.String()
	cfg.Registry.FeeCollector = fees.String()
	cfg.Registry.Operators = []string{operator.String()}
	cfg.Market = config.MarketConfig{Owner: owner.String(), Address: exchange.String()}
	cfg.TradeRules = []config.TradeRuleConfig{{
		Collection: nft.String(),
		Enabled:    true,
		Quotes: []config.QuoteConfig{{
			Denomination: config.NativeAlias,
			Enabled:      true,
			Fees:         []market.FeeEntry{{Recipient: fees, ShareBp: 250}},
		}},
	}}
	return cfg
}

func TestApplicationSettlesConfiguredMarket(t *testing.T) {
	ctx := context.Background()
	application, err := New(testConfig(), Stores{}, logger.NewDiscard())
	require.NoError(t, err)
	require.NoError(t, application.Start(ctx))
	defer application.Stop(ctx)

	assert.Empty(t, application.Services())
	assert.True(t, application.TradeConfig.IsEnabled(ctx, nft, chain.NativeCurrency))

	id, err := application.Registry.Mint(ctx, seller, "ipfs://art", nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, application.Registry.ConfirmNFT(ctx, operator, id))
	require.NoError(t, application.Registry.SetApprovalForAll(ctx, seller, exchange, true))

	price, _ := new(big.Int).SetString("1000000000000000000", 10)
	require.NoError(t, application.Market.ListAsset(ctx, seller, nft, id, chain.NativeCurrency, price, chain.ZeroAddress, false))
	require.NoError(t, application.Ledger.Credit(ctx, chain.NativeCurrency, buyer, price))
	require.NoError(t, application.Market.BuyFixedPrice(ctx, buyer, nft, id, chain.NativeCurrency, price, price, chain.ZeroAddress))

	assert.Equal(t, "25000000000000000", application.Ledger.BalanceOf(ctx, chain.NativeCurrency, fees).String())
	assert.Equal(t, "975000000000000000", application.Ledger.BalanceOf(ctx, chain.NativeCurrency, seller).String())
	holder, err := application.Registry.OwnerOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, buyer, holder)

	sold, err := application.Events.List(ctx, events.Filter{Type: events.AssetSold})
	require.NoError(t, err)
	require.Len(t, sold, 1)
	assert.Equal(t, id, sold[0].AssetID)
}

func TestRoyaltyCapsStayWithinPairFees(t *testing.T) {
	ctx := context.Background()
	const (
		artist  chain.Address = "0xartist"
		lenient chain.Address = "0xlenient"
	)
	cfg := testConfig()
	cfg.TradeRules[0].Quotes[0].Fees = []market.FeeEntry{{Recipient: fees, ShareBp: 9000}}
	cfg.TradeRules[0].Quotes[0].RoyaltyRegistry = cfg.Royalty.Address

	application, err := New(cfg, Stores{}, logger.NewDiscard())
	require.NoError(t, err)
	require.NoError(t, application.Start(ctx))
	defer application.Stop(ctx)

	err = application.Royalty.SetTotalRoyalties(ctx, owner, 5000)
	assert.ErrorIs(t, err, tradeconfig.ErrShareOverflow)
	assert.ErrorIs(t, application.Royalty.SetCollectionCap(ctx, owner, nft, 1001), tradeconfig.ErrShareOverflow)
	capBp, err := application.Royalty.MaxRoyaltyBp(ctx, nft)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), capBp)

	other := royalty.New(logger.NewDiscard())
	require.NoError(t, other.Initialize(ctx, owner, lenient, 5000))
	require.NoError(t, other.SetAllowedCollection(ctx, owner, nft, true))
	require.NoError(t, application.Registry.SetRoyaltyProvider(ctx, owner, other))

	_, err = application.Registry.Mint(ctx, seller, "ipfs://art", []chain.Address{artist}, []uint32{5000}, nil)
	assert.ErrorIs(t, err, registry.ErrRoyaltyOverCap)

	id, err := application.Registry.Mint(ctx, seller, "ipfs://art", []chain.Address{artist}, []uint32{1000}, nil)
	require.NoError(t, err)
	require.NoError(t, application.Registry.ConfirmNFT(ctx, operator, id))
	require.NoError(t, application.Registry.SetApprovalForAll(ctx, seller, exchange, true))

	price := big.NewInt(10_000)
	require.NoError(t, application.Market.ListAsset(ctx, seller, nft, id, chain.NativeCurrency, price, chain.ZeroAddress, false))
	require.NoError(t, application.Ledger.Credit(ctx, chain.NativeCurrency, buyer, price))
	require.NoError(t, application.Market.BuyFixedPrice(ctx, buyer, nft, id, chain.NativeCurrency, price, price, chain.ZeroAddress))
	assert.Equal(t, "9000", application.Ledger.BalanceOf(ctx, chain.NativeCurrency, fees).String())
	assert.Equal(t, "1000", application.Ledger.BalanceOf(ctx, chain.NativeCurrency, artist).String())
	assert.Equal(t, "0", application.Ledger.BalanceOf(ctx, chain.NativeCurrency, seller).String())
}

func TestBootstrapRunsOnce(t *testing.T) {
	ctx := context.Background()
	application, err := New(testConfig(), Stores{}, logger.NewDiscard())
	require.NoError(t, err)
	require.NoError(t, application.Bootstrap(ctx))
	require.NoError(t, application.Bootstrap(ctx))
	assert.Equal(t, []chain.Address{nft}, application.Registries.Collections())
}

func TestBootstrapReportsInvalidTradeRule(t *testing.T) {
	cfg := testConfig()
	cfg.TradeRules[0].Quotes[0].RoyaltyRegistry = "0xmissing"

	application, err := New(cfg, Stores{}, logger.NewDiscard())
	require.NoError(t, err)
	assert.Error(t, application.Start(context.Background()))
}

func TestDefaultConfigStartsEmpty(t *testing.T) {
	ctx := context.Background()
	application, err := New(nil, Stores{}, logger.NewDiscard())
	require.NoError(t, err)
	require.NoError(t, application.Start(ctx))
	defer application.Stop(ctx)
	assert.Empty(t, application.Registries.Collections())
}
