package httpapi

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/R3E-Network/nft_exchange/internal/app"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/internal/config"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

const (
	owner    chain.Address = "0xowner"
	operator chain.Address = "0xoperator"
	seller   chain.Address = "0xseller"
	nft      chain.Address = "0xnft"
	exchange chain.Address = "0xexchange"
)

func newApplication(t *testing.T) *app.Application {
	t.Helper()
	cfg := config.Default()
	cfg.Royalty = config.RoyaltyConfig{
		Owner:              owner.String(),
		Address:            "0xroyalty",
		TotalRoyaltiesBp:   1000,
		AllowedCollections: []string{nft.String()},
	}
	cfg.Registry.Owner = owner.String()
	cfg.Registry.Address = nft.String()
	cfg.Registry.Operators = []string{operator.String()}
	cfg.Market = config.MarketConfig{Owner: owner.String(), Address: exchange.String()}
	cfg.TradeRules = []config.TradeRuleConfig{{
		Collection: nft.String(),
		Enabled:    true,
		Quotes: []config.QuoteConfig{{
			Denomination:    config.NativeAlias,
			Enabled:         true,
			Fees:            []market.FeeEntry{{Recipient: "0xfees", ShareBp: 250}},
			RoyaltyRegistry: "0xroyalty",
		}},
	}}

	application, err := app.New(cfg, app.Stores{}, logger.NewDiscard())
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))
	t.Cleanup(func() { application.Stop(context.Background()) })
	return application
}

func listAsset(t *testing.T, application *app.Application) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := application.Registry.Mint(ctx, seller, "ipfs://art", []chain.Address{"0xartist"}, []uint32{500}, nil)
	require.NoError(t, err)
	require.NoError(t, application.Registry.ConfirmNFT(ctx, operator, id))
	require.NoError(t, application.Registry.SetApprovalForAll(ctx, seller, exchange, true))
	require.NoError(t, application.Market.ListAsset(ctx, seller, nft, id, chain.NativeCurrency, big.NewInt(10_000), chain.ZeroAddress, false))
	return id
}

func get(t *testing.T, h http.Handler, path string, out interface{}) int {
	t.Helper()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && resp.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), out))
	}
	return resp.Code
}

func TestHealthAndMetrics(t *testing.T) {
	h := NewHandler(newApplication(t), logger.NewDiscard())

	var health map[string]interface{}
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", &health))
	assert.Equal(t, "ok", health["status"])

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMarketSnapshots(t *testing.T) {
	application := newApplication(t)
	h := NewHandler(application, logger.NewDiscard())
	id := listAsset(t, application)

	var asks []market.Ask
	require.Equal(t, http.StatusOK, get(t, h, "/markets/0xnft/native/asks", &asks))
	require.Len(t, asks, 1)
	assert.Equal(t, id, asks[0].AssetID)
	assert.Equal(t, seller, asks[0].Seller)

	var bids []market.Bid
	require.Equal(t, http.StatusOK, get(t, h, "/markets/0xnft/native/assets/1/bids", &bids))
	assert.Empty(t, bids)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/markets/0xnft/native/assets/x/bids", nil))

	var asset map[string]interface{}
	require.Equal(t, http.StatusOK, get(t, h, "/collections/0xnft/assets/1", &asset))
	assert.Equal(t, "confirmed", asset["status"])
	assert.Contains(t, asset, "ask")
	assert.Equal(t, http.StatusNotFound, get(t, h, "/collections/0xnft/assets/99", nil))
}

func TestSettlementQuote(t *testing.T) {
	application := newApplication(t)
	h := NewHandler(application, logger.NewDiscard())
	listAsset(t, application)

	var plan market.Settlement
	require.Equal(t, http.StatusOK, get(t, h, "/markets/0xnft/native/assets/1/quote?price=10000", &plan))
	require.Len(t, plan.Payouts, 3)
	assert.Equal(t, "250", plan.Payouts[0].Amount.String())
	assert.Equal(t, "500", plan.Payouts[1].Amount.String())
	assert.Equal(t, "9250", plan.Payouts[2].Amount.String())
	assert.Equal(t, seller, plan.Payouts[2].Recipient)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/markets/0xnft/native/assets/1/quote?price=0", nil))
	assert.Equal(t, http.StatusConflict, get(t, h, "/markets/0xnft/0xunknown/assets/1/quote?price=10", nil))
}

func TestEventsEndpointFilters(t *testing.T) {
	application := newApplication(t)
	h := NewHandler(application, logger.NewDiscard())
	listAsset(t, application)

	var all []map[string]interface{}
	require.Equal(t, http.StatusOK, get(t, h, "/events?collection=0xnft", &all))
	assert.NotEmpty(t, all)

	var listed []map[string]interface{}
	require.Equal(t, http.StatusOK, get(t, h, "/events?type=market.listed&limit=1", &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "market.listed", listed[0]["type"])

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/events?limit=-1", nil))
}

func TestRateLimitPerClient(t *testing.T) {
	rl := newRateLimiter(1, 2, logger.NewDiscard())
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = addr
		resp := httptest.NewRecorder()
		h.ServeHTTP(resp, req)
		return resp.Code
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"))
}
