// Package httpapi exposes a read-only operational API over the exchange:
// health, metrics, the event journal, and snapshots of the order books.
package httpapi

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	app "github.com/R3E-Network/nft_exchange/internal/app"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/metrics"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the ops API.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	if ops := application.Config().Ops; ops.RateLimit > 0 {
		r.Use(newRateLimiter(ops.RateLimit, ops.Burst, log).Handler)
	}

	r.Get("/healthz", h.health)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/events", h.events)
	r.Get("/collections", h.collections)
	r.Get("/collections/{collection}/assets/{assetID}", h.asset)
	r.Route("/markets/{collection}/{denomination}", func(r chi.Router) {
		r.Get("/asks", h.asks)
		r.Get("/assets/{assetID}/bids", h.bids)
		r.Get("/assets/{assetID}/quote", h.quote)
	})
	r.Get("/bidders/{bidder}/bids", h.userBids)
	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"services": h.app.Services(),
	})
}

func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := events.Filter{
		Collection: chain.Address(q.Get("collection")),
		Type:       events.Type(q.Get("type")),
	}
	if raw := q.Get("asset_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid asset_id %q", raw))
			return
		}
		f.AssetID = id
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		f.Limit = limit
	}
	list, err := h.app.Events.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) collections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Registries.Collections())
}

func (h *handler) asset(w http.ResponseWriter, r *http.Request) {
	collection := chain.Address(chi.URLParam(r, "collection"))
	id, ok := assetParam(w, r)
	if !ok {
		return
	}
	reg, found := h.app.Registries.Lookup(collection)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("collection %s not registered", collection))
		return
	}
	status, exists := reg.Status(r.Context(), id)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("asset %d not found", id))
		return
	}
	body := map[string]interface{}{"id": id, "status": status.String()}
	if a, err := reg.Asset(r.Context(), id); err == nil {
		body["asset"] = a
	}
	if ask, err := h.app.Market.Ask(r.Context(), collection, id); err == nil {
		body["ask"] = ask
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) asks(w http.ResponseWriter, r *http.Request) {
	collection, denom := pairParams(r)
	if seller := r.URL.Query().Get("seller"); seller != "" {
		writeJSON(w, http.StatusOK, h.app.Market.UserAsks(r.Context(), collection, denom, chain.Address(seller)))
		return
	}
	writeJSON(w, http.StatusOK, h.app.Market.Asks(r.Context(), collection, denom))
}

func (h *handler) bids(w http.ResponseWriter, r *http.Request) {
	collection, denom := pairParams(r)
	id, ok := assetParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.app.Market.Bids(r.Context(), collection, denom, id))
}

// quote previews the settlement of an asset at a price.
func (h *handler) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collection, denom := pairParams(r)
	id, ok := assetParam(w, r)
	if !ok {
		return
	}
	price, ok := new(big.Int).SetString(r.URL.Query().Get("price"), 10)
	if !ok || price.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("price must be a positive integer"))
		return
	}
	reg, found := h.app.Registries.Lookup(collection)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Errorf("collection %s not registered", collection))
		return
	}
	royalties, err := reg.RoyaltiesOf(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rule, err := h.app.TradeConfig.FeeRule(ctx, collection, denom)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	seller := chain.Address(r.URL.Query().Get("seller"))
	if ask, err := h.app.Market.Ask(ctx, collection, id); err == nil {
		seller = ask.Seller
	}
	plan, err := market.PlanSettlement(price, rule, royalties, seller)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *handler) userBids(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Market.UserBids(r.Context(), chain.Address(chi.URLParam(r, "bidder"))))
}

func pairParams(r *http.Request) (chain.Address, chain.Address) {
	denom := chain.Address(chi.URLParam(r, "denomination"))
	if denom == "native" {
		denom = chain.NativeCurrency
	}
	return chain.Address(chi.URLParam(r, "collection")), denom
}

func assetParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "assetID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid asset id %q", raw))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// writeServiceError maps the error kind to a status code.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.KindOf(err) {
	case errors.KindValidation:
		status = http.StatusBadRequest
	case errors.KindPermission:
		status = http.StatusForbidden
	case errors.KindStateConflict:
		status = http.StatusConflict
	case errors.KindTransferFailure:
		status = http.StatusBadGateway
	}
	writeError(w, status, err)
}
