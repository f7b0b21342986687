package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	httpSwagger "github.com/swaggo/http-swagger"

	"bazaar.com/internal/application/usecase"
	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
	_ "bazaar.com/internal/infrastructure/http/docs"
	"bazaar.com/internal/infrastructure/logger"
)

const maxBodyBytes = 1 << 20

// Handler holds HTTP handlers and their dependencies
type Handler struct {
	market        *usecase.Marketplace
	listEvents    *usecase.ListEventsUseCase
	authenticator port.RequestAuthenticator
	stream        http.Handler
	logger        logger.Logger
}

// NewHandler creates a new HTTP handler. A nil stream disables /events/stream.
func NewHandler(
	market *usecase.Marketplace,
	listEvents *usecase.ListEventsUseCase,
	authenticator port.RequestAuthenticator,
	stream http.Handler,
	logger logger.Logger,
) *Handler {
	return &Handler{
		market:        market,
		listEvents:    listEvents,
		authenticator: authenticator,
		stream:        stream,
		logger:        logger,
	}
}

type listItemBody struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	Price    string `json:"price"`
}

type priceBody struct {
	Price string `json:"price"`
}

type paymentBody struct {
	Payment string `json:"payment"`
}

type purchaseResponse struct {
	entity.AssetKey
	Seller string          `json:"seller"`
	Buyer  string          `json:"buyer"`
	Price  decimal.Decimal `json:"price"`
	Paid   decimal.Decimal `json:"paid"`
}

type withdrawResponse struct {
	Seller    string          `json:"seller"`
	Withdrawn decimal.Decimal `json:"withdrawn"`
}

// authenticate reads the body and verifies the caller signature. On failure the
// error response has already been written.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	ctx := r.Context()
	requestLogger := requestLoggerFrom(ctx, h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		requestLogger.LogError(ctx, "Failed to read request body", err)
		WriteJSONError(w, http.StatusBadRequest, "InvalidRequest", "failed to read request body")
		return "", nil, false
	}

	caller, err := h.authenticator.Authenticate(ctx, r, body)
	if err != nil {
		requestLogger.LogWarning(ctx, "Request authentication failed", "reason", err.Error())
		writeError(w, err)
		return "", nil, false
	}
	return caller, body, true
}

func decodeBody(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func assetFromPath(r *http.Request) entity.AssetKey {
	return entity.AssetKey{
		Contract: r.PathValue("contract"),
		TokenID:  r.PathValue("tokenId"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleListItem handles POST /listings
func (h *Handler) HandleListItem(w http.ResponseWriter, r *http.Request) {
	caller, body, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var in listItemBody
	if err := decodeBody(body, &in); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	price, err := entity.ParseAmount(in.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	key := entity.AssetKey{Contract: in.Contract, TokenID: in.TokenID}
	req := entity.ListItemRequest{Caller: caller, Asset: key, Price: price}
	if err := h.market.ListItem(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	h.writeListing(w, r, http.StatusCreated, key)
}

// HandleUpdateListing handles PUT /listings/{contract}/{tokenId}
func (h *Handler) HandleUpdateListing(w http.ResponseWriter, r *http.Request) {
	caller, body, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var in priceBody
	if err := decodeBody(body, &in); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	price, err := entity.ParseAmount(in.Price)
	if err != nil {
		writeError(w, err)
		return
	}

	key := assetFromPath(r)
	req := entity.UpdateListingRequest{Caller: caller, Asset: key, NewPrice: price}
	if err := h.market.UpdateListing(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	h.writeListing(w, r, http.StatusOK, key)
}

// HandleCancelListing handles DELETE /listings/{contract}/{tokenId}
func (h *Handler) HandleCancelListing(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	key := assetFromPath(r)
	if err := h.market.CancelListing(r.Context(), entity.CancelListingRequest{Caller: caller, Asset: key}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// HandleBuyItem handles POST /listings/{contract}/{tokenId}/buy
func (h *Handler) HandleBuyItem(w http.ResponseWriter, r *http.Request) {
	caller, body, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var in paymentBody
	if err := decodeBody(body, &in); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	payment, err := entity.ParseAmount(in.Payment)
	if err != nil {
		writeError(w, err)
		return
	}

	key := assetFromPath(r)
	sold, err := h.market.BuyItem(r.Context(), entity.BuyItemRequest{Caller: caller, Asset: key, Payment: payment})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchaseResponse{
		AssetKey: key,
		Seller:   sold.Seller,
		Buyer:    caller,
		Price:    sold.Price,
		Paid:     payment,
	})
}

// HandleGetListing handles GET /listings/{contract}/{tokenId}
func (h *Handler) HandleGetListing(w http.ResponseWriter, r *http.Request) {
	h.writeListing(w, r, http.StatusOK, assetFromPath(r))
}

func (h *Handler) writeListing(w http.ResponseWriter, r *http.Request, status int, key entity.AssetKey) {
	listing, err := h.market.GetListing(r.Context(), key)
	if err != nil {
		requestLoggerFrom(r.Context(), h.logger).LogError(r.Context(), "Failed to get listing", err, "asset", key.String())
		writeError(w, err)
		return
	}
	writeJSON(w, status, listing)
}

// HandleWithdrawProceeds handles POST /proceeds/withdraw
func (h *Handler) HandleWithdrawProceeds(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	amount, err := h.market.WithdrawProceeds(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{Seller: caller, Withdrawn: amount})
}

// HandleGetProceeds handles GET /proceeds/{seller}
func (h *Handler) HandleGetProceeds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	seller := r.PathValue("seller")

	proceeds, err := h.market.GetProceeds(ctx, seller)
	if err != nil {
		requestLoggerFrom(ctx, h.logger).LogError(ctx, "Failed to get proceeds", err, "seller", seller)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proceeds)
}

// HandleListEvents handles GET /events?after=&limit=
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var req usecase.ListEventsRequest
	if raw := query.Get("after"); raw != "" {
		after, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "InvalidRequest", "after must be an integer")
			return
		}
		req.After = after
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
			return
		}
		req.Limit = limit
	}

	page, err := h.listEvents.Execute(ctx, req)
	if err != nil {
		requestLoggerFrom(ctx, h.logger).LogError(ctx, "Failed to list events", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleHealth handles GET /healthz
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetupRoutes sets up all HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	wrap := func(next http.HandlerFunc) http.HandlerFunc {
		return RequestIDMiddleware(LoggingMiddleware(next, h.logger), h.logger)
	}

	mux.HandleFunc("POST /listings", wrap(h.HandleListItem))
	mux.HandleFunc("GET /listings/{contract}/{tokenId}", wrap(h.HandleGetListing))
	mux.HandleFunc("PUT /listings/{contract}/{tokenId}", wrap(h.HandleUpdateListing))
	mux.HandleFunc("DELETE /listings/{contract}/{tokenId}", wrap(h.HandleCancelListing))
	mux.HandleFunc("POST /listings/{contract}/{tokenId}/buy", wrap(h.HandleBuyItem))

	mux.HandleFunc("POST /proceeds/withdraw", wrap(h.HandleWithdrawProceeds))
	mux.HandleFunc("GET /proceeds/{seller}", wrap(h.HandleGetProceeds))

	mux.HandleFunc("GET /events", wrap(h.HandleListEvents))
	if h.stream != nil {
		mux.HandleFunc("GET /events/stream", wrap(h.stream.ServeHTTP))
	}

	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return mux
}
