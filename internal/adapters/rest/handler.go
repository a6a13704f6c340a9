package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hammerdrop-auction-service/internal/domain/bid"
	"hammerdrop-auction-service/internal/domain/listing"
	"hammerdrop-auction-service/internal/domain/money"
	"hammerdrop-auction-service/internal/domain/shared"
	"hammerdrop-auction-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// UserHeader carries the caller's user ID. Authentication happens upstream.
const UserHeader = "X-User-ID"

// Handler exposes the listing, bid and catalog services over HTTP
type Handler struct {
	listingService inbound.ListingService
	bidService     inbound.BidService
	catalogService inbound.CatalogService
	logger         zerolog.Logger
}

type HandlerParams struct {
	ListingService inbound.ListingService
	BidService     inbound.BidService
	CatalogService inbound.CatalogService
	Logger         zerolog.Logger
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		listingService: params.ListingService,
		bidService:     params.BidService,
		catalogService: params.CatalogService,
		logger:         params.Logger.With().Str("component", "rest_handler").Logger(),
	}
}

// Register mounts the API under /api/v1
func (h *Handler) Register(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(h.loggingMiddleware)

	// "ended" must be matched before the {id} routes
	api.HandleFunc("/listings/ended", h.listEnded).Methods(http.MethodGet)
	api.HandleFunc("/listings", h.listActive).Methods(http.MethodGet)
	api.HandleFunc("/listings", h.createListing).Methods(http.MethodPost)
	api.HandleFunc("/listings/{id}", h.getListing).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}", h.updateListing).Methods(http.MethodPatch)
	api.HandleFunc("/listings/{id}", h.deleteListing).Methods(http.MethodDelete)
	api.HandleFunc("/listings/{id}/relist", h.relist).Methods(http.MethodPost)
	api.HandleFunc("/listings/{id}/end-time", h.updateEndTime).Methods(http.MethodPut)
	api.HandleFunc("/listings/{id}/bids", h.getBids).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}/bids", h.placeBid).Methods(http.MethodPost)
	api.HandleFunc("/bids/{id}", h.voidBid).Methods(http.MethodDelete)
}

type createListingRequest struct {
	Type         string           `json:"type"` // "auction" or "fixed_price"
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	BrandName    string           `json:"brand_name"`
	Price        *decimal.Decimal `json:"price"`
	BasePrice    *decimal.Decimal `json:"base_price"`
	ReservePrice *decimal.Decimal `json:"reserve_price"`
	DurationDays int              `json:"duration_days"`
}

type updateListingRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	BrandName    *string          `json:"brand_name"`
	Price        *decimal.Decimal `json:"price"`
	BasePrice    *decimal.Decimal `json:"base_price"`
	ReservePrice *decimal.Decimal `json:"reserve_price"`
}

type relistRequest struct {
	DurationDays float64 `json:"duration_days"`
}

type endTimeRequest struct {
	EndTime string `json:"end_time"`
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type listingResponse struct {
	ID           uuid.UUID  `json:"id"`
	SellerID     uuid.UUID  `json:"seller_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	BrandName    string     `json:"brand_name,omitempty"`
	IsAuction    bool       `json:"is_auction"`
	Price        string     `json:"price,omitempty"`
	BasePrice    string     `json:"base_price,omitempty"`
	HasReserve   bool       `json:"has_reserve,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Status       string     `json:"status,omitempty"`
	CurrentPrice string     `json:"current_price,omitempty"`
	BidCount     *int       `json:"bid_count,omitempty"`
	WinningBid   *bidView   `json:"winning_bid,omitempty"`
}

type bidView struct {
	ID        uuid.UUID  `json:"id"`
	ListingID uuid.UUID  `json:"listing_id"`
	BidderID  uuid.UUID  `json:"bidder_id"`
	Amount    string     `json:"amount"`
	Status    bid.Status `json:"status"`
	PlacedAt  time.Time  `json:"placed_at"`
}

func newListingResponse(l *listing.Listing) listingResponse {
	resp := listingResponse{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		Description: l.Description,
		BrandName:   l.BrandName,
		IsAuction:   l.IsAuction,
		CreatedAt:   l.CreatedAt,
	}
	if l.IsAuction {
		resp.BasePrice = money.Format(l.BasePrice)
		resp.HasReserve = l.ReservePrice != nil
		resp.EndTime = l.AuctionEndTime
	} else {
		resp.Price = money.Format(l.Price)
	}
	return resp
}

func newDetailsResponse(details *inbound.ListingDetails) listingResponse {
	resp := newListingResponse(details.Listing)
	resp.Status = string(details.Status)
	resp.CurrentPrice = money.Format(details.CurrentPrice)
	count := details.BidCount
	resp.BidCount = &count
	if details.WinningBid != nil {
		view := newBidView(details.WinningBid)
		resp.WinningBid = &view
	}
	return resp
}

func newBidView(b *bid.Bid) bidView {
	return bidView{
		ID:        b.ID,
		ListingID: b.ListingID,
		BidderID:  b.BidderID,
		Amount:    money.Format(b.Amount),
		Status:    b.Status,
		PlacedAt:  b.PlacedAt,
	}
}

func listingResponses(listings []*listing.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, newListingResponse(l))
	}
	return out
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.catalogService.ActiveListings)
}

func (h *Handler) listEnded(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.catalogService.EndedAuctions)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context) ([]*listing.Listing, error)) {
	listings, err := fetch(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"listings": listingResponses(listings),
		"count":    len(listings),
	})
}

func (h *Handler) createListing(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createListingRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		created *listing.Listing
		err     error
	)
	switch req.Type {
	case "auction", "":
		var basePrice int64
		var reserve *int64
		if basePrice, err = price(req.BasePrice); err != nil {
			break
		}
		if req.ReservePrice != nil {
			var v int64
			if v, err = price(req.ReservePrice); err != nil {
				break
			}
			reserve = &v
		}
		created, err = h.listingService.CreateAuction(r.Context(), inbound.CreateAuctionRequest{
			SellerID:     sellerID,
			Title:        req.Title,
			Description:  req.Description,
			BrandName:    req.BrandName,
			BasePrice:    basePrice,
			ReservePrice: reserve,
			DurationDays: req.DurationDays,
		})
	case "fixed_price":
		if req.Price == nil {
			err = shared.ErrInvalidPrice
			break
		}
		var p int64
		if p, err = price(req.Price); err != nil {
			break
		}
		created, err = h.listingService.CreateFixedPriceListing(r.Context(), inbound.CreateFixedPriceRequest{
			SellerID:    sellerID,
			Title:       req.Title,
			Description: req.Description,
			BrandName:   req.BrandName,
			Price:       p,
		})
	default:
		respondError(w, http.StatusBadRequest, "type must be auction or fixed_price")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, newListingResponse(created))
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	details, err := h.catalogService.ListingDetails(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newDetailsResponse(details))
}

func (h *Handler) updateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	var body updateListingRequest
	if !decode(w, r, &body) {
		return
	}

	req := inbound.UpdateDetailsRequest{
		ListingID:   id,
		Title:       body.Title,
		Description: body.Description,
		BrandName:   body.BrandName,
	}
	for _, field := range []struct {
		in  *decimal.Decimal
		out **int64
	}{
		{body.Price, &req.Price},
		{body.BasePrice, &req.BasePrice},
		{body.ReservePrice, &req.ReservePrice},
	} {
		if field.in == nil {
			continue
		}
		v, err := price(field.in)
		if err != nil {
			h.respondServiceError(w, r, err)
			return
		}
		*field.out = &v
	}

	updated, err := h.listingService.UpdateDetails(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newListingResponse(updated))
}

func (h *Handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	if err := h.listingService.DeleteListing(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) relist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	var body relistRequest
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}
	duration, err := listing.DurationFromDays(body.DurationDays)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	relisted, err := h.listingService.Relist(r.Context(), inbound.RelistRequest{
		ListingID: id,
		Duration:  duration,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newListingResponse(relisted))
}

func (h *Handler) updateEndTime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ownedListing(w, r)
	if !ok {
		return
	}

	var body endTimeRequest
	if !decode(w, r, &body) {
		return
	}
	endTime, err := time.Parse(time.RFC3339, body.EndTime)
	if err != nil {
		h.respondServiceError(w, r, shared.ErrInvalidTimeFormat)
		return
	}

	updated, err := h.listingService.UpdateEndTime(r.Context(), id, endTime)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newListingResponse(updated))
}

func (h *Handler) getBids(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	bids, err := h.bidService.GetBids(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	views := make([]bidView, 0, len(bids))
	for _, b := range bids {
		views = append(views, newBidView(b))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bids":  views,
		"count": len(views),
	})
}

func (h *Handler) placeBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := h.caller(w, r)
	if !ok {
		return
	}
	listingID, ok := pathID(w, r)
	if !ok {
		return
	}

	var body placeBidRequest
	if !decode(w, r, &body) {
		return
	}
	amount, err := money.FromDecimal(body.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	placed, err := h.bidService.PlaceBid(r.Context(), inbound.PlaceBidRequest{
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newBidView(placed))
}

func (h *Handler) voidBid(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	target, err := h.bidService.GetBid(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !h.isSeller(w, r, callerID, target.ListingID) {
		return
	}

	winning, err := h.bidService.VoidBid(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{"voided_bid_id": id}
	if winning != nil {
		resp["winning_bid"] = newBidView(winning)
	}
	respondJSON(w, http.StatusOK, resp)
}

// caller reads the user ID header, answering 400 when it is missing or malformed
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(UserHeader)
	if raw == "" {
		respondError(w, http.StatusBadRequest, UserHeader+" header is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+UserHeader+" header")
		return uuid.Nil, false
	}
	return id, true
}

// ownedListing resolves the path listing and checks that the caller sells it
func (h *Handler) ownedListing(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	callerID, ok := h.caller(w, r)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return uuid.Nil, false
	}

	if !h.isSeller(w, r, callerID, id) {
		return uuid.Nil, false
	}
	return id, true
}

// isSeller answers with an error unless callerID sells the listing
func (h *Handler) isSeller(w http.ResponseWriter, r *http.Request, callerID, listingID uuid.UUID) bool {
	l, err := h.listingService.GetListing(r.Context(), listingID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return false
	}
	if l.SellerID != callerID {
		h.respondServiceError(w, r, shared.ErrNotSeller)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, shared.ErrInvalidRequest.Error())
		return false
	}
	return true
}

// price converts a major-unit price; unlike bid amounts, zero is allowed
func price(d *decimal.Decimal) (int64, error) {
	if d == nil || d.IsZero() {
		return 0, nil
	}
	if d.IsNegative() {
		return 0, shared.ErrInvalidPrice
	}
	return money.FromDecimal(*d)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrListingNotFound), errors.Is(err, shared.ErrBidNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrNotSeller):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrAuctionEnded),
		errors.Is(err, shared.ErrNotEnded),
		errors.Is(err, shared.ErrNotOpen),
		errors.Is(err, shared.ErrNotAnAuction),
		errors.Is(err, shared.ErrAlreadyWinning),
		errors.Is(err, shared.ErrLedgerConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrBidTooLow),
		errors.Is(err, shared.ErrInvalidAmount),
		errors.Is(err, shared.ErrInvalidPrice),
		errors.Is(err, shared.ErrInvalidDuration),
		errors.Is(err, shared.ErrInvalidListing),
		errors.Is(err, shared.ErrInvalidTimeFormat):
		return http.StatusUnprocessableEntity
	case shared.IsRejection(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
