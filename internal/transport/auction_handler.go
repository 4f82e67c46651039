package transport

import (
	"errors"
	"io"
	"net/http"

	"pianote/internal/middleware"
	"pianote/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateAuctionRequest represents the auction creation payload
type CreateAuctionRequest struct {
	Title         string  `json:"title" validate:"required,max=200"`
	Description   string  `json:"description" validate:"max=5000"`
	ImageURL      string  `json:"image_url" validate:"omitempty,url"`
	StartingPrice float64 `json:"starting_price" validate:"required,gt=0"`
	DurationHours int     `json:"duration_hours" validate:"omitempty,gte=1,lte=720"`
}

// PlaceBidRequest represents the bid payload
type PlaceBidRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// CloseAuctionRequest represents the close payload; an empty body accepts the highest bid
type CloseAuctionRequest struct {
	BidID string `json:"bid_id" validate:"omitempty,objectid"`
}

// PlaceBidResponse is returned for an accepted bid
type PlaceBidResponse struct {
	Success bool                `json:"success"`
	Bid     *service.BidSummary `json:"bid"`
}

// CloseAuctionResponse is returned once the auction is closed
type CloseAuctionResponse struct {
	Success     bool   `json:"success"`
	ChosenBidID string `json:"chosen_bid_id"`
}

// AuctionHandler handles HTTP requests for auctions and bids
type AuctionHandler struct {
	auctionService service.AuctionService
	biddingService service.BiddingService
	logger         *zap.Logger
}

// NewAuctionHandler creates a new AuctionHandler
func NewAuctionHandler(auctionService service.AuctionService, biddingService service.BiddingService, logger *zap.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		biddingService: biddingService,
		logger:         logger,
	}
}

// RegisterRoutes registers all auction routes. bidLimiter may be nil.
func (h *AuctionHandler) RegisterRoutes(
	r chi.Router,
	authMiddleware func(http.Handler) http.Handler,
	optionalAuthMiddleware func(http.Handler) http.Handler,
	bidLimiter func(http.Handler) http.Handler,
) {
	r.Route("/api/auctions", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuthMiddleware)
			r.Get("/", h.ListAuctions)
			r.Get("/{id}", h.GetAuction)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateAuction)
			r.Post("/{id}/close", h.CloseAuction)

			r.Group(func(r chi.Router) {
				if bidLimiter != nil {
					r.Use(bidLimiter)
				}
				r.Post("/{id}/bids", h.PlaceBid)
			})
		})
	})
}

// CreateAuction handles opening a new auction
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateAuctionRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Auction validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	auction, err := h.auctionService.Create(r.Context(), sellerID, service.CreateAuctionInput{
		Title:         req.Title,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		StartingPrice: req.StartingPrice,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, auction)
}

// ListAuctions handles the open auction listing
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.GetUserID(r.Context())

	listing, err := h.auctionService.List(r.Context(), viewerID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, listing)
}

// GetAuction handles the auction detail view
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := objectIDParam(w, r, service.ErrAuctionNotFound)
	if !ok {
		return
	}
	viewerID, _ := middleware.GetUserID(r.Context())

	detail, err := h.auctionService.Get(r.Context(), auctionID, viewerID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// PlaceBid handles a bid submission
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	auctionID, ok := objectIDParam(w, r, service.ErrAuctionNotFound)
	if !ok {
		return
	}

	var req PlaceBidRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Bid validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	summary, err := h.biddingService.PlaceBid(r.Context(), auctionID, bidderID, req.Amount)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, PlaceBidResponse{Success: true, Bid: summary})
}

// CloseAuction handles the seller choosing a winner
func (h *AuctionHandler) CloseAuction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	auctionID, ok := objectIDParam(w, r, service.ErrAuctionNotFound)
	if !ok {
		return
	}

	var req CloseAuctionRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("Close validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	winner, err := h.auctionService.Close(r.Context(), auctionID, actorID, req.BidID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CloseAuctionResponse{Success: true, ChosenBidID: winner.ID})
}

// respondWithServiceError maps service errors to HTTP statuses
func (h *AuctionHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrAuctionNotFound), errors.Is(err, service.ErrBidNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUnknownUser):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrAuctionClosed),
		errors.Is(err, service.ErrAuctionAlreadyClosed),
		errors.Is(err, service.ErrNoBids),
		errors.Is(err, service.ErrInvalidAuction):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrConcurrentModification):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Auction request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.RespondWithError(w, status, "internal server error")
		return
	}

	middleware.RespondWithError(w, status, err.Error())
}
