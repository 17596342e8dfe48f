package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetCart(ctx context.Context, owner domain.Owner) ([]domain.CartView, error)
	AddItem(ctx context.Context, owner domain.Owner, product domain.ProductData, quantity int) error
	RemoveItem(ctx context.Context, owner domain.Owner, itemID string) error
	UpdateQuantity(ctx context.Context, owner domain.Owner, itemID string, quantity int) error
	ClearCart(ctx context.Context, owner domain.Owner) error
	ClaimGuestCart(ctx context.Context, guest, user domain.Owner) error
	ValidateCart(ctx context.Context, items []domain.CartView) (domain.ValidationResult, error)
}

type CartHandler struct {
	svc     CartService
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(svc CartService, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		svc:     svc,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	Product  domain.ProductData `json:"product"`
	Quantity int                `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type ClaimRequestDTO struct {
	GuestID string `json:"guestId"`
}

type ValidateRequestDTO struct {
	Items []domain.CartView `json:"items"`
}

type CartResponse struct {
	Items []domain.CartView `json:"items"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := requestOwner(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing cart owner")
		return
	}

	h.respondCart(ctx, w, owner, http.StatusOK)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := requestOwner(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing cart owner")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Product.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product.productId is required")
		return
	}

	if err := h.svc.AddItem(ctx, owner, req.Product, req.Quantity); err != nil {
		h.respondServiceError(ctx, w, err)
		return
	}

	h.respondCart(ctx, w, owner, http.StatusCreated)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := requestOwner(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing cart owner")
		return
	}

	itemID := chi.URLParam(r, "item_id")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	if err := h.svc.UpdateQuantity(ctx, owner, itemID, *req.Quantity); err != nil {
		h.respondServiceError(ctx, w, err)
		return
	}

	h.respondCart(ctx, w, owner, http.StatusOK)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := requestOwner(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing cart owner")
		return
	}

	if err := h.svc.RemoveItem(ctx, owner, chi.URLParam(r, "item_id")); err != nil {
		h.respondServiceError(ctx, w, err)
		return
	}

	h.respondCart(ctx, w, owner, http.StatusOK)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, ok := requestOwner(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing cart owner")
		return
	}

	if err := h.svc.ClearCart(ctx, owner); err != nil {
		h.respondServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Items: []domain.CartView{}})
}

// ClaimGuestCart merges the guest cart into the authenticated user's cart.
// The guest comes from the session header, or from the body when the client
// no longer sends the header after login.
func (h *CartHandler) ClaimGuestCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, ok := userOwnerFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "claiming a cart requires a signed-in user")
		return
	}

	guest, ok := sessionOwnerFromContext(r.Context())
	if !ok {
		var req ClaimRequestDTO
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
				return
			}
		}
		if strings.TrimSpace(req.GuestID) == "" {
			respondError(w, http.StatusBadRequest, "validation_failed", "guest session is required")
			return
		}
		guest = domain.SessionOwner(strings.TrimSpace(req.GuestID))
	}

	if err := h.svc.ClaimGuestCart(ctx, guest, user); err != nil {
		h.respondServiceError(ctx, w, err)
		return
	}

	h.respondCart(ctx, w, user, http.StatusOK)
}

func (h *CartHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ValidateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := h.svc.ValidateCart(ctx, req.Items)
	if err != nil {
		h.respondServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, owner domain.Owner, status int) {
	items, err := h.svc.GetCart(ctx, owner)
	if err != nil {
		h.respondServiceError(ctx, w, err)
		return
	}
	if items == nil {
		items = []domain.CartView{}
	}
	respondJSON(w, status, CartResponse{Items: items})
}

func (h *CartHandler) respondServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var notFound *domain.NotFoundError

	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, "validation_failed", validation.Message)
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		h.log.ErrorContext(ctx, "cart request failed", "error", err, "request_id", getRequestID(ctx))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
