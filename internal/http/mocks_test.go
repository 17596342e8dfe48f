package http

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fjod/storefront-cart/internal/domain"
)

type call struct {
	Op       string
	Owner    domain.Owner
	Guest    domain.Owner
	ItemID   string
	Quantity int
}

type mockCartService struct {
	mu       sync.Mutex
	calls    []call
	items    []domain.CartView
	result   domain.ValidationResult
	err      error
	validate []domain.CartView
}

func (m *mockCartService) record(c call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.err
}

func (m *mockCartService) lastCall() call {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return call{}
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockCartService) GetCart(_ context.Context, owner domain.Owner) ([]domain.CartView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockCartService) AddItem(_ context.Context, owner domain.Owner, product domain.ProductData, quantity int) error {
	return m.record(call{Op: "add", Owner: owner, ItemID: product.ProductID, Quantity: quantity})
}

func (m *mockCartService) RemoveItem(_ context.Context, owner domain.Owner, itemID string) error {
	return m.record(call{Op: "remove", Owner: owner, ItemID: itemID})
}

func (m *mockCartService) UpdateQuantity(_ context.Context, owner domain.Owner, itemID string, quantity int) error {
	return m.record(call{Op: "update", Owner: owner, ItemID: itemID, Quantity: quantity})
}

func (m *mockCartService) ClearCart(_ context.Context, owner domain.Owner) error {
	return m.record(call{Op: "clear", Owner: owner})
}

func (m *mockCartService) ClaimGuestCart(_ context.Context, guest, user domain.Owner) error {
	return m.record(call{Op: "claim", Owner: user, Guest: guest})
}

func (m *mockCartService) ValidateCart(_ context.Context, items []domain.CartView) (domain.ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validate = items
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
