package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockCartRepository struct {
	m        sync.RWMutex
	contents map[domain.Owner]*domain.CartContents
	err      error

	getCalls    int
	added       []addCall
	removed     []string
	updated     map[string]int
	cleared     []domain.Owner
	claimed     [][2]domain.Owner
	noGuestCart bool
	sweptBefore time.Time
}

type addCall struct {
	owner     domain.Owner
	productID string
	quantity  int
	variants  domain.VariantSelections
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{
		contents: map[domain.Owner]*domain.CartContents{},
		updated:  map[string]int{},
	}
}

func (m *mockCartRepository) GetCart(_ context.Context, owner domain.Owner) (*domain.CartContents, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.contents[owner]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return c, nil
}

func (m *mockCartRepository) AddItem(_ context.Context, owner domain.Owner, productID string, quantity int, variants domain.VariantSelections) (*domain.CartItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.added = append(m.added, addCall{owner, productID, quantity, variants})
	return &domain.CartItem{ID: "item-" + productID, ProductID: productID, Quantity: quantity}, nil
}

func (m *mockCartRepository) RemoveItem(_ context.Context, _ domain.Owner, itemID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, itemID)
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(_ context.Context, _ domain.Owner, itemID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.updated[itemID] = quantity
	return nil
}

func (m *mockCartRepository) ClearCart(_ context.Context, owner domain.Owner) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, owner)
	return nil
}

func (m *mockCartRepository) ClaimGuestCart(_ context.Context, guest, user domain.Owner) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.claimed = append(m.claimed, [2]domain.Owner{guest, user})
	return !m.noGuestCart, nil
}

func (m *mockCartRepository) DeleteInactiveSessionCarts(_ context.Context, before time.Time) ([]domain.Owner, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.sweptBefore = before
	return nil, m.err
}

type mockProductRepository struct {
	m        sync.RWMutex
	products map[string]domain.ProductDetails
	err      error
}

func newMockProductRepository(products ...domain.ProductDetails) *mockProductRepository {
	m := &mockProductRepository{products: map[string]domain.ProductDetails{}}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	product := p.Product
	return &product, nil
}

func (m *mockProductRepository) GetProductDetails(_ context.Context, ids []string) (map[string]domain.ProductDetails, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := map[string]domain.ProductDetails{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type mockCache struct {
	m           sync.RWMutex
	entries     map[domain.Owner]*domain.CartContents
	err         error
	sets        int
	invalidated []domain.Owner
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[domain.Owner]*domain.CartContents{}}
}

func (m *mockCache) Get(_ context.Context, owner domain.Owner) (*domain.CartContents, int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	c, ok := m.entries[owner]
	if !ok {
		return nil, 0, cache.ErrCacheMiss
	}
	return c, 0, nil
}

func (m *mockCache) Set(_ context.Context, owner domain.Owner, _ int64, contents *domain.CartContents) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.sets++
	if m.err != nil {
		return m.err
	}
	m.entries[owner] = contents
	return nil
}

func (m *mockCache) Delete(_ context.Context, owners ...domain.Owner) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, o := range owners {
		delete(m.entries, o)
	}
	m.invalidated = append(m.invalidated, owners...)
	return m.err
}

type recordingPublisher struct {
	m      sync.Mutex
	events []domain.CartEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.CartEvent) {
	p.m.Lock()
	defer p.m.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.m.Lock()
	defer p.m.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
