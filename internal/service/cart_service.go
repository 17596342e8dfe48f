package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/repository"
	"golang.org/x/sync/singleflight"
)

// EventPublisher receives committed cart mutations. Publishing never fails
// the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.CartEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.CartEvent) {}

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	events   EventPublisher
	log      *slog.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	cartCache cache.CartCache,
	events EventPublisher,
	log *slog.Logger,
) *CartService {
	if events == nil {
		events = noopPublisher{}
	}
	return &CartService{
		carts:    carts,
		products: products,
		cache:    cartCache,
		events:   events,
		log:      log,
	}
}

// GetCart returns the owner's cart lines joined with live catalog data.
// Lines whose product no longer resolves are left out.
func (s *CartService) GetCart(ctx context.Context, owner domain.Owner) ([]domain.CartView, error) {
	contents, err := s.loadContents(ctx, owner)
	if err != nil {
		return nil, s.fail(ctx, "get cart", err)
	}
	if contents == nil || len(contents.Items) == 0 {
		return []domain.CartView{}, nil
	}

	ids := make([]string, 0, len(contents.Items))
	for _, it := range contents.Items {
		ids = append(ids, it.ProductID)
	}
	details, err := s.products.GetProductDetails(ctx, ids)
	if err != nil {
		return nil, s.fail(ctx, "get cart", err)
	}

	views := make([]domain.CartView, 0, len(contents.Items))
	for _, it := range contents.Items {
		d, ok := details[it.ProductID]
		if !ok {
			s.log.DebugContext(ctx, "skipping cart line without product", "item_id", it.ID, "product_id", it.ProductID)
			continue
		}
		views = append(views, domain.NewCartView(it, d))
	}
	return views, nil
}

func (s *CartService) loadContents(ctx context.Context, owner domain.Owner) (*domain.CartContents, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(owner.Key(), func() (interface{}, error) {
		contents, version, err := s.cache.Get(ctx, owner)
		if err == nil {
			return contents, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", "owner", owner.Key(), "error", err)
		}

		contents, err = s.carts.GetCart(ctx, owner)
		if errors.Is(err, repository.ErrCartNotFound) {
			return (*domain.CartContents)(nil), nil
		}
		if err != nil {
			return nil, err
		}

		if err := s.cache.Set(ctx, owner, version, contents); err != nil && !errors.Is(err, cache.ErrStale) {
			s.log.WarnContext(ctx, "cache set error", "owner", owner.Key(), "error", err)
		}
		return contents, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CartContents), nil
}

// AddItem adds quantity units of a product, creating the cart on first use.
// Only the product id and variant selections of the input are trusted.
func (s *CartService) AddItem(ctx context.Context, owner domain.Owner, product domain.ProductData, quantity int) error {
	if err := domain.CheckQuantity(quantity); err != nil {
		return err
	}

	live, err := s.products.GetProduct(ctx, product.ProductID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return domain.NewValidationError("product not found")
	}
	if err != nil {
		return s.fail(ctx, "add item", err)
	}
	if err := domain.CheckAvailability(live, quantity); err != nil {
		return err
	}

	item, err := s.carts.AddItem(ctx, owner, live.ID, quantity, product.VariantSelections)
	if err != nil {
		return s.fail(ctx, "add item", err)
	}

	s.invalidateCache(owner)
	s.events.Publish(ctx, domain.CartEvent{
		Type:  domain.EventCartItemAdded,
		Owner: owner,
		Payload: domain.CartItemPayload{
			OwnerKind: string(owner.Kind),
			OwnerID:   owner.ID,
			ProductID: item.ProductID,
			ItemID:    item.ID,
			Quantity:  item.Quantity,
		},
	})
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, owner domain.Owner, itemID string) error {
	if err := s.carts.RemoveItem(ctx, owner, itemID); err != nil {
		return s.fail(ctx, "remove item", err)
	}

	s.invalidateCache(owner)
	s.events.Publish(ctx, domain.CartEvent{
		Type:  domain.EventCartItemRemoved,
		Owner: owner,
		Payload: domain.CartItemPayload{
			OwnerKind: string(owner.Kind),
			OwnerID:   owner.ID,
			ItemID:    itemID,
		},
	})
	return nil
}

// UpdateQuantity sets an absolute quantity. Zero or less removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, owner domain.Owner, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, owner, itemID)
	}

	if err := s.carts.UpdateItemQuantity(ctx, owner, itemID, quantity); err != nil {
		return s.fail(ctx, "update quantity", err)
	}

	s.invalidateCache(owner)
	s.events.Publish(ctx, domain.CartEvent{
		Type:  domain.EventCartItemQuantityChanged,
		Owner: owner,
		Payload: domain.CartItemPayload{
			OwnerKind: string(owner.Kind),
			OwnerID:   owner.ID,
			ItemID:    itemID,
			Quantity:  quantity,
		},
	})
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, owner domain.Owner) error {
	if err := s.carts.ClearCart(ctx, owner); err != nil {
		return s.fail(ctx, "clear cart", err)
	}

	s.invalidateCache(owner)
	s.events.Publish(ctx, domain.CartEvent{
		Type:    domain.EventCartCleared,
		Owner:   owner,
		Payload: domain.CartClearedPayload{OwnerKind: string(owner.Kind), OwnerID: owner.ID},
	})
	return nil
}

// ClaimGuestCart moves a guest's lines into the user's cart after sign-in.
// Claiming an absent or already claimed guest cart is a no-op.
func (s *CartService) ClaimGuestCart(ctx context.Context, guest, user domain.Owner) error {
	if guest.IsZero() || user.IsZero() || guest == user {
		return nil
	}

	claimed, err := s.carts.ClaimGuestCart(ctx, guest, user)
	if err != nil {
		return s.fail(ctx, "claim guest cart", err)
	}
	if !claimed {
		return nil
	}

	s.invalidateCache(guest, user)
	s.events.Publish(ctx, domain.CartEvent{
		Type:    domain.EventGuestCartClaimed,
		Owner:   user,
		Payload: domain.GuestCartClaimedPayload{SessionID: guest.ID, UserID: user.ID},
	})
	return nil
}

// fail passes policy errors through and turns everything else into a DatabaseError.
func (s *CartService) fail(ctx context.Context, op string, err error) error {
	if domain.IsValidation(err) || domain.IsNotFound(err) {
		return err
	}
	s.log.ErrorContext(ctx, "cart store failure", "op", op, "error", err)
	return &domain.DatabaseError{Op: op, Err: err}
}

func (s *CartService) invalidateCache(owners ...domain.Owner) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, owners...); err != nil {
		s.log.Warn("cache invalidate error", "error", err)
	}
}
