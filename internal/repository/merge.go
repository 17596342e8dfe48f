package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/jmoiron/sqlx"
)

// ClaimGuestCart folds the guest cart into the user's cart and deletes it.
// Quantities of products present in both carts are summed without a stock
// re-check; validation at checkout catches any overshoot. The result reports
// whether a guest cart existed. The guest cart row is locked first, so a
// concurrent claim of the same cart waits and then finds nothing to claim.
func (r *SQLRepository) ClaimGuestCart(ctx context.Context, guest, user domain.Owner) (bool, error) {
	if guest.IsZero() || guest == user {
		return false, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	guestCart, err := r.lockCart(ctx, tx, guest)
	if errors.Is(err, ErrCartNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	guestItems, err := r.listItems(ctx, tx, guestCart.ID)
	if err != nil {
		return false, err
	}

	if len(guestItems) > 0 {
		now := r.now()
		userCart, err := r.findOrCreateCart(ctx, tx, user, now)
		if err != nil {
			return false, err
		}

		userItems, err := r.listItems(ctx, tx, userCart.ID)
		if err != nil {
			return false, err
		}
		byProduct := make(map[string]domain.CartItem, len(userItems))
		for _, it := range userItems {
			byProduct[it.ProductID] = it
		}

		for _, gi := range guestItems {
			if existing, ok := byProduct[gi.ProductID]; ok {
				existing.Quantity += gi.Quantity
				if _, err := tx.ExecContext(ctx,
					`UPDATE cart_items SET quantity = quantity + $1, updated_at = $2 WHERE id = $3`,
					gi.Quantity, now, existing.ID); err != nil {
					return false, fmt.Errorf("merge cart item: %w", err)
				}
				byProduct[gi.ProductID] = existing
				continue
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE cart_items SET cart_id = $1, updated_at = $2 WHERE id = $3`,
				userCart.ID, now, gi.ID); err != nil {
				return false, fmt.Errorf("move cart item: %w", err)
			}
			byProduct[gi.ProductID] = gi
		}

		if err := r.touchCart(ctx, tx, userCart.ID, now); err != nil {
			return false, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, guestCart.ID); err != nil {
		return false, fmt.Errorf("delete guest cart items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, guestCart.ID); err != nil {
		return false, fmt.Errorf("delete guest cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit claim: %w", err)
	}
	return true, nil
}

// lockCart reads the owner's cart inside tx, taking a row lock on PostgreSQL.
func (r *SQLRepository) lockCart(ctx context.Context, tx *sqlx.Tx, owner domain.Owner) (*domain.Cart, error) {
	var cart domain.Cart
	query := `SELECT ` + cartColumns + ` FROM carts WHERE ` + ownerColumn(owner) + ` = $1` + r.forUpdate
	if err := sqlx.GetContext(ctx, tx, &cart, query, owner.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}
	return &cart, nil
}
