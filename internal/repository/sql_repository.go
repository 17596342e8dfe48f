package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const cartColumns = `id, user_id, session_id, last_activity_at, created_at, updated_at`

const itemColumns = `id, cart_id, product_id, quantity, variant_selections, created_at, updated_at`

type cartItemRow struct {
	ID                string    `db:"id"`
	CartID            string    `db:"cart_id"`
	ProductID         string    `db:"product_id"`
	Quantity          int       `db:"quantity"`
	VariantSelections string    `db:"variant_selections"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// SQLRepository keeps carts in PostgreSQL or SQLite.
type SQLRepository struct {
	db        *sqlx.DB
	log       *slog.Logger
	forUpdate string
	now       func() time.Time
}

func NewSQLRepository(db *sqlx.DB, log *slog.Logger) *SQLRepository {
	r := &SQLRepository{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	if db.DriverName() == DriverPostgres {
		r.forUpdate = " FOR UPDATE"
	}
	return r
}

func (r *SQLRepository) GetCart(ctx context.Context, owner domain.Owner) (*domain.CartContents, error) {
	cart, err := r.findCart(ctx, r.db, owner)
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, r.db, cart.ID)
	if err != nil {
		return nil, err
	}
	return &domain.CartContents{Cart: *cart, Items: items}, nil
}

func (r *SQLRepository) AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int, variants domain.VariantSelections) (*domain.CartItem, error) {
	if err := domain.CheckQuantity(quantity); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin add item: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	product, err := r.selectProduct(ctx, tx, productID)
	if errors.Is(err, ErrProductNotFound) {
		return nil, domain.NewValidationError("product not found")
	}
	if err != nil {
		return nil, err
	}
	if err := domain.CheckAvailability(product, quantity); err != nil {
		return nil, err
	}

	now := r.now()
	cart, err := r.findOrCreateCart(ctx, tx, owner, now)
	if err != nil {
		return nil, err
	}

	var existing cartItemRow
	err = sqlx.GetContext(ctx, tx, &existing,
		`SELECT `+itemColumns+` FROM cart_items WHERE cart_id = $1 AND product_id = $2`+r.forUpdate,
		cart.ID, productID)

	var item domain.CartItem
	switch {
	case err == nil:
		total := existing.Quantity + quantity
		if err := domain.CheckStockCeiling(product, total); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = quantity + $1, updated_at = $2 WHERE id = $3`,
			quantity, now, existing.ID); err != nil {
			return nil, fmt.Errorf("increment cart item: %w", err)
		}
		item = r.toDomain(existing)
		item.Quantity = total
		item.UpdatedAt = now
	case errors.Is(err, sql.ErrNoRows):
		if variants == nil {
			variants = domain.VariantSelections{}
		}
		encoded, err := json.Marshal(variants)
		if err != nil {
			return nil, fmt.Errorf("marshal variant selections: %w", err)
		}
		item = domain.CartItem{
			ID:                uuid.NewString(),
			CartID:            cart.ID,
			ProductID:         productID,
			Quantity:          quantity,
			VariantSelections: variants,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cart_items (`+itemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.CartID, item.ProductID, item.Quantity, string(encoded), now, now); err != nil {
			return nil, fmt.Errorf("insert cart item: %w", err)
		}
	default:
		return nil, fmt.Errorf("select cart item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add item: %w", err)
	}
	return &item, nil
}

func (r *SQLRepository) RemoveItem(ctx context.Context, owner domain.Owner, itemID string) error {
	cart, err := r.findCart(ctx, r.db, owner)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cart.ID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}

	return r.touchCart(ctx, r.db, cart.ID, r.now())
}

func (r *SQLRepository) UpdateItemQuantity(ctx context.Context, owner domain.Owner, itemID string, quantity int) error {
	if quantity <= 0 {
		return r.RemoveItem(ctx, owner, itemID)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update quantity: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cart, err := r.findCart(ctx, tx, owner)
	if err != nil {
		return err
	}

	var line struct {
		ID    string `db:"id"`
		Name  string `db:"name"`
		Stock int    `db:"stock"`
	}
	err = sqlx.GetContext(ctx, tx, &line,
		`SELECT ci.id, p.name, p.stock
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.id = $1 AND ci.cart_id = $2`+r.forUpdate,
		itemID, cart.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("select cart item: %w", err)
	}

	if err := domain.CheckStockCeiling(&domain.Product{Name: line.Name, Stock: line.Stock}, quantity); err != nil {
		return err
	}

	now := r.now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1, updated_at = $2 WHERE id = $3`,
		quantity, now, line.ID); err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if err := r.touchCart(ctx, tx, cart.ID, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update quantity: %w", err)
	}
	return nil
}

func (r *SQLRepository) ClearCart(ctx context.Context, owner domain.Owner) error {
	cart, err := r.findCart(ctx, r.db, owner)
	if errors.Is(err, ErrCartNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear cart: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	if err := r.touchCart(ctx, tx, cart.ID, r.now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear cart: %w", err)
	}
	return nil
}

// DeleteInactiveSessionCarts removes guest carts untouched since before and
// returns their owners. User carts are never removed here.
func (r *SQLRepository) DeleteInactiveSessionCarts(ctx context.Context, before time.Time) ([]domain.Owner, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sweep: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id IN (
			SELECT id FROM carts WHERE session_id IS NOT NULL AND last_activity_at < $1
		)`, before.UTC()); err != nil {
		return nil, fmt.Errorf("delete stale cart items: %w", err)
	}

	var sessions []string
	if err := sqlx.SelectContext(ctx, tx, &sessions,
		`DELETE FROM carts WHERE session_id IS NOT NULL AND last_activity_at < $1 RETURNING session_id`,
		before.UTC()); err != nil {
		return nil, fmt.Errorf("delete stale carts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sweep: %w", err)
	}

	owners := make([]domain.Owner, 0, len(sessions))
	for _, id := range sessions {
		owners = append(owners, domain.SessionOwner(id))
	}
	return owners, nil
}

func ownerColumn(owner domain.Owner) string {
	if owner.IsUser() {
		return "user_id"
	}
	return "session_id"
}

func (r *SQLRepository) findCart(ctx context.Context, q sqlx.QueryerContext, owner domain.Owner) (*domain.Cart, error) {
	var cart domain.Cart
	query := `SELECT ` + cartColumns + ` FROM carts WHERE ` + ownerColumn(owner) + ` = $1`
	if err := sqlx.GetContext(ctx, q, &cart, query, owner.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}
	return &cart, nil
}

// findOrCreateCart returns the owner's cart, touching it when it already exists.
// A concurrent creator that wins the unique index is picked up by the re-read.
func (r *SQLRepository) findOrCreateCart(ctx context.Context, tx *sqlx.Tx, owner domain.Owner, now time.Time) (*domain.Cart, error) {
	cart, err := r.findCart(ctx, tx, owner)
	if err == nil {
		if err := r.touchCart(ctx, tx, cart.ID, now); err != nil {
			return nil, err
		}
		cart.LastActivityAt = now
		cart.UpdatedAt = now
		return cart, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	var userID, sessionID *string
	if owner.IsUser() {
		userID = &owner.ID
	} else {
		sessionID = &owner.ID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO carts (`+cartColumns+`) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
		uuid.NewString(), userID, sessionID, now, now, now); err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}
	return r.findCart(ctx, tx, owner)
}

func (r *SQLRepository) touchCart(ctx context.Context, ex sqlx.ExecerContext, cartID string, now time.Time) error {
	if _, err := ex.ExecContext(ctx,
		`UPDATE carts SET last_activity_at = $1, updated_at = $2 WHERE id = $3`,
		now, now, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}

func (r *SQLRepository) listItems(ctx context.Context, q sqlx.QueryerContext, cartID string) ([]domain.CartItem, error) {
	var rows []cartItemRow
	if err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+itemColumns+` FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, cartID); err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}

	items := make([]domain.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, r.toDomain(row))
	}
	return items, nil
}

func (r *SQLRepository) selectProduct(ctx context.Context, q sqlx.QueryerContext, id string) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, q, &p,
		`SELECT `+productColumns+` FROM products WHERE id = $1`+r.forUpdate, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product: %w", err)
	}
	return &p, nil
}

func (r *SQLRepository) toDomain(row cartItemRow) domain.CartItem {
	return domain.CartItem{
		ID:                row.ID,
		CartID:            row.CartID,
		ProductID:         row.ProductID,
		Quantity:          row.Quantity,
		VariantSelections: decodeVariants(r.log, row.ID, row.VariantSelections),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

// decodeVariants never fails: unreadable selections degrade to an empty map.
func decodeVariants(log *slog.Logger, itemID, raw string) domain.VariantSelections {
	variants := domain.VariantSelections{}
	if raw == "" {
		return variants
	}
	if err := json.Unmarshal([]byte(raw), &variants); err != nil {
		log.Warn("invalid variant selections", "item_id", itemID, "error", err)
		return domain.VariantSelections{}
	}
	if variants == nil {
		return domain.VariantSelections{}
	}
	return variants
}
