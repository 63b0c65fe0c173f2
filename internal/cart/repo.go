package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

// Repository persists carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lines", func(q *gorm.DB) *gorm.DB { return q.Order("cart_lines.created_at ASC, cart_lines.id ASC") }).
		Preload("Lines.Product")
}

// FindOpenByUser loads the user's open cart with lines and products.
func (r *Repository) FindOpenByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.withLines(ctx).
		Where("user_id = ? AND status = ?", userID, enums.CartStatusOpen).
		Order("created_at DESC").
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads a cart with lines and products regardless of status.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.withLines(ctx).First(&cart, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreateOpen returns the user's open cart, creating it when missing. A
// concurrent creator losing the unique index race reads the winner's row.
func (r *Repository) GetOrCreateOpen(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := r.FindOpenByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return r.insertOpen(ctx, userID)
}

// insertOpen skips the insert on conflict instead of failing it, which keeps
// a surrounding Postgres transaction usable for the re-read.
func (r *Repository) insertOpen(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	created := &models.Cart{ID: uuid.New(), UserID: userID, Status: enums.CartStatusOpen}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(created)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return r.FindOpenByUser(ctx, userID)
	}
	return created, nil
}

// FindLine returns the line for product inside cart.
func (r *Repository) FindLine(ctx context.Context, cartID, productID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// FindOpenLineForUser returns the line only when it sits in the user's open cart.
func (r *Repository) FindOpenLineForUser(ctx context.Context, userID, lineID uuid.UUID) (*models.CartLine, error) {
	var line models.CartLine
	err := r.db.WithContext(ctx).
		Preload("Product").
		Joins("JOIN carts ON carts.id = cart_lines.cart_id").
		Where("cart_lines.id = ? AND carts.user_id = ? AND carts.status = ?", lineID, userID, enums.CartStatusOpen).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// InsertLine inserts line unless the cart already holds the product. The
// bool reports whether a row was written.
func (r *Repository) InsertLine(ctx context.Context, line *models.CartLine) (bool, error) {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(line)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetLineQuantity overwrites a line's quantity.
func (r *Repository) SetLineQuantity(ctx context.Context, lineID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

// DeleteLine removes a line.
func (r *Repository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CartLine{}, "id = ?", lineID).Error
}

// MarkValidated closes an open cart so the next add starts a fresh one.
func (r *Repository) MarkValidated(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartStatusOpen).
		Update("status", enums.CartStatusValidated).Error
}

// CountOpenItems sums line quantities of the user's open cart.
func (r *Repository) CountOpenItems(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Joins("JOIN carts ON carts.id = cart_lines.cart_id").
		Where("carts.user_id = ? AND carts.status = ?", userID, enums.CartStatusOpen).
		Select("COALESCE(SUM(cart_lines.quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}
