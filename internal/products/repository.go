package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/pkg/db"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/pagination"
)

// ListFilter narrows the public catalog listing.
type ListFilter struct {
	CategorySlug string
	Limit        int
	Cursor       *pagination.Cursor
}

// Repository wires together all product-related persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads the product without associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByID loads an active product with its category.
func (r *Repository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActive returns up to filter.Limit+1 active products, newest first.
func (r *Repository) ListActive(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Preload("Category").
		Where("products.is_active = ?", true)

	if slug := strings.TrimSpace(filter.CategorySlug); slug != "" {
		query = query.
			Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", slug)
	}
	if c := filter.Cursor; c != nil {
		query = query.Where(
			"(products.created_at < ?) OR (products.created_at = ? AND products.id < ?)",
			c.CreatedAt, c.CreatedAt, c.ID,
		)
	}

	var rows []models.Product
	err := query.
		Order("products.created_at DESC").
		Order("products.id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCategories returns every category ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// LockForUpdate loads the products row-locked, always in id order so
// concurrent settlements acquire locks in the same sequence.
func (r *Repository) LockForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DecrementStock removes qty units and reports whether enough stock was left.
func (r *Repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpsertCategory creates the category or renames the one holding the slug.
func (r *Repository) UpsertCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	var existing models.Category
	err := r.db.WithContext(ctx).Where("slug = ?", category.Slug).First(&existing).Error
	switch {
	case err == nil:
		existing.Name = category.Name
		if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// UpsertProductByName creates the product or refreshes the one with the same
// name in the same category.
func (r *Repository) UpsertProductByName(ctx context.Context, product *models.Product) (*models.Product, error) {
	var existing models.Product
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND name = ?", product.CategoryID, product.Name).
		First(&existing).Error
	switch {
	case err == nil:
		updates := map[string]any{
			"description":      product.Description,
			"price":            product.Price,
			"discounted_price": product.DiscountedPrice,
			"stock":            product.Stock,
			"is_active":        product.IsActive,
		}
		if err := r.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return r.FindByID(ctx, existing.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}
