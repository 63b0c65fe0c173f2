package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/pkg/db/models"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// DeliveryQuoter previews the delivery fee the user's next order would carry.
type DeliveryQuoter interface {
	QuoteDelivery(ctx context.Context, userID uuid.UUID) (fee decimal.Decimal, firstPurchase bool, err error)
}

// Service is the cart engine.
type Service interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error)
	UpdateLine(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveLine(ctx context.Context, userID, lineID uuid.UUID) (*CartDTO, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	CountItems(ctx context.Context, userID uuid.UUID) (int, error)
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productLoader
	delivery DeliveryQuoter
}

// NewService builds a cart service backed by the provided stack. The delivery
// quoter is optional; without it previews carry a zero fee.
func NewService(repo *Repository, tx txRunner, products productLoader, delivery DeliveryQuoter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products, delivery: delivery}, nil
}

func invalidQuantity() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
		WithReason(pkgerrors.ReasonInvalidQuantity)
}

func lineNotFound() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, invalidQuantity()
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := repo.GetOrCreateOpen(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open cart")
		}
		line, err := repo.FindLine(ctx, cart.ID, productID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if quantity > product.Stock {
				return pkgerrors.InsufficientStock(productID.String(), quantity, product.Stock)
			}
			created, err := repo.InsertLine(ctx, &models.CartLine{CartID: cart.ID, ProductID: productID, Quantity: quantity})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
			}
			if created {
				return nil
			}
			// a concurrent add created the line first; increment it instead
			line, err = repo.FindLine(ctx, cart.ID, productID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}
		next := line.Quantity + quantity
		if next > product.Stock {
			return pkgerrors.InsufficientStock(productID.String(), next, product.Stock)
		}
		return repo.SetLineQuantity(ctx, line.ID, next)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

func (s *service) UpdateLine(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, invalidQuantity()
	}
	line, err := s.repo.FindOpenLineForUser(ctx, userID, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lineNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	if line.Product == nil {
		return nil, lineNotFound()
	}
	if quantity > line.Product.Stock {
		return nil, pkgerrors.InsufficientStock(line.ProductID.String(), quantity, line.Product.Stock)
	}
	if err := s.repo.SetLineQuantity(ctx, line.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) (*CartDTO, error) {
	line, err := s.repo.FindOpenLineForUser(ctx, userID, lineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lineNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	if err := s.repo.DeleteLine(ctx, line.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	cart, err := s.repo.FindOpenByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	dto := toDTO(cart)
	if s.delivery != nil {
		fee, first, err := s.delivery.QuoteDelivery(ctx, userID)
		if err != nil {
			return nil, err
		}
		dto.DeliveryFee = fee
		dto.IsFirstPurchase = first
	}
	dto.TotalWithDelivery = dto.Total.Add(dto.DeliveryFee)
	return &dto, nil
}

func (s *service) CountItems(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.CountOpenItems(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart items")
	}
	return count, nil
}
