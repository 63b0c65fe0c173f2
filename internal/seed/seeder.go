package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/codmtracker/codm-backend/internal/products"
	"github.com/codmtracker/codm-backend/internal/tournaments"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
	"github.com/codmtracker/codm-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Summary counts the rows written by Apply.
type Summary struct {
	Categories  int
	Products    int
	Tournaments int
}

type SeederParams struct {
	Products    *product.Repository
	Tournaments *tournaments.Repository
	TxRunner    txRunner
	Logger      *logger.Logger
}

// Seeder upserts a Catalog. Running it twice with the same file is a no-op
// apart from refreshed fields.
type Seeder struct {
	products    *product.Repository
	tournaments *tournaments.Repository
	tx          txRunner
	logg        *logger.Logger
}

func NewSeeder(params SeederParams) (*Seeder, error) {
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Tournaments == nil {
		return nil, fmt.Errorf("tournament repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Seeder{
		products:    params.Products,
		tournaments: params.Tournaments,
		tx:          params.TxRunner,
		logg:        params.Logger,
	}, nil
}

// Apply writes the whole catalog in one transaction.
func (s *Seeder) Apply(ctx context.Context, catalog *Catalog) (Summary, error) {
	var summary Summary
	if catalog == nil {
		return summary, nil
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		summary = Summary{}
		products := s.products.WithTx(tx)
		for _, cs := range catalog.Categories {
			category, err := products.UpsertCategory(ctx, &models.Category{Name: cs.Name, Slug: cs.Slug})
			if err != nil {
				return fmt.Errorf("upsert category %q: %w", cs.Slug, err)
			}
			summary.Categories++
			for _, ps := range cs.Products {
				row, err := productRow(category.ID, ps)
				if err != nil {
					return fmt.Errorf("product %q: %w", ps.Name, err)
				}
				if _, err := products.UpsertProductByName(ctx, row); err != nil {
					return fmt.Errorf("upsert product %q: %w", ps.Name, err)
				}
				summary.Products++
			}
		}

		repo := s.tournaments.WithTx(tx)
		for _, ts := range catalog.Tournaments {
			row, err := tournamentRow(ts)
			if err != nil {
				return fmt.Errorf("tournament %q: %w", ts.Title, err)
			}
			if _, err := repo.UpsertTournamentByTitle(ctx, row); err != nil {
				return fmt.Errorf("upsert tournament %q: %w", ts.Title, err)
			}
			summary.Tournaments++
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"categories":  summary.Categories,
		"products":    summary.Products,
		"tournaments": summary.Tournaments,
	}), "seed.applied")
	return summary, nil
}

func productRow(categoryID uuid.UUID, ps ProductSeed) (*models.Product, error) {
	price, err := ps.price()
	if err != nil {
		return nil, err
	}
	discounted, err := ps.discountedPrice()
	if err != nil {
		return nil, err
	}
	return &models.Product{
		CategoryID:      categoryID,
		Name:            ps.Name,
		Description:     ps.Description,
		Price:           price,
		DiscountedPrice: discounted,
		Stock:           ps.Stock,
		IsActive:        ps.active(),
	}, nil
}

func tournamentRow(ts TournamentSeed) (*models.Tournament, error) {
	mode, err := enums.ParseTournamentMode(ts.Mode)
	if err != nil {
		return nil, err
	}
	var typ enums.TournamentType
	if ts.Type != "" {
		if typ, err = enums.ParseTournamentType(ts.Type); err != nil {
			return nil, err
		}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(ts.EntryPrice))
	if err != nil {
		return nil, fmt.Errorf("invalid entry_price %q", ts.EntryPrice)
	}
	return &models.Tournament{
		Title:       ts.Title,
		Description: ts.Description,
		Mode:        mode,
		Type:        typ,
		StartsAt:    ts.StartsAt.UTC(),
		EndsAt:      ts.EndsAt.UTC(),
		Reward:      ts.Reward,
		EntryPrice:  price,
	}, nil
}
