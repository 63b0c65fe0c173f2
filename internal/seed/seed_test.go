package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	product "github.com/codmtracker/codm-backend/internal/products"
	"github.com/codmtracker/codm-backend/internal/tournaments"
	"github.com/codmtracker/codm-backend/pkg/db/dbtest"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
	"github.com/codmtracker/codm-backend/pkg/logger"
)

func TestLoadFileNormalizes(t *testing.T) {
	catalog, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	require.Len(t, catalog.Categories, 2)
	assert.Equal(t, "points-cp", catalog.Categories[0].Slug)
	assert.Equal(t, "battle-pass", catalog.Categories[1].Slug)
	require.Len(t, catalog.Tournaments, 2)
	assert.Equal(t, 18, catalog.Tournaments[0].StartsAt.Hour())
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "categories:\n  - name: A\n    colour: red\n",
		"missing name":   "categories:\n  - slug: a\n",
		"duplicate slug": "categories:\n  - name: A\n  - name: a\n",
		"bad price":      "categories:\n  - name: A\n    products:\n      - name: P\n        price: abc\n",
		"zero price":     "categories:\n  - name: A\n    products:\n      - name: P\n        price: \"0\"\n",
		"negative stock": "categories:\n  - name: A\n    products:\n      - name: P\n        price: \"10\"\n        stock: -1\n",
		"bad mode":       "tournaments:\n  - title: T\n    mode: XX\n    starts_at: 2026-01-01T00:00:00Z\n    ends_at: 2026-01-02T00:00:00Z\n    entry_price: \"1\"\n",
		"ends first":     "tournaments:\n  - title: T\n    mode: MJ\n    starts_at: 2026-01-02T00:00:00Z\n    ends_at: 2026-01-01T00:00:00Z\n    entry_price: \"1\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	catalog, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, catalog.Categories)
}

func newSeeder(t *testing.T) (*Seeder, *product.Repository) {
	t.Helper()
	client, conn := dbtest.Client(t)
	products := product.NewRepository(conn)
	seeder, err := NewSeeder(SeederParams{
		Products:    products,
		Tournaments: tournaments.NewRepository(conn),
		TxRunner:    client,
		Logger:      logger.New(logger.Options{ServiceName: "seed-test"}),
	})
	require.NoError(t, err)
	return seeder, products
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	seeder, products := newSeeder(t)
	catalog, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	summary, err := seeder.Apply(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, Summary{Categories: 2, Products: 3, Tournaments: 2}, summary)

	catalog.Categories[0].Products[0].Stock = 12
	_, err = seeder.Apply(ctx, catalog)
	require.NoError(t, err)

	categories, err := products.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	active, err := products.ListActive(ctx, product.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, active, 2, "inactive battle pass stays hidden")

	byName := map[string]models.Product{}
	for _, p := range active {
		byName[p.Name] = p
	}
	assert.Equal(t, 12, byName["800 CP"].Stock)
	require.NotNil(t, byName["2400 CP"].DiscountedPrice)
	assert.True(t, byName["2400 CP"].EffectivePrice().Equal(decimal.RequireFromString("13500")))
}

func TestApplyStoresTournaments(t *testing.T) {
	ctx := context.Background()
	client, conn := dbtest.Client(t)
	repo := tournaments.NewRepository(conn)
	seeder, err := NewSeeder(SeederParams{
		Products:    product.NewRepository(conn),
		Tournaments: repo,
		TxRunner:    client,
		Logger:      logger.New(logger.Options{ServiceName: "seed-test"}),
	})
	require.NoError(t, err)

	catalog, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)
	_, err = seeder.Apply(ctx, catalog)
	require.NoError(t, err)
	_, err = seeder.Apply(ctx, catalog)
	require.NoError(t, err)

	rows, err := repo.ListTournaments(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, enums.TournamentTypeSquad, rows[0].Type)
	assert.Equal(t, 4, rows[0].RequiredTeamSize())
	assert.Equal(t, enums.TournamentModeMultiplayer, rows[1].Mode)
	assert.Equal(t, 5, rows[1].RequiredTeamSize())
}
