// Package dbtest opens throwaway sqlite databases migrated with the full
// model set and seeds common fixtures for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/pkg/db"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

// Open returns a migrated in-memory database private to the test. The pool is
// capped at one connection so concurrent transactions serialize instead of
// failing with sqlite lock errors.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=1", name, uuid.NewString()[:8])
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}

// Client wraps Open in the transaction-capable db client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed fixture: %v", err)
	}
}

// CreateUser inserts a user with a player profile-free account.
func CreateUser(t testing.TB, conn *gorm.DB, firstName, lastName string) models.User {
	t.Helper()
	if firstName == "" {
		firstName = gofakeit.FirstName()
	}
	if lastName == "" {
		lastName = gofakeit.LastName()
	}
	user := models.User{
		ID:        uuid.New(),
		Email:     strings.ToLower(uuid.NewString()[:8] + "@" + gofakeit.DomainName()),
		FirstName: firstName,
		LastName:  lastName,
	}
	must(t, conn.Create(&user).Error)
	return user
}

// CreateProfile inserts a user and its player profile.
func CreateProfile(t testing.TB, conn *gorm.DB) (models.User, models.PlayerProfile) {
	t.Helper()
	user := CreateUser(t, conn, "", "")
	profile := models.PlayerProfile{
		ID:       uuid.New(),
		UserID:   user.ID,
		GamerTag: gofakeit.Username(),
	}
	must(t, conn.Create(&profile).Error)
	return user, profile
}

// CreateProduct inserts an active product with the given price and stock.
func CreateProduct(t testing.TB, conn *gorm.DB, price string, stock int) models.Product {
	t.Helper()
	category := models.Category{ID: uuid.New(), Name: gofakeit.ProductCategory(), Slug: "cat-" + uuid.NewString()[:8]}
	must(t, conn.Create(&category).Error)
	product := models.Product{
		ID:         uuid.New(),
		CategoryID: category.ID,
		Name:       gofakeit.ProductName(),
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		IsActive:   true,
	}
	must(t, conn.Create(&product).Error)
	return product
}

// CreateOpenCart inserts an open cart holding the given product quantities.
func CreateOpenCart(t testing.TB, conn *gorm.DB, userID uuid.UUID, lines map[uuid.UUID]int) models.Cart {
	t.Helper()
	cart := models.Cart{ID: uuid.New(), UserID: userID, Status: enums.CartStatusOpen}
	must(t, conn.Create(&cart).Error)
	for productID, qty := range lines {
		line := models.CartLine{ID: uuid.New(), CartID: cart.ID, ProductID: productID, Quantity: qty}
		must(t, conn.Create(&line).Error)
	}
	return cart
}

// CreateOrder inserts an order in the given status, with total equal to the
// grand total and no delivery fee.
func CreateOrder(t testing.TB, conn *gorm.DB, userID, cartID uuid.UUID, status enums.OrderStatus, total string, createdAt time.Time) models.Order {
	t.Helper()
	amount := decimal.RequireFromString(total)
	order := models.Order{
		ID:                uuid.New(),
		UserID:            userID,
		CartID:            cartID,
		OrderNumber:       "ORD-fixture-" + uuid.NewString()[:12],
		Total:             amount,
		DeliveryFee:       decimal.Zero,
		TotalWithDelivery: amount,
		DeliveryAddress:   gofakeit.Street(),
		PaymentMode:       enums.PaymentModePaystack,
		Status:            status,
		CreatedAt:         createdAt,
	}
	must(t, conn.Create(&order).Error)
	return order
}

// CreatePayment inserts a payment for the order.
func CreatePayment(t testing.TB, conn *gorm.DB, order models.Order, reference string, status enums.PaymentStatus, createdAt time.Time) models.Payment {
	t.Helper()
	payment := models.Payment{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Reference:   reference,
		Amount:      order.TotalWithDelivery,
		Status:      status,
		PaymentMode: enums.PaymentModePaystack,
		CreatedAt:   createdAt,
	}
	must(t, conn.Create(&payment).Error)
	return payment
}

// CreateTournament inserts a tournament running from start to end.
func CreateTournament(t testing.TB, conn *gorm.DB, mode enums.TournamentMode, typ enums.TournamentType, price string, start, end time.Time) models.Tournament {
	t.Helper()
	tournament := models.Tournament{
		ID:         uuid.New(),
		Title:      gofakeit.Sentence(3),
		Mode:       mode,
		Type:       typ,
		StartsAt:   start,
		EndsAt:     end,
		Reward:     "50000 XOF",
		EntryPrice: decimal.RequireFromString(price),
	}
	must(t, conn.Create(&tournament).Error)
	return tournament
}

// ProductStock reads the current stock of a product.
func ProductStock(t testing.TB, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	must(t, conn.First(&product, "id = ?", productID).Error)
	return product.Stock
}
