package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/internal/cart"
	"github.com/codmtracker/codm-backend/internal/ledger"
	"github.com/codmtracker/codm-backend/internal/users"
	"github.com/codmtracker/codm-backend/pkg/db/dbtest"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
	"github.com/codmtracker/codm-backend/pkg/paystack"
)

type stubGateway struct {
	requests  []paystack.InitializeRequest
	reference string
	err       error
}

func (g *stubGateway) Initialize(_ context.Context, req paystack.InitializeRequest) (*paystack.Transaction, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	ref := req.Reference
	if g.reference != "" {
		ref = g.reference
	}
	return &paystack.Transaction{
		AuthorizationURL: "https://checkout.paystack.com/" + ref,
		AccessCode:       "acc_test",
		Reference:        ref,
	}, nil
}

type fixture struct {
	svc     Service
	conn    *gorm.DB
	gateway *stubGateway
	now     time.Time
}

func newFixture(t *testing.T, gateway PaymentInitializer) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	repo := NewRepository(conn)
	delivery, err := NewDeliveryPolicy(repo, "1000")
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	now := time.Date(2025, 4, 2, 10, 30, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		Carts:       cart.NewRepository(conn),
		Users:       users.NewRepository(conn),
		TxRunner:    client,
		Delivery:    delivery,
		Gateway:     gateway,
		Ledger:      ledgerSvc,
		CallbackURL: "https://codm.test/api/v1/payments/callback",
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)

	stub, _ := gateway.(*stubGateway)
	return fixture{svc: svc, conn: conn, gateway: stub, now: now}
}

func TestPlaceOrderFirstPurchase(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	ctx := context.Background()

	user := dbtest.CreateUser(t, f.conn, "Kouadio", "Yao")
	p1 := dbtest.CreateProduct(t, f.conn, "2500", 10)
	p2 := dbtest.CreateProduct(t, f.conn, "1500", 3)
	open := dbtest.CreateOpenCart(t, f.conn, user.ID, map[uuid.UUID]int{p1.ID: 2, p2.ID: 1})

	result, err := f.svc.PlaceOrder(ctx, user.ID, " Cocody, Abidjan ")
	require.NoError(t, err)

	assert.Equal(t, "ORD-kouadio-yao-20250402103000-1", result.OrderNumber)
	assert.Regexp(t, `^CODM-TRACKER-[0-9A-F]{15}$`, result.Reference)
	assert.Contains(t, result.AuthorizationURL, result.Reference)
	assert.True(t, result.TotalWithDelivery.Equal(decimal.NewFromInt(6500)))

	var order models.Order
	require.NoError(t, f.conn.Preload("Payments").First(&order, "id = ?", result.OrderID).Error)
	assert.Equal(t, enums.OrderStatusAwaitingPayment, order.Status)
	assert.True(t, order.DeliveryFee.IsZero())
	assert.Equal(t, "Cocody, Abidjan", order.DeliveryAddress)
	assert.Equal(t, open.ID, order.CartID)
	require.Len(t, order.Payments, 1)
	assert.Equal(t, enums.PaymentStatusPending, order.Payments[0].Status)
	assert.True(t, order.Payments[0].Amount.Equal(order.TotalWithDelivery))

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, int64(650000), req.Amount)
	assert.Equal(t, "XOF", req.Currency)
	assert.Equal(t, user.Email, req.Email)
	assert.Equal(t, paystack.DefaultChannels, req.Channels)
	assert.Equal(t, order.ID.String(), req.Metadata["order_id"])
	assert.Equal(t, order.OrderNumber, req.Metadata["order_number"])
	assert.Equal(t, user.ID.String(), req.Metadata["user_id"])

	// Checkout never touches the cart or stock.
	var reloaded models.Cart
	require.NoError(t, f.conn.Preload("Lines").First(&reloaded, "id = ?", open.ID).Error)
	assert.Equal(t, enums.CartStatusOpen, reloaded.Status)
	assert.Len(t, reloaded.Lines, 2)
	assert.Equal(t, 10, dbtest.ProductStock(t, f.conn, p1.ID))

	var events []models.PaymentEvent
	require.NoError(t, f.conn.Find(&events, "order_id = ?", order.ID).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.PaymentEventInitialized, events[0].Type)
}

func TestPlaceOrderChargesDeliveryAfterSettledOrder(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	ctx := context.Background()

	user := dbtest.CreateUser(t, f.conn, "Awa", "Traore")
	p := dbtest.CreateProduct(t, f.conn, "5000", 5)
	previous := dbtest.CreateOpenCart(t, f.conn, user.ID, nil)
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("id = ?", previous.ID).Update("status", enums.CartStatusValidated).Error)
	dbtest.CreateOrder(t, f.conn, user.ID, previous.ID, enums.OrderStatusDelivered, "3000", f.now.Add(-72*time.Hour))
	dbtest.CreateOpenCart(t, f.conn, user.ID, map[uuid.UUID]int{p.ID: 1})

	result, err := f.svc.PlaceOrder(ctx, user.ID, "Yopougon")
	require.NoError(t, err)
	assert.True(t, result.TotalWithDelivery.Equal(decimal.NewFromInt(6000)), "got %s", result.TotalWithDelivery)
	assert.Equal(t, int64(600000), f.gateway.requests[0].Amount)

	fee, first, err := f.svc.QuoteDelivery(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, first)
	assert.True(t, fee.Equal(decimal.NewFromInt(1000)))
}

func TestPlaceOrderAfterPaidOrderAddsDeliveryFee(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	ctx := context.Background()

	user := dbtest.CreateUser(t, f.conn, "Koffi", "Yao")
	previous := dbtest.CreateOpenCart(t, f.conn, user.ID, nil)
	require.NoError(t, f.conn.Model(&models.Cart{}).Where("id = ?", previous.ID).Update("status", enums.CartStatusValidated).Error)
	dbtest.CreateOrder(t, f.conn, user.ID, previous.ID, enums.OrderStatusPaid, "2000", f.now.Add(-24*time.Hour))
	p1 := dbtest.CreateProduct(t, f.conn, "1000", 5)
	p2 := dbtest.CreateProduct(t, f.conn, "2000", 5)
	dbtest.CreateOpenCart(t, f.conn, user.ID, map[uuid.UUID]int{p1.ID: 1, p2.ID: 1})

	result, err := f.svc.PlaceOrder(ctx, user.ID, "Marcory")
	require.NoError(t, err)
	assert.True(t, result.TotalWithDelivery.Equal(decimal.NewFromInt(4000)), "got %s", result.TotalWithDelivery)
	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, int64(400000), f.gateway.requests[0].Amount)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", result.OrderID).Error)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(3000)), "got %s", order.Total)
	assert.True(t, order.DeliveryFee.Equal(decimal.NewFromInt(1000)), "got %s", order.DeliveryFee)
}

func TestPlaceOrderUnpaidOrdersKeepDeliveryFree(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	ctx := context.Background()

	user := dbtest.CreateUser(t, f.conn, "", "")
	p := dbtest.CreateProduct(t, f.conn, "1000", 5)
	dbtest.CreateOpenCart(t, f.conn, user.ID, map[uuid.UUID]int{p.ID: 1})

	first, err := f.svc.PlaceOrder(ctx, user.ID, "Bouake")
	require.NoError(t, err)
	second, err := f.svc.PlaceOrder(ctx, user.ID, "Bouake")
	require.NoError(t, err)

	assert.True(t, second.TotalWithDelivery.Equal(decimal.NewFromInt(1000)))
	assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, "2", second.OrderNumber[len(second.OrderNumber)-1:])
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	ctx := context.Background()
	user := dbtest.CreateUser(t, f.conn, "", "")

	_, err := f.svc.PlaceOrder(ctx, user.ID, "Abidjan")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonEmptyCart))

	dbtest.CreateOpenCart(t, f.conn, user.ID, nil)
	_, err = f.svc.PlaceOrder(ctx, user.ID, "Abidjan")
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonEmptyCart))

	other := dbtest.CreateUser(t, f.conn, "", "")
	p := dbtest.CreateProduct(t, f.conn, "1000", 1)
	dbtest.CreateOpenCart(t, f.conn, other.ID, map[uuid.UUID]int{p.ID: 1})
	_, err = f.svc.PlaceOrder(ctx, other.ID, "   ")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsReason(err, pkgerrors.ReasonMissingAddress))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Empty(t, f.gateway.requests)
}

func TestPlaceOrderGatewayFailureRollsBack(t *testing.T) {
	f := newFixture(t, &stubGateway{err: errors.New("timeout")})
	ctx := context.Background()

	user := dbtest.CreateUser(t, f.conn, "", "")
	p := dbtest.CreateProduct(t, f.conn, "1000", 4)
	dbtest.CreateOpenCart(t, f.conn, user.ID, map[uuid.UUID]int{p.ID: 2})

	_, err := f.svc.PlaceOrder(ctx, user.ID, "Abidjan")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, "payment could not be initialized", typed.Message())

	var orders, payments, events int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&payments).Error)
	require.NoError(t, f.conn.Model(&models.PaymentEvent{}).Count(&events).Error)
	assert.Zero(t, orders)
	assert.Zero(t, payments)
	assert.Zero(t, events)
}

func TestPlaceOrderAdoptsGatewayReference(t *testing.T) {
	f := newFixture(t, &stubGateway{reference: "PSK-REF-42"})
	ctx := context.Background()

	user := dbtest.CreateUser(t, f.conn, "", "")
	p := dbtest.CreateProduct(t, f.conn, "1000", 4)
	dbtest.CreateOpenCart(t, f.conn, user.ID, map[uuid.UUID]int{p.ID: 1})

	result, err := f.svc.PlaceOrder(ctx, user.ID, "Abidjan")
	require.NoError(t, err)
	assert.Equal(t, "PSK-REF-42", result.Reference)

	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "order_id = ?", result.OrderID).Error)
	assert.Equal(t, "PSK-REF-42", payment.Reference)
}

func TestPlaceOrderWithoutGateway(t *testing.T) {
	f := newFixture(t, nil)
	user := dbtest.CreateUser(t, f.conn, "", "")
	p := dbtest.CreateProduct(t, f.conn, "1000", 4)
	dbtest.CreateOpenCart(t, f.conn, user.ID, map[uuid.UUID]int{p.ID: 1})

	_, err := f.svc.PlaceOrder(context.Background(), user.ID, "Abidjan")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestRecentOrdersReturnsNewestFirstWithPaymentStatus(t *testing.T) {
	f := newFixture(t, &stubGateway{})
	user := dbtest.CreateUser(t, f.conn, "", "")
	c := dbtest.CreateOpenCart(t, f.conn, user.ID, nil)

	base := f.now.Add(-10 * 24 * time.Hour)
	var newest models.Order
	for i := 0; i < 7; i++ {
		newest = dbtest.CreateOrder(t, f.conn, user.ID, c.ID, enums.OrderStatusAwaitingPayment, "1000", base.Add(time.Duration(i)*time.Hour))
	}
	dbtest.CreatePayment(t, f.conn, newest, "CODM-TRACKER-OLDATTEMPT0001", enums.PaymentStatusCancelled, base)
	dbtest.CreatePayment(t, f.conn, newest, "CODM-TRACKER-NEWATTEMPT0001", enums.PaymentStatusPending, base.Add(24*time.Hour))

	other := dbtest.CreateUser(t, f.conn, "", "")
	dbtest.CreateOrder(t, f.conn, other.ID, c.ID, enums.OrderStatusPaid, "1000", f.now)

	got, err := f.svc.RecentOrders(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, got, defaultRecentOrders)
	assert.Equal(t, newest.ID, got[0].ID)
	require.NotNil(t, got[0].PaymentStatus)
	assert.Equal(t, enums.PaymentStatusPending, *got[0].PaymentStatus)
	assert.Equal(t, "CODM-TRACKER-NEWATTEMPT0001", got[0].PaymentReference)
	assert.Nil(t, got[1].PaymentStatus)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
