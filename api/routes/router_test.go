package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/internal/cart"
	"github.com/codmtracker/codm-backend/internal/ledger"
	"github.com/codmtracker/codm-backend/internal/orders"
	"github.com/codmtracker/codm-backend/internal/payments"
	product "github.com/codmtracker/codm-backend/internal/products"
	"github.com/codmtracker/codm-backend/internal/tournaments"
	"github.com/codmtracker/codm-backend/internal/users"
	paystackwebhook "github.com/codmtracker/codm-backend/internal/webhooks/paystack"
	pkgAuth "github.com/codmtracker/codm-backend/pkg/auth"
	"github.com/codmtracker/codm-backend/pkg/config"
	"github.com/codmtracker/codm-backend/pkg/db/dbtest"
	"github.com/codmtracker/codm-backend/pkg/enums"
	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/metrics"
	"github.com/codmtracker/codm-backend/pkg/paystack"
)

const testSecret = "sk_test_router"

// fakeGateway plays the payment provider: every initialized transaction
// verifies as successful.
type fakeGateway struct {
	initialized []string
}

func (g *fakeGateway) Initialize(_ context.Context, req paystack.InitializeRequest) (*paystack.Transaction, error) {
	g.initialized = append(g.initialized, req.Reference)
	return &paystack.Transaction{
		AuthorizationURL: "https://checkout.paystack.test/" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*paystack.Transaction, error) {
	return &paystack.Transaction{Reference: reference, Status: "success"}, nil
}

type secretVerifier struct{}

func (secretVerifier) VerifySignature(body []byte, signature string) bool {
	return paystack.VerifySignature(testSecret, body, signature)
}

type memoryIdempotency struct {
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string { return scope + ":" + id }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type app struct {
	handler http.Handler
	conn    *gorm.DB
	gateway *fakeGateway
	cfg     *config.Config
}

func newApp(t *testing.T) app {
	t.Helper()
	client, conn := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	registry := prometheus.NewRegistry()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "codm-tracker"},
	}
	gateway := &fakeGateway{}

	productRepo := product.NewRepository(conn)
	catalog, err := product.NewService(productRepo)
	require.NoError(t, err)

	orderRepo := orders.NewRepository(conn)
	delivery, err := orders.NewDeliveryPolicy(orderRepo, "1000")
	require.NoError(t, err)
	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, client, productRepo, delivery)
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:        orderRepo,
		Carts:       cartRepo,
		Users:       users.NewRepository(conn),
		TxRunner:    client,
		Delivery:    delivery,
		Gateway:     gateway,
		Ledger:      ledgerSvc,
		Metrics:     paymentMetrics,
		Logger:      logg,
		CallbackURL: "https://codm.test/api/v1/payments/callback",
	})
	require.NoError(t, err)

	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(conn),
		Orders:   orderRepo,
		Carts:    cartRepo,
		Products: productRepo,
		TxRunner: client,
		Ledger:   ledgerSvc,
		Verifier: gateway,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	require.NoError(t, err)
	webhookSvc, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{Payments: paymentSvc, Logger: logg})
	require.NoError(t, err)

	tournamentSvc, err := tournaments.NewService(tournaments.ServiceParams{
		Repo:     tournaments.NewRepository(conn),
		Profiles: users.NewRepository(conn),
		TxRunner: client,
		Gateway:  tournaments.ApprovingGateway{},
		Metrics:  metrics.NewRegistrationMetrics(registry),
		Logger:   logg,
	})
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, Dependencies{
		DBPinger:        okPinger{},
		Idempotency:     &memoryIdempotency{data: map[string]string{}},
		Gatherer:        registry,
		HTTPMetrics:     metrics.NewHTTPMetrics(registry),
		Products:        catalog,
		Cart:            cartSvc,
		Orders:          orderSvc,
		Payments:        paymentSvc,
		Tournaments:     tournamentSvc,
		PaystackEvents:  webhookSvc,
		WebhookVerifier: secretVerifier{},
	})
	return app{handler: handler, conn: conn, gateway: gateway, cfg: cfg}
}

func (a app) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(a.cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{UserID: userID})
	require.NoError(t, err)
	return token
}

type call struct {
	method  string
	path    string
	body    string
	token   string
	headers map[string]string
}

func (a app) do(t *testing.T, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var envelope map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	}
	return rec, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "expected object data in %v", envelope)
	return d
}

func errorCode(envelope map[string]any) string {
	if e, ok := envelope["error"].(map[string]any); ok {
		code, _ := e["code"].(string)
		return code
	}
	return ""
}

func signedWebhook(reference string) (string, string) {
	body := fmt.Sprintf(`{"event":"charge.success","data":{"id":1,"reference":%q,"status":"success","amount":650000,"currency":"XOF"}}`, reference)
	return body, paystack.Sign(testSecret, []byte(body))
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)

	rec, _ := a.do(t, call{method: http.MethodGet, path: "/health/live"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Codm-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec, _ = a.do(t, call{method: http.MethodGet, path: "/health/ready"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, call{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "codm_http_requests_total")
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	a := newApp(t)
	for _, c := range []call{
		{method: http.MethodGet, path: "/api/v1/cart"},
		{method: http.MethodPost, path: "/api/v1/checkout", body: `{}`},
		{method: http.MethodGet, path: "/api/v1/orders"},
		{method: http.MethodGet, path: "/api/v1/tournaments/" + uuid.NewString() + "/registration"},
	} {
		rec, env := a.do(t, c)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, c.path)
		assert.Equal(t, "UNAUTHORIZED", errorCode(env))
	}
}

func TestBoutiqueFlowSettlesThroughWebhook(t *testing.T) {
	a := newApp(t)
	user := dbtest.CreateUser(t, a.conn, "Awa", "Koné")
	p := dbtest.CreateProduct(t, a.conn, "2500", 5)
	token := a.token(t, user.ID)

	rec, env := a.do(t, call{method: http.MethodGet, path: "/api/v1/products/" + p.ID.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2500", data(t, env)["effective_price"])

	rec, env = a.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", token: token,
		body: fmt.Sprintf(`{"product_id":%q,"quantity":2}`, p.ID)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, data(t, env)["is_first_purchase"])

	rec, env = a.do(t, call{method: http.MethodGet, path: "/api/v1/cart/count", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), data(t, env)["count"])

	rec, env = a.do(t, call{method: http.MethodPost, path: "/api/v1/checkout", token: token,
		body: `{"address":"Cocody, Abidjan"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	checkout := data(t, env)
	reference := checkout["reference"].(string)
	assert.Equal(t, "https://checkout.paystack.test/"+reference, checkout["authorization_url"])
	assert.Equal(t, 5, dbtest.ProductStock(t, a.conn, p.ID), "stock moves only on confirmation")

	body, signature := signedWebhook(reference)
	for i := 0; i < 2; i++ {
		rec, _ = a.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/paystack", body: body,
			headers: map[string]string{paystack.SignatureHeader: signature}})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 3, dbtest.ProductStock(t, a.conn, p.ID))

	rec, env = a.do(t, call{method: http.MethodGet, path: "/api/v1/payments/callback?trxref=" + reference})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, data(t, env)["already_paid"])

	rec, env = a.do(t, call{method: http.MethodGet, path: "/api/v1/orders", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := env["data"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	order := list[0].(map[string]any)
	assert.Equal(t, string(enums.OrderStatusPaid), order["status"])
	assert.Equal(t, string(enums.PaymentStatusPaid), order["payment_status"])

	rec, env = a.do(t, call{method: http.MethodGet, path: "/api/v1/cart", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", data(t, env)["delivery_fee"], "second purchase pays delivery")
}

func TestCartErrorsCarryReasons(t *testing.T) {
	a := newApp(t)
	user := dbtest.CreateUser(t, a.conn, "", "")
	p := dbtest.CreateProduct(t, a.conn, "1000", 1)
	token := a.token(t, user.ID)

	rec, env := a.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", token: token,
		body: fmt.Sprintf(`{"product_id":%q,"quantity":0}`, p.ID)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", env["error"].(map[string]any)["details"].(map[string]any)["reason"])

	rec, env = a.do(t, call{method: http.MethodPost, path: "/api/v1/cart/items", token: token,
		body: fmt.Sprintf(`{"product_id":%q,"quantity":4}`, p.ID)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_stock", env["error"].(map[string]any)["details"].(map[string]any)["reason"])

	rec, _ = a.do(t, call{method: http.MethodPost, path: "/api/v1/checkout", token: token, body: `{"address":"x"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cart")
}

func TestCheckoutReplaysWithIdempotencyKey(t *testing.T) {
	a := newApp(t)
	user := dbtest.CreateUser(t, a.conn, "", "")
	p := dbtest.CreateProduct(t, a.conn, "1500", 5)
	dbtest.CreateOpenCart(t, a.conn, user.ID, map[uuid.UUID]int{p.ID: 1})
	token := a.token(t, user.ID)

	c := call{method: http.MethodPost, path: "/api/v1/checkout", token: token, body: `{"address":"Yopougon"}`,
		headers: map[string]string{"Idempotency-Key": "checkout-1"}}
	first, firstEnv := a.do(t, c)
	require.Equal(t, http.StatusCreated, first.Code)
	second, secondEnv := a.do(t, c)
	require.Equal(t, http.StatusCreated, second.Code)

	assert.Equal(t, data(t, firstEnv)["order_id"], data(t, secondEnv)["order_id"])
	assert.Len(t, a.gateway.initialized, 1)
}

func TestWebhookRejections(t *testing.T) {
	a := newApp(t)

	rec, env := a.do(t, call{method: http.MethodGet, path: "/api/v1/webhooks/paystack"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorCode(env))

	body, _ := signedWebhook("CODM-TRACKER-ABC")
	rec, _ = a.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/paystack", body: body,
		headers: map[string]string{paystack.SignatureHeader: "deadbeef"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = a.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/paystack", body: body})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	malformed := `{"event":`
	rec, _ = a.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/paystack", body: malformed,
		headers: map[string]string{paystack.SignatureHeader: paystack.Sign(testSecret, []byte(malformed))}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown references are acknowledged
	rec, _ = a.do(t, call{method: http.MethodPost, path: "/api/v1/webhooks/paystack", body: body,
		headers: map[string]string{paystack.SignatureHeader: paystack.Sign(testSecret, []byte(body))}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTournamentRoutes(t *testing.T) {
	a := newApp(t)
	user, _ := dbtest.CreateProfile(t, a.conn)
	token := a.token(t, user.ID)
	now := time.Now().UTC()
	solo := dbtest.CreateTournament(t, a.conn, enums.TournamentModeBattleRoyale, enums.TournamentTypeSolo, "2000",
		now.Add(24*time.Hour), now.Add(48*time.Hour))

	path := "/api/v1/tournaments/" + solo.ID.String()
	rec, env := a.do(t, call{method: http.MethodPost, path: path + "/register", token: token,
		body: `{"payment_method":"orange_money"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "2000", data(t, env)["amount_charged"])

	rec, env = a.do(t, call{method: http.MethodPost, path: path + "/register", token: token,
		body: `{"payment_method":"orange_money"}`})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", errorCode(env))

	rec, env = a.do(t, call{method: http.MethodGet, path: path + "/registration", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, data(t, env)["is_registered"])

	rec, env = a.do(t, call{method: http.MethodGet, path: "/api/v1/tournaments", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	upcoming := data(t, env)["upcoming"].([]any)
	require.Len(t, upcoming, 1)
	assert.Equal(t, true, upcoming[0].(map[string]any)["is_registered"])

	rec, env = a.do(t, call{method: http.MethodGet, path: "/api/v1/tournaments"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, data(t, env)["upcoming"].([]any)[0].(map[string]any)["is_registered"])

	rec, _ = a.do(t, call{method: http.MethodGet, path: "/api/v1/tournaments/not-a-uuid/registration", token: token})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	a := newApp(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", bytes.NewReader(nil))
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
