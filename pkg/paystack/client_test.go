package paystack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("sk_test_abc", WithBaseURL("http://paystack.test/"), WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresSecret(t *testing.T) {
	_, err := NewClient("   ")
	require.Error(t, err)
}

func TestInitializeSendsPayload(t *testing.T) {
	var captured map[string]any
	var capturedReq *http.Request
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedReq = req
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		return jsonResponse(http.StatusOK, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"CODM-TRACKER-ABC"}}`), nil
	})

	tx, err := client.Initialize(context.Background(), InitializeRequest{
		Email:       "player@example.com",
		Amount:      ToSubunits(decimal.RequireFromString("6000")),
		Currency:    "XOF",
		Reference:   "CODM-TRACKER-ABC",
		CallbackURL: "http://localhost/callback",
		Metadata:    map[string]any{"order_number": "ORD-x"},
		Channels:    DefaultChannels,
	})
	require.NoError(t, err)

	assert.Equal(t, "http://paystack.test/transaction/initialize", capturedReq.URL.String())
	assert.Equal(t, http.MethodPost, capturedReq.Method)
	assert.Equal(t, "Bearer sk_test_abc", capturedReq.Header.Get("Authorization"))
	assert.Equal(t, float64(600000), captured["amount"])
	assert.Equal(t, "XOF", captured["currency"])
	assert.Len(t, captured["channels"], 4)
	assert.Equal(t, "https://checkout.paystack.com/abc", tx.AuthorizationURL)
	assert.Equal(t, "CODM-TRACKER-ABC", tx.Reference)
}

func TestInitializeRejectedByGateway(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":false,"message":"Invalid key"}`), nil
	})
	_, err := client.Initialize(context.Background(), InitializeRequest{Email: "a@b.c", Amount: 100})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestInitializeHTTPFailure(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"status":false,"message":"Invalid key"}`), nil
	})
	_, err := client.Initialize(context.Background(), InitializeRequest{Email: "a@b.c", Amount: 100})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
}

func TestInitializeValidatesInput(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	_, err := client.Initialize(context.Background(), InitializeRequest{Amount: 100})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	_, err = client.Initialize(context.Background(), InitializeRequest{Email: "a@b.c"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestVerifyReturnsStatus(t *testing.T) {
	var capturedURL string
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{"status":true,"message":"Verification successful","data":{"status":"success","reference":"CODM-TRACKER-ABC","amount":600000,"currency":"XOF","gateway_response":"Approved"}}`), nil
	})

	tx, err := client.Verify(context.Background(), " CODM-TRACKER-ABC ")
	require.NoError(t, err)
	assert.Equal(t, "http://paystack.test/transaction/verify/CODM-TRACKER-ABC", capturedURL)
	assert.True(t, tx.Succeeded())
	assert.Equal(t, int64(600000), tx.Amount)
}

func TestVerifyAbandonedIsNotSuccess(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":true,"data":{"status":"abandoned","reference":"R"}}`), nil
	})
	tx, err := client.Verify(context.Background(), "R")
	require.NoError(t, err)
	assert.False(t, tx.Succeeded())
}

func TestNilClientIsDependencyError(t *testing.T) {
	var client *Client
	_, err := client.Verify(context.Background(), "R")
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
	assert.False(t, client.VerifySignature([]byte("{}"), "abc"))
}

func TestToSubunits(t *testing.T) {
	assert.Equal(t, int64(100050), ToSubunits(decimal.RequireFromString("1000.50")))
	assert.Equal(t, int64(0), ToSubunits(decimal.Zero))
}
