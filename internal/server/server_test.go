package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	catalogdomain "github.com/smallbiznis/orbit/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/orbit/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/orbit/internal/catalog/service"
	"github.com/smallbiznis/orbit/internal/clock"
	"github.com/smallbiznis/orbit/internal/config"
	customerdomain "github.com/smallbiznis/orbit/internal/customer/domain"
	customerrepository "github.com/smallbiznis/orbit/internal/customer/repository"
	customerservice "github.com/smallbiznis/orbit/internal/customer/service"
	invoicedomain "github.com/smallbiznis/orbit/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/orbit/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/orbit/internal/invoice/service"
	"github.com/smallbiznis/orbit/internal/observability/metrics"
	"github.com/smallbiznis/orbit/internal/payment/adapters/sandbox"
	subscriptiondomain "github.com/smallbiznis/orbit/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/orbit/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/orbit/internal/subscription/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&catalogdomain.Product{},
		&catalogdomain.Price{},
		&subscriptiondomain.Subscription{},
		&invoicedomain.Invoice{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	gateway := sandbox.NewGateway()
	billingMetrics := metrics.NewBillingMetricsWith(prometheus.NewRegistry())

	catalogSvc := catalogservice.New(catalogservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Repo:  catalogrepository.Provide(),
	})
	customerSvc := customerservice.New(customerservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fakeClock,
		Repo:    customerrepository.Provide(),
		Gateway: gateway,
	})
	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Clock:   fakeClock,
		Repo:    invoicerepository.Provide(),
		Gateway: gateway,
		Metrics: billingMetrics,
	})
	subscriptionSvc := subscriptionservice.New(subscriptionservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		Repo:       subscriptionrepository.Provide(),
		CatalogSvc: catalogSvc,
		InvoiceSvc: invoiceSvc,
	})

	return NewServer(ServerParams{
		Gin:             NewEngine(),
		Cfg:             config.Config{},
		CustomerSvc:     customerSvc,
		CatalogSvc:      catalogSvc,
		SubscriptionSvc: subscriptionSvc,
		InvoiceSvc:      invoiceSvc,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Data
}

func TestHealthEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateCustomerEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/customers", map[string]any{
		"name":           "Ada Lovelace",
		"email":          "ada@example.com",
		"payment_method": "tok_visa",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	require.Equal(t, "ada@example.com", data["email"])
	require.NotEmpty(t, data["id"])
}

func TestCreateCustomerValidationError(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/customers", map[string]any{
		"name":  "",
		"email": "ada@example.com",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "validation_error")
}

func TestGetCustomerNotFound(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodGet, "/v1/customers/123456789", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSubscriptionUnknownCustomerNotFound(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/products", map[string]any{
		"name": "Pro Plan",
		"prices": []map[string]any{
			{"currency": "USD", "amount": "49", "interval": "month"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeData(t, rec)
	productID := product["id"].(string)
	priceID := product["prices"].([]any)[0].(map[string]any)["id"].(string)

	rec = doJSON(t, s, http.MethodPost, "/v1/subscriptions", map[string]any{
		"customer_id": "123456789",
		"product_id":  productID,
		"price_id":    priceID,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "not_found")
}

func TestCreateInvoiceUnknownCustomerNotFound(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/invoices", map[string]any{
		"customer_id": "123456789",
		"amount":      "25",
		"currency":    "USD",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "not_found")
}

func TestSubscriptionLifecycleOverHTTP(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/customers", map[string]any{
		"name":           "Ada Lovelace",
		"email":          "ada@example.com",
		"payment_method": "tok_visa",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	customerID := decodeData(t, rec)["id"].(string)

	rec = doJSON(t, s, http.MethodPost, "/v1/products", map[string]any{
		"name": "Pro Plan",
		"prices": []map[string]any{
			{"currency": "USD", "amount": "49", "interval": "month"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	product := decodeData(t, rec)
	productID := product["id"].(string)
	priceID := product["prices"].([]any)[0].(map[string]any)["id"].(string)

	rec = doJSON(t, s, http.MethodPost, "/v1/subscriptions", map[string]any{
		"customer_id": customerID,
		"product_id":  productID,
		"price_id":    priceID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	created := decodeData(t, rec)
	invoiceID := created["invoice"].(map[string]any)["id"].(string)
	subscriptionID := created["subscription"].(map[string]any)["id"].(string)

	rec = doJSON(t, s, http.MethodPost, "/v1/invoices/"+invoiceID+"/process", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	processed := decodeData(t, rec)
	require.Equal(t, true, processed["paid"])

	rec = doJSON(t, s, http.MethodGet, "/v1/customers/"+customerID+"/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/subscriptions/"+subscriptionID+"/cancel", map[string]any{
		"immediate": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	canceled := decodeData(t, rec)
	require.Equal(t, "canceled", canceled["status"])
}

func TestDeleteInvoiceEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/customers", map[string]any{
		"name":           "Ada Lovelace",
		"email":          "ada@example.com",
		"payment_method": "tok_visa",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	customerID := decodeData(t, rec)["id"].(string)

	rec = doJSON(t, s, http.MethodPost, "/v1/invoices", map[string]any{
		"customer_id": customerID,
		"amount":      "25",
		"currency":    "USD",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	invoiceID := decodeData(t, rec)["id"].(string)

	rec = doJSON(t, s, http.MethodDelete, "/v1/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeData(t, rec)["deleted"])

	rec = doJSON(t, s, http.MethodGet, "/v1/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
