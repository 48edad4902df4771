package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ecostore/internal/checkout"
	"ecostore/internal/events"
	"ecostore/internal/handlers"
	"ecostore/internal/models"
	"ecostore/internal/repositories"
	"ecostore/internal/services"
	"ecostore/internal/storage"
	"ecostore/pkg/razorpay"
)

const (
	testKeySecret       = "rzp_test_secret"
	testRegistrationKey = "first-admin"
)

type testApp struct {
	app         *fiber.App
	broadcaster *events.Broadcaster
	stream      *handlers.StreamHandler
	auth        *services.AuthService
}

// setupApp wires every handler against an in-memory SQLite database and a
// sandbox Razorpay client.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.User{}))

	gateway, err := razorpay.NewClient(razorpay.Config{KeyID: "rzp_test_key", KeySecret: testKeySecret, Sandbox: true})
	require.NoError(t, err)

	broadcaster := events.NewBroadcaster(8)
	orderRepo := repositories.NewGORMOrderRepository(db)
	authService := services.NewAuthService(repositories.NewGORMUserRepository(db), "test_jwt_secret", time.Hour)
	stream := handlers.NewStreamHandler(broadcaster, authService, 20*time.Millisecond)

	app := fiber.New()
	api := app.Group("/api")
	handlers.NewAuthHandler(authService, testRegistrationKey).RegisterRoutes(api)
	stream.RegisterRoutes(api)
	handlers.NewPaymentHandler(services.NewPaymentService(orderRepo, gateway, broadcaster)).RegisterRoutes(api)
	handlers.NewOrderHandler(services.NewOrderService(orderRepo, broadcaster), authService).RegisterRoutes(api)

	return &testApp{app: app, broadcaster: broadcaster, stream: stream, auth: authService}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return a.send(t, method, path, body, headers)
}

func (a *testApp) send(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// register signs up an admin with the bootstrap registration key.
func (a *testApp) register(t *testing.T, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	return a.send(t, http.MethodPost, "/api/auth/register", body, map[string]string{
		"X-Registration-Key": testRegistrationKey,
	})
}

func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	status, _ := a.register(t, map[string]string{
		"username": "admin",
		"email":    "admin@ecostore.in",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, status)

	status, body := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, status)
	return body["token"].(string)
}

func orderDraft(method models.PaymentMethod) models.OrderDraft {
	return models.OrderDraft{
		OrderID: uuid.New().String(),
		Items: []models.OrderItem{
			{ProductID: "bamboo-brush", Name: "Bamboo Toothbrush", Quantity: 2, Price: 300},
		},
		Customer:        models.Customer{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210"},
		ShippingAddress: models.ShippingAddress{Address1: "12 MG Road", City: "Pune", State: "Maharashtra", Pincode: "411001", Country: "India"},
		PaymentMethod:   method,
	}
}

func orderField(body map[string]interface{}, field string) interface{} {
	order, _ := body["order"].(map[string]interface{})
	return order[field]
}

func TestAuthRegisterAndLogin(t *testing.T) {
	a := setupApp(t)
	token := a.adminToken(t)
	assert.NotEmpty(t, token)

	status, body := a.register(t, map[string]string{
		"username": "admin",
		"email":    "other@ecostore.in",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Registration failed", body["message"])

	status, body = a.register(t, map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "email")

	status, _ = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "admin",
		"password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthRegister_RequiresKeyOrAdmin(t *testing.T) {
	a := setupApp(t)
	intruder := map[string]string{
		"username": "intruder",
		"email":    "intruder@example.com",
		"password": "password123",
	}

	status, _ := a.do(t, http.MethodPost, "/api/auth/register", intruder, "")
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.send(t, http.MethodPost, "/api/auth/register", intruder, map[string]string{
		"X-Registration-Key": "not-the-key",
	})
	assert.Equal(t, http.StatusForbidden, status)

	// the rejected account cannot log in, so the order list stays closed
	status, body := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "intruder",
		"password": "password123",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Nil(t, body["token"])
	status, _ = a.do(t, http.MethodGet, "/api/orders", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	// an existing admin can add another without the key
	token := a.adminToken(t)
	status, _ = a.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "ops",
		"email":    "ops@ecostore.in",
		"password": "password123",
	}, token)
	assert.Equal(t, http.StatusCreated, status)
}

func TestCreateOrder_COD(t *testing.T) {
	a := setupApp(t)
	draft := orderDraft(models.PaymentCashOnDelivery)
	draft.Total = 1

	status, body := a.do(t, http.MethodPost, "/api/orders", draft, "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, draft.OrderID, orderField(body, "orderId"))
	assert.Equal(t, float64(600), orderField(body, "total"))
	assert.Equal(t, string(models.PaymentSuccess), orderField(body, "paymentStatus"))

	status, body = a.do(t, http.MethodPost, "/api/orders", draft, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Order already exists", body["message"])
}

func TestCreateOrder_StorefrontDraft(t *testing.T) {
	a := setupApp(t)
	srv := httptest.NewServer(adaptor.FiberApp(a.app))
	defer srv.Close()
	client := checkout.NewClient(checkout.ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second},
		checkout.NewLocalState(storage.NewMemoryStore()))

	b := checkout.NewDraftBuilder()
	b.SetItems([]models.OrderItem{{ProductID: "bamboo-brush", Name: "Bamboo <Toothbrush>", Quantity: 2, Price: 300}})
	b.SetCustomer(models.Customer{FirstName: "Siobhan", LastName: "Obrien", Email: "o'brien@example.com", Phone: "9876543210"})
	b.SetShippingAddress(models.ShippingAddress{Address1: "12 MG Road", Address2: "Flat 4 & 5", City: "Pune", State: "Maharashtra", Pincode: "411001"})
	b.SetGSTNumber("27abcde1234f1z5")
	require.NoError(t, b.ApplyCoupon("freeshipping"))
	require.NoError(t, b.Validate())
	draft := b.Freeze()

	order, err := client.CreateOrder(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, draft.OrderID, order.OrderID)
	assert.Equal(t, "o'brien@example.com", order.Customer.Email)
	assert.Equal(t, "27ABCDE1234F1Z5", order.GSTNumber)
	assert.Equal(t, "FREESHIPPING", order.Coupon.Code)
	assert.Equal(t, "Flat 4 &amp; 5", order.ShippingAddress.Address2)
	assert.Equal(t, "Bamboo &lt;Toothbrush&gt;", order.Items[0].Name)
	assert.Equal(t, models.PaymentSuccess, order.PaymentStatus)
}

func TestCreateOrder_Rejected(t *testing.T) {
	a := setupApp(t)

	draft := orderDraft(models.PaymentCashOnDelivery)
	draft.Customer.Phone = "98765"
	status, body := a.do(t, http.MethodPost, "/api/orders", draft, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "OrderDraft.customer.phone")

	draft = orderDraft(models.PaymentCashOnDelivery)
	draft.Coupon.Code = "HALFOFF"
	status, body = a.do(t, http.MethodPost, "/api/orders", draft, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid coupon code", body["message"])

	status, _ = a.do(t, http.MethodPost, "/api/orders", orderDraft(models.PaymentCashOnDelivery), "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPrepaidOrderLifecycle(t *testing.T) {
	a := setupApp(t)
	draft := orderDraft(models.PaymentGatewayPrepaid)

	status, body := a.do(t, http.MethodPost, "/api/orders", draft, "")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, string(models.PaymentPending), orderField(body, "paymentStatus"))

	status, body = a.do(t, http.MethodPost, "/api/orders/initiate-razorpay-payment", map[string]string{"orderId": draft.OrderID}, "")
	require.Equal(t, http.StatusOK, status)
	gwOrderID := body["razorpayOrderId"].(string)
	assert.Equal(t, "rzp_test_key", body["keyId"])
	data := body["orderData"].(map[string]interface{})
	assert.Equal(t, float64(60000), data["amount"])
	assert.Equal(t, "INR", data["currency"])

	status, body = a.do(t, http.MethodPost, "/api/orders/initiate-razorpay-payment", map[string]string{"orderId": draft.OrderID}, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, gwOrderID, body["razorpayOrderId"])

	callback := models.PaymentCallback{
		OrderID:           draft.OrderID,
		RazorpayPaymentID: "pay_test1",
		RazorpayOrderID:   gwOrderID,
		RazorpaySignature: razorpay.Sign("wrong", gwOrderID, "pay_test1"),
	}
	status, body = a.do(t, http.MethodPost, "/api/orders/verify-razorpay-payment", callback, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Payment verification failed", body["message"])

	status, body = a.do(t, http.MethodGet, "/api/orders/pending/"+draft.OrderID, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.PaymentPending), orderField(body, "paymentStatus"))

	callback.RazorpaySignature = razorpay.Sign(testKeySecret, gwOrderID, "pay_test1")
	status, body = a.do(t, http.MethodPost, "/api/orders/verify-razorpay-payment", callback, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, string(models.PaymentSuccess), orderField(body, "paymentStatus"))

	status, body = a.do(t, http.MethodGet, "/api/orders/pending/"+draft.OrderID, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.PaymentSuccess), orderField(body, "paymentStatus"))

	status, _ = a.do(t, http.MethodDelete, "/api/orders/"+draft.OrderID, nil, "")
	assert.Equal(t, http.StatusConflict, status)
}

func TestInitiatePayment_Rejected(t *testing.T) {
	a := setupApp(t)

	status, _ := a.do(t, http.MethodPost, "/api/orders/initiate-razorpay-payment", map[string]string{"orderId": "missing"}, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodPost, "/api/orders/initiate-razorpay-payment", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	cod := orderDraft(models.PaymentCashOnDelivery)
	status, _ = a.do(t, http.MethodPost, "/api/orders", cod, "")
	require.Equal(t, http.StatusCreated, status)
	status, _ = a.do(t, http.MethodPost, "/api/orders/initiate-razorpay-payment", map[string]string{"orderId": cod.OrderID}, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := a.do(t, http.MethodPost, "/api/orders/verify-razorpay-payment", map[string]string{"orderId": cod.OrderID}, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestCancelPendingOrder(t *testing.T) {
	a := setupApp(t)
	draft := orderDraft(models.PaymentGatewayPrepaid)
	status, _ := a.do(t, http.MethodPost, "/api/orders", draft, "")
	require.Equal(t, http.StatusCreated, status)

	status, body := a.do(t, http.MethodDelete, "/api/orders/"+draft.OrderID, nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.OrderCancelled), orderField(body, "orderStatus"))

	status, _ = a.do(t, http.MethodGet, "/api/orders/pending/"+draft.OrderID, nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = a.do(t, http.MethodDelete, "/api/orders/"+draft.OrderID, nil, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminEndpoints(t *testing.T) {
	a := setupApp(t)
	draft := orderDraft(models.PaymentCashOnDelivery)
	status, _ := a.do(t, http.MethodPost, "/api/orders", draft, "")
	require.Equal(t, http.StatusCreated, status)

	status, _ = a.do(t, http.MethodGet, "/api/orders", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = a.do(t, http.MethodPatch, "/api/orders/"+draft.OrderID+"/status", map[string]string{"status": "Delivered"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	token := a.adminToken(t)
	status, body := a.do(t, http.MethodGet, "/api/orders", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["orders"], 1)

	status, body = a.do(t, http.MethodPatch, "/api/orders/"+draft.OrderID+"/status", map[string]string{"status": "Delivered"}, token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(models.OrderDelivered), orderField(body, "orderStatus"))

	status, _ = a.do(t, http.MethodPatch, "/api/orders/"+draft.OrderID+"/status", map[string]string{"status": "Lost"}, token)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.do(t, http.MethodPatch, "/api/orders/missing/status", map[string]string{"status": "Delivered"}, token)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOrderStream(t *testing.T) {
	a := setupApp(t)
	token := a.adminToken(t)
	a.stream.MaxAge = 300 * time.Millisecond

	go func() {
		for a.broadcaster.Subscribers() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		order := &models.Order{OrderID: "o-stream", Customer: models.Customer{FirstName: "Asha", LastName: "Rao"}, Total: 600}
		_ = a.broadcaster.PublishOrderEvent(events.NewOrderEvent(events.OrderCreated, order))
	}()

	req := httptest.NewRequest(http.MethodGet, "/api/orders/stream", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := a.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.HasPrefix(body, "retry: 20\n\n"), body)
	assert.Contains(t, body, "event: order\n")
	assert.Contains(t, body, `"orderId":"o-stream"`)
	assert.Contains(t, body, `"type":"order.created"`)
	assert.Contains(t, body, ": ping\n\n")
	assert.Equal(t, 0, a.broadcaster.Subscribers())
}

func TestOrderStream_RequiresAdmin(t *testing.T) {
	a := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/api/orders/stream", nil)
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
