// Package razorpay wraps the Razorpay SDK for the two calls the backend
// makes: creating a gateway order for a store order, and checking the
// signature the hosted checkout hands back to the browser.
package razorpay

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"

	rzpsdk "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// Config holds Razorpay API credentials.
type Config struct {
	KeyID     string
	KeySecret string
	// Sandbox creates gateway orders locally instead of calling the API.
	Sandbox bool
}

// GatewayOrder is the gateway-side payment session for a store order.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client creates gateway orders and verifies payment signatures.
type Client struct {
	keyID     string
	keySecret string
	orders    orderCreator
}

// NewClient creates a Razorpay client. In sandbox mode no network calls are
// made; gateway order ids are generated locally.
func NewClient(cfg Config) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay key id and secret are required")
	}
	c := &Client{keyID: cfg.KeyID, keySecret: cfg.KeySecret}
	if cfg.Sandbox {
		c.orders = sandboxOrders{}
		log.Println("Razorpay client running in sandbox mode")
	} else {
		c.orders = rzpsdk.NewClient(cfg.KeyID, cfg.KeySecret).Order
	}
	return c, nil
}

// KeyID is the public key the hosted checkout is opened with.
func (c *Client) KeyID() string { return c.keyID }

// CreateOrder opens a gateway payment session for amount paise.
func (c *Client) CreateOrder(amount int64, currency, receipt string) (*GatewayOrder, error) {
	body, err := c.orders.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create razorpay order: %w", err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay order response missing id")
	}
	return &GatewayOrder{ID: id, Amount: amount, Currency: currency, Receipt: receipt}, nil
}

// VerifySignature checks the checkout callback signature.
func (c *Client) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, c.keySecret)
}

// Sign produces the signature Razorpay attaches to a successful checkout:
// hex(HMAC-SHA256(secret, order_id + "|" + payment_id)).
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewID returns a Razorpay-style identifier such as "order_3f9a…".
func NewID(prefix string) string {
	b := make([]byte, 7)
	_, _ = rand.Read(b)
	return prefix + "_" + hex.EncodeToString(b)
}

type sandboxOrders struct{}

func (sandboxOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return map[string]interface{}{
		"id":       NewID("order"),
		"amount":   data["amount"],
		"currency": data["currency"],
		"receipt":  data["receipt"],
		"status":   "created",
	}, nil
}
