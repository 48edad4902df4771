package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"ecostore/internal/models"
	"ecostore/internal/repositories"
	"ecostore/internal/services"
	"ecostore/internal/validation"
)

// PaymentHandler exposes the Razorpay payment endpoints.
type PaymentHandler struct {
	service  *services.PaymentService
	validate *validator.Validate
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		service:  service,
		validate: validation.New(),
	}
}

// RegisterRoutes registers the payment routes under /orders.
func (h *PaymentHandler) RegisterRoutes(router fiber.Router) {
	paymentRoutes := router.Group("/orders")
	paymentRoutes.Post("/initiate-razorpay-payment", h.HandleInitiatePayment)
	paymentRoutes.Post("/verify-razorpay-payment", h.HandleVerifyPayment)
}

// HandleInitiatePayment opens (or reopens) the gateway order for a pending
// prepaid order.
func (h *PaymentHandler) HandleInitiatePayment(c *fiber.Ctx) error {
	var req struct {
		OrderID string `json:"orderId"`
	}
	if err := c.BodyParser(&req); err != nil || req.OrderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "orderId is required",
		})
	}

	session, err := h.service.InitiatePayment(req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": fmt.Sprintf("Order with ID %s not found", req.OrderID),
			})
		case errors.Is(err, services.ErrPaymentNotRequired):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Order is not paid online",
				"error":   err.Error(),
			})
		case errors.Is(err, services.ErrOrderNotPending):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Order is not awaiting payment",
				"error":   err.Error(),
			})
		}
		log.Printf("Error initiating payment for order %s: %v", req.OrderID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Could not create payment order",
			"error":   err.Error(),
		})
	}
	return c.JSON(session)
}

// HandleVerifyPayment checks a checkout callback and marks the order paid.
func (h *PaymentHandler) HandleVerifyPayment(c *fiber.Ctx) error {
	var req models.PaymentCallback
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.VerifyPaymentResponse{
			Message: "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.VerifyPaymentResponse{
			Message: "Missing payment details",
		})
	}

	order, err := h.service.VerifyPayment(req)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrOrderNotFound):
			return c.Status(fiber.StatusNotFound).JSON(models.VerifyPaymentResponse{
				Message: fmt.Sprintf("Order with ID %s not found", req.OrderID),
			})
		case errors.Is(err, services.ErrGatewayOrderMismatch), errors.Is(err, services.ErrInvalidSignature):
			return c.Status(fiber.StatusBadRequest).JSON(models.VerifyPaymentResponse{
				Message: "Payment verification failed",
			})
		case errors.Is(err, services.ErrOrderNotPending):
			return c.Status(fiber.StatusConflict).JSON(models.VerifyPaymentResponse{
				Message: "Order is not awaiting payment",
			})
		}
		log.Printf("Error verifying payment for order %s: %v", req.OrderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.VerifyPaymentResponse{
			Message: "Could not verify payment",
		})
	}
	return c.JSON(models.VerifyPaymentResponse{Success: true, Order: order})
}
