package controllers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/aggpay/aggpay/internal/pkg/payment"
)

// InitializePaymentRequest is the inbound payload for payment initialization.
type InitializePaymentRequest struct {
	CustomerEmail  string         `json:"customerEmail" validate:"required,email"`
	CustomerName   string         `json:"customerName" validate:"required"`
	CustomerPhone  string         `json:"customerPhone"`
	Currency       string         `json:"currency" validate:"required,len=3"`
	Amount         int64          `json:"amount" validate:"required,gt=0"`
	PaymentMethod  string         `json:"paymentMethod" validate:"required,oneof=card mobile_money"`
	CountryCode    string         `json:"countryCode" validate:"required,len=2"`
	SuccessURL     string         `json:"successUrl" validate:"omitempty,url"`
	CancelURL      string         `json:"cancelUrl" validate:"omitempty,url"`
	NotifyURL      string         `json:"notifyUrl" validate:"omitempty,url"`
	IdempotencyKey string         `json:"idempotencyKey"`
	Metadata       map[string]any `json:"metadata"`
}

// PaymentController serves the payment API surface.
type PaymentController struct {
	service *payment.Service
}

// NewPaymentController creates the payment controller.
func NewPaymentController(service *payment.Service) *PaymentController {
	return &PaymentController{service: service}
}

// HandleInitializePayment creates an order, a payment intent and walks the
// provider fallback chain. The Idempotency-Key header wins over the body
// field when both are present.
func (pc *PaymentController) HandleInitializePayment(c *fiber.Ctx) error {
	var req InitializePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(validationError(err))
	}

	idemKey := strings.TrimSpace(c.Get("Idempotency-Key"))
	if idemKey == "" {
		idemKey = strings.TrimSpace(req.IdempotencyKey)
	}

	metadataJSON := ""
	if len(req.Metadata) > 0 {
		if data, err := json.Marshal(req.Metadata); err == nil {
			metadataJSON = string(data)
		}
	}

	result, err := pc.service.InitializePayment(c.UserContext(), payment.InitializePaymentInput{
		CustomerEmail:  req.CustomerEmail,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		Currency:       strings.ToUpper(req.Currency),
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		CountryCode:    strings.ToUpper(req.CountryCode),
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		NotifyURL:      req.NotifyURL,
		IdempotencyKey: idemKey,
		MetadataJSON:   metadataJSON,
	})
	if err != nil {
		if errors.Is(err, payment.ErrNoEligibleProvider) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "no_eligible_provider",
				"message": "No payment provider serves this country, currency and method",
			})
		}
		log.Errorf("initialize payment failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Payment initialization failed"})
	}

	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleGetPayment returns an intent with its order and attempt history.
func (pc *PaymentController) HandleGetPayment(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid payment id"})
	}

	intent, err := pc.service.GetPayment(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Payment not found"})
		}
		log.Errorf("load payment %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payment"})
	}
	return c.JSON(intent)
}

// HandleRefund reverses a succeeded payment.
func (pc *PaymentController) HandleRefund(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid payment id"})
	}

	res, err := pc.service.Refund(c.UserContext(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Payment not found"})
		case errors.Is(err, payment.ErrRefundNotAllowed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "refund_not_allowed", "message": "Payment is not in a refundable state"})
		}
		log.Errorf("refund payment %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Refund failed"})
	}

	if !res.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   res.ErrorCode,
			"message": res.ErrorMessage,
		})
	}
	return c.JSON(fiber.Map{"refunded": true})
}
