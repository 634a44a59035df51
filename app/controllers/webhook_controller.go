package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/aggpay/aggpay/app/models"
)

// WebhookProcessor ingests one raw provider delivery.
type WebhookProcessor interface {
	ProcessEvent(ctx context.Context, providerCode string, payload []byte, signature string) (*models.WebhookEvent, error)
}

// WebhookController ingests provider notifications.
type WebhookController struct {
	processor WebhookProcessor
}

// NewWebhookController creates the webhook controller.
func NewWebhookController(processor WebhookProcessor) *WebhookController {
	return &WebhookController{processor: processor}
}

// HandleProviderWebhook receives one notification for /webhooks/:provider.
// Providers retry on non-2xx, so rejected or unmatched deliveries answer 200
// and stay visible on the persisted event row. A storage fault answers 500 so
// the provider redelivers instead of stranding the payment.
func (wc *WebhookController) HandleProviderWebhook(c *fiber.Ctx) error {
	providerCode := c.Params("provider")

	// fasthttp reuses the request buffer after the handler returns; the
	// payload outlives it in the event log, so copy.
	payload := make([]byte, len(c.Body()))
	copy(payload, c.Body())

	event, err := wc.processor.ProcessEvent(c.UserContext(), providerCode, payload, signatureFromHeaders(c, providerCode))
	if err != nil {
		log.Errorf("webhook from %s failed: %v", providerCode, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to process webhook"})
	}

	return c.JSON(fiber.Map{"received": true, "eventId": event.ID})
}

// signatureFromHeaders pulls the signature from the header each provider
// actually sends.
func signatureFromHeaders(c *fiber.Ctx, providerCode string) string {
	switch providerCode {
	case models.ProviderCodeStripe:
		return c.Get("Stripe-Signature")
	case models.ProviderCodeCinetPay:
		return c.Get("x-token")
	case models.ProviderCodeKKiaPay:
		return c.Get("x-kkiapay-signature")
	default:
		return c.Get("X-Webhook-Signature")
	}
}
