package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/Fblink88/ComunidadElMaiten/internal/app"
	"github.com/Fblink88/ComunidadElMaiten/pkg/gatewayclient"
)

const (
	maxWebhookBody     = 64 << 10
	webhookSignatureHd = "X-Flow-Signature"

	outcomeBadSignature = "bad_signature"
	outcomeMalformed    = "malformed"
	outcomeRateLimited  = "rate_limited"
)

// handleGatewayWebhook receives payment status callbacks. The gateway always
// gets an acknowledgement; failures are logged and counted.
func (h *Handler) handleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	defer respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("failed to read gateway callback", "error", err)
		h.recordWebhook(outcomeMalformed)
		return
	}

	if h.webhookSecret != "" && !gatewayclient.VerifyBodySignature(body, r.Header.Get(webhookSignatureHd), h.webhookSecret) {
		h.logger.Warn("gateway callback with invalid signature dropped", "remote_addr", r.RemoteAddr)
		h.recordWebhook(outcomeBadSignature)
		return
	}

	notification, err := parseGatewayNotification(r.Header.Get("Content-Type"), body)
	if err != nil {
		h.logger.Warn("malformed gateway callback", "error", err)
		h.recordWebhook(outcomeMalformed)
		return
	}

	outcome, err := h.service.HandleGatewayCallback(r.Context(), notification)
	if err != nil {
		h.logger.Warn("gateway callback processing failed",
			"pago_id", notification.CommerceOrder,
			"flow_order", notification.FlowOrder,
			"error", err,
		)
	}
	h.recordWebhook(string(outcome))
}

// handleGatewayWebhookLimited acknowledges callbacks over the rate limit
// without processing them.
func (h *Handler) handleGatewayWebhookLimited(w http.ResponseWriter, _ *http.Request) {
	h.recordWebhook(outcomeRateLimited)
	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) recordWebhook(outcome string) {
	if h.webhooks != nil {
		h.webhooks.WebhookProcessed(outcome)
	}
}

// parseGatewayNotification accepts both form-encoded and JSON callbacks. JSON
// fields may arrive as strings or numbers.
func parseGatewayNotification(contentType string, body []byte) (app.GatewayNotification, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return app.GatewayNotification{}, err
		}
		return app.GatewayNotification{
			CommerceOrder: values.Get("commerceOrder"),
			FlowOrder:     values.Get("flowOrder"),
			Status:        values.Get("status"),
		}, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return app.GatewayNotification{}, err
	}
	return app.GatewayNotification{
		CommerceOrder: scalarString(raw["commerceOrder"]),
		FlowOrder:     scalarString(raw["flowOrder"]),
		Status:        scalarString(raw["status"]),
	}, nil
}

func scalarString(value json.RawMessage) string {
	if len(value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err == nil {
		return n.String()
	}
	return ""
}
