package http

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/metrics"
	"github.com/vendorhub/vendor-engage/internal/signature"
)

// verifyWebhook answers the provider's endpoint-registration handshake: echo
// the challenge only when the mode is "subscribe" and the verify token
// matches. The signing secret plays no part here.
func (s *Server) verifyWebhook(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "" || token == "" {
		return c.NoContent(http.StatusBadRequest)
	}
	if mode == "subscribe" && s.verifyToken != "" && token == s.verifyToken {
		s.log.Info("webhook verification succeeded")
		return c.String(http.StatusOK, challenge)
	}
	return c.NoContent(http.StatusForbidden)
}

// handleWebhook is the delivery endpoint. State machine per request:
// received -> signature-checked -> acknowledged -> (async) parsed -> routed.
// Nothing but verification happens before the 200 goes out; the provider's
// retry policy must never wait on our database.
func (s *Server) handleWebhook(c echo.Context) error {
	// Signature covers the exact raw bytes, so read before any parsing.
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		return c.NoContent(http.StatusBadRequest)
	}

	if !s.verifier.Verify(body, c.Request().Header.Get(signature.HeaderSignature)) {
		metrics.WebhookEventsTotal.WithLabelValues("forbidden").Inc()
		s.log.Warn("webhook signature verification failed", zap.String("remote", c.RealIP()))
		return c.NoContent(http.StatusForbidden)
	}

	// Detach from the request context: processing outlives the response.
	go s.processor.ProcessPayload(context.Background(), body)

	return c.NoContent(http.StatusOK)
}
