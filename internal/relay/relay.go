// Package relay forwards verified webhook events to downstream consumers:
// a Kafka topic for the analytics pipeline and/or a signed HTTP endpoint.
// Forwarding is best-effort and never blocks the provider acknowledgment.
package relay

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/config"
	"github.com/vendorhub/vendor-engage/internal/signature"
)

type Relay struct {
	writer *kafka.Writer
	url    string
	secret string
	client *http.Client
	log    *zap.Logger
}

func New(cfg config.RelayConfig, log *zap.Logger) *Relay {
	r := &Relay{
		url:    cfg.URL,
		secret: cfg.Secret,
		log:    log,
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	r.client = &http.Client{Timeout: timeout}

	if len(cfg.Brokers) > 0 && cfg.Topic != "" {
		r.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	return r
}

// Forward hands the raw event to every configured consumer. Errors are
// logged, never returned: relay failure must not affect local processing.
func (r *Relay) Forward(ctx context.Context, body []byte) {
	if r.writer != nil {
		if err := r.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
			r.log.Warn("relay: kafka publish failed", zap.Error(err))
		}
	}
	if r.url != "" {
		r.forwardHTTP(ctx, body)
	}
}

func (r *Relay) forwardHTTP(ctx context.Context, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		r.log.Warn("relay: build request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderRelaySignature, signature.Sign(r.secret, body))

	res, err := r.client.Do(req)
	if err != nil {
		r.log.Warn("relay: http forward failed", zap.Error(err))
		return
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		r.log.Warn("relay: http forward rejected", zap.Int("status", res.StatusCode))
	}
}

func (r *Relay) Close() error {
	if r.writer != nil {
		return r.writer.Close()
	}
	return nil
}
