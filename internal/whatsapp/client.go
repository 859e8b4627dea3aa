package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vendorhub/vendor-engage/internal/config"
)

// Sender is the outbound transport contract consumed by flows and schedulers.
type Sender interface {
	SendTemplate(ctx context.Context, phone, templateName string) (string, error)
	SendText(ctx context.Context, phone, text string) (string, error)
	SendInteractiveButtons(ctx context.Context, phone, bodyText string, buttons []Button) (string, error)
}

type Button struct {
	ID    string
	Title string
}

var ErrBreakerOpen = fmt.Errorf("whatsapp: circuit breaker open")

// Client talks to the Cloud API messages endpoint. All sends share one
// breaker: the endpoint is a single upstream, not a provider pool.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	client        *http.Client
	br            *breaker
}

func NewClient(cfg config.WhatsAppConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:       cfg.BaseURL,
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
		client:        &http.Client{Timeout: timeout},
		br:            newBreaker(cfg.Breaker.FailThreshold, cfg.Breaker.OpenFor),
	}
}

// Enabled reports whether transport credentials are configured. A disabled
// client is a configuration error for the send path, not a process crash.
func (c *Client) Enabled() bool {
	return c.accessToken != "" && c.phoneNumberID != ""
}

func (c *Client) SendTemplate(ctx context.Context, phone, templateName string) (string, error) {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "template",
		"template": map[string]any{
			"name":     templateName,
			"language": map[string]string{"code": "en"},
		},
	})
}

func (c *Client) SendText(ctx context.Context, phone, text string) (string, error) {
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]string{"body": text},
	})
}

func (c *Client) SendInteractiveButtons(ctx context.Context, phone, bodyText string, buttons []Button) (string, error) {
	btns := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, map[string]any{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": b.Title},
		})
	}
	return c.post(ctx, map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": bodyText},
			"action": map[string]any{"buttons": btns},
		},
	})
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// post sends one message payload and returns the provider message id.
func (c *Client) post(ctx context.Context, payload map[string]any) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("whatsapp: transport credentials not configured")
	}
	if !c.br.tryAcquire() {
		return "", ErrBreakerOpen
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.br.onSuccess() // marshal failure says nothing about the upstream
		return "", err
	}

	url := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.br.onSuccess()
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	res, err := c.client.Do(req)
	if err != nil {
		c.br.onFailure()
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		c.br.onFailure()
		return "", fmt.Errorf("whatsapp: send status=%d", res.StatusCode)
	}
	c.br.onSuccess()

	var out sendResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil || len(out.Messages) == 0 {
		// accepted but unparseable response; treat as sent without an id
		return "", nil
	}
	return out.Messages[0].ID, nil
}
