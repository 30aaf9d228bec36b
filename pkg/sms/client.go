// Package sms delivers order text messages through an HTTP gateway. The
// gateway resolves phone numbers and templates from the order id, so callers
// only name the message and its audience.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/resilience"
)

// MessageType selects the gateway template.
type MessageType string

const (
	MessageOrderPlaced   MessageType = "order_placed"
	MessageOrderReceived MessageType = "order_received"
)

// Recipient selects whose phone the gateway resolves.
type Recipient string

const (
	RecipientVendor   Recipient = "vendor"
	RecipientCustomer Recipient = "customer"
)

const responseBodyReadLimit int64 = 1024

var errGatewayURLRequired = errors.New("sms gateway url is required")

// Sender sends one templated message about an order.
type Sender interface {
	Send(ctx context.Context, orderID uuid.UUID, messageType MessageType, recipient Recipient, language enums.Language) error
}

// Client posts messages to the gateway behind a circuit breaker.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	breaker    *resilience.Breaker
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a gateway client from config.
func NewClient(cfg config.SMSConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	gateway := strings.TrimSpace(cfg.GatewayURL)
	if gateway == "" {
		return nil, errGatewayURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        gateway,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		breaker:    resilience.NewBreaker("sms", resilience.BreakerSettings{}, logg),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type sendRequest struct {
	OrderID       string `json:"order_id"`
	MessageType   string `json:"message_type"`
	RecipientType string `json:"recipient_type"`
	Language      string `json:"language"`
}

// Send asks the gateway to deliver messageType to recipient for order.
func (c *Client) Send(ctx context.Context, orderID uuid.UUID, messageType MessageType, recipient Recipient, language enums.Language) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "sms client not configured")
	}
	if orderID == uuid.Nil {
		return pkgerrors.Validation("order id is required")
	}
	payload, err := json.Marshal(sendRequest{
		OrderID:       orderID.String(),
		MessageType:   string(messageType),
		RecipientType: string(recipient),
		Language:      language.String(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal sms request")
	}

	err = c.breaker.Do(func() error {
		return c.post(ctx, payload)
	})
	if err != nil {
		return pkgerrors.Dependency(err, "sms gateway request failed")
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Log records messages instead of sending them. Used when no gateway is
// configured.
type Log struct {
	logg *logger.Logger
}

func NewLog(logg *logger.Logger) *Log {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Log{logg: logg}
}

func (l *Log) Send(ctx context.Context, orderID uuid.UUID, messageType MessageType, recipient Recipient, language enums.Language) error {
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"order_id":       orderID.String(),
		"message_type":   messageType,
		"recipient_type": recipient,
		"language":       language,
	}), "sms suppressed (no gateway)")
	return nil
}
