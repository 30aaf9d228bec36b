package sms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func TestClientSendRequest(t *testing.T) {
	orderID := uuid.New()
	var captured sendRequest
	var auth string

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		auth = req.Header.Get("Authorization")
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		return respond(http.StatusAccepted, `{}`), nil
	})

	client, err := NewClient(config.SMSConfig{GatewayURL: "http://sms.test/send", APIKey: "k1", Timeout: time.Second}, nil,
		WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Send(context.Background(), orderID, MessageOrderReceived, RecipientVendor, enums.LanguageEnglish); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer k1" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if captured.OrderID != orderID.String() || captured.MessageType != "order_received" || captured.RecipientType != "vendor" || captured.Language != "en" {
		t.Fatalf("unexpected payload %+v", captured)
	}
}

func TestClientSendGatewayError(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusBadGateway, "upstream down"), nil
	})
	client, err := NewClient(config.SMSConfig{GatewayURL: "http://sms.test/send"}, nil, WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.Send(context.Background(), uuid.New(), MessageOrderPlaced, RecipientCustomer, enums.LanguageHebrew)
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if cause := errors.Unwrap(err); cause == nil || !strings.Contains(cause.Error(), "status 502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestClientRequiresGatewayAndOrder(t *testing.T) {
	if _, err := NewClient(config.SMSConfig{}, nil); err == nil {
		t.Fatalf("expected missing gateway error")
	}
	client, _ := NewClient(config.SMSConfig{GatewayURL: "http://sms.test"}, nil)
	if err := client.Send(context.Background(), uuid.Nil, MessageOrderPlaced, RecipientCustomer, enums.LanguageHebrew); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
