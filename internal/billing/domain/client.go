package domain

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrRequestFailed  = errors.New("billing request failed")
	ErrInvalidPayload = errors.New("billing payload invalid")
	ErrUnauthorized   = errors.New("billing authorization rejected")
)

// RawInvoice is the billing system's invoice shape, kept loose on purpose.
// Amounts arrive as numbers or strings, currency and customer refs as plain
// strings or {value, name} objects; the normalizer resolves all of it.
type RawInvoice struct {
	ID          string          `json:"id"`
	DocNumber   string          `json:"docNumber"`
	TxnDate     string          `json:"txnDate"`
	DueDate     string          `json:"dueDate"`
	TotalAmount json.RawMessage `json:"totalAmount"`
	Balance     json.RawMessage `json:"balance"`
	Currency    json.RawMessage `json:"currency"`
	CustomerRef json.RawMessage `json:"customerRef"`
	Status      string          `json:"status"`
	PaymentLink string          `json:"paymentLink"`
}

type ExternalCustomer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Client is the read surface this service requires from the external billing
// system. It never writes to it.
type Client interface {
	ListInvoices(ctx context.Context, externalCustomerID string) ([]RawInvoice, error)
	GetCustomer(ctx context.Context, externalCustomerID string) (*ExternalCustomer, error)
}

// TokenProvider yields the current access token for the billing API. The
// OAuth connection flow that produces tokens lives outside this service.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type StaticTokenProvider struct {
	Value string
}

func (p StaticTokenProvider) Token(context.Context) (string, error) {
	if p.Value == "" {
		return "", ErrUnauthorized
	}
	return p.Value, nil
}
