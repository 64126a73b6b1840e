package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	billingdomain "github.com/ledgerlinklabs/ledgerlink/internal/billing/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/config"
)

type HTTPClient struct {
	baseURL string
	tokens  billingdomain.TokenProvider
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPClient(cfg config.Config, tokens billingdomain.TokenProvider, log *zap.Logger) *HTTPClient {
	timeout := cfg.Billing.FetchTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.Billing.BaseURL, "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("billing.client"),
	}
}

type listInvoicesResponse struct {
	Invoices []billingdomain.RawInvoice `json:"invoices"`
}

type getCustomerResponse struct {
	Customer billingdomain.ExternalCustomer `json:"customer"`
}

func (c *HTTPClient) ListInvoices(ctx context.Context, externalCustomerID string) ([]billingdomain.RawInvoice, error) {
	var out listInvoicesResponse
	path := "/v1/customers/" + url.PathEscape(strings.TrimSpace(externalCustomerID)) + "/invoices"
	if err := c.doGet(ctx, path, &out); err != nil {
		return nil, err
	}
	if out.Invoices == nil {
		// Zero invoices is a success, not a failure.
		return []billingdomain.RawInvoice{}, nil
	}
	return out.Invoices, nil
}

func (c *HTTPClient) GetCustomer(ctx context.Context, externalCustomerID string) (*billingdomain.ExternalCustomer, error) {
	var out getCustomerResponse
	path := "/v1/customers/" + url.PathEscape(strings.TrimSpace(externalCustomerID))
	if err := c.doGet(ctx, path, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Customer.ID) == "" {
		return nil, billingdomain.ErrInvalidPayload
	}
	return &out.Customer, nil
}

func (c *HTTPClient) doGet(ctx context.Context, path string, out any) error {
	if c.baseURL == "" {
		return billingdomain.ErrRequestFailed
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", billingdomain.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return billingdomain.ErrUnauthorized
	case resp.StatusCode >= http.StatusBadRequest:
		c.log.Warn("billing request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", billingdomain.ErrRequestFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", billingdomain.ErrInvalidPayload, err)
	}
	return nil
}
