package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	billingdomain "github.com/ledgerlinklabs/ledgerlink/internal/billing/domain"
)

const fallbackDocNumber = "N/A"

// Normalizer turns schema-variable raw billing records into canonical
// invoices. It is pure: same input, same output.
type Normalizer struct {
	// DefaultCurrency is used when the raw record's currency cannot be
	// resolved to a plain code.
	DefaultCurrency string
	// PayLinkBase, when set, is used to construct a payment link for
	// unpaid invoices that carry no direct link from the billing system.
	PayLinkBase string
}

// Normalize returns ErrInvalidRecord only for records missing an id; those
// are dropped by the caller without failing the customer's batch. Malformed
// amounts degrade to zero so the row still lists and surfaces the anomaly
// instead of silently vanishing.
func (n Normalizer) Normalize(raw billingdomain.RawInvoice, displayName string) (NormalizedInvoice, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return NormalizedInvoice{}, ErrInvalidRecord
	}

	inv := NormalizedInvoice{
		ID:           id,
		DocNumber:    strings.TrimSpace(raw.DocNumber),
		TxnDate:      parseDate(raw.TxnDate),
		DueDate:      parseDate(raw.DueDate),
		TotalAmount:  coerceAmount(raw.TotalAmount),
		Balance:      coerceAmount(raw.Balance),
		Currency:     n.resolveCurrency(raw.Currency),
		CustomerName: resolveCustomerName(raw.CustomerRef, displayName),
		Paid:         strings.EqualFold(strings.TrimSpace(raw.Status), "paid"),
	}
	if inv.DocNumber == "" {
		inv.DocNumber = fallbackDocNumber
	}
	inv.PaymentURL = n.resolvePaymentURL(id, strings.TrimSpace(raw.PaymentLink), inv.Balance)
	return inv, nil
}

// coerceAmount accepts JSON numbers, quoted numbers, or garbage. Anything
// that does not resolve to a finite non-negative number collapses to zero.
func coerceAmount(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// resolveCurrency accepts a plain code or a {value, name} ref object.
func (n Normalizer) resolveCurrency(raw json.RawMessage) string {
	fallback := strings.ToUpper(strings.TrimSpace(n.DefaultCurrency))
	if fallback == "" {
		fallback = "USD"
	}
	if len(raw) == 0 {
		return fallback
	}

	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			return code
		}
		return fallback
	}

	var ref struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil {
		if code = strings.ToUpper(strings.TrimSpace(ref.Value)); code != "" {
			return code
		}
	}
	return fallback
}

// resolveCustomerName prefers the record's own ref name, then the cached
// display name from the mapping.
func resolveCustomerName(raw json.RawMessage, displayName string) string {
	displayName = strings.TrimSpace(displayName)
	if len(raw) == 0 {
		return displayName
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
		return displayName
	}

	var ref struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &ref); err == nil {
		if n := strings.TrimSpace(ref.Name); n != "" {
			return n
		}
	}
	return displayName
}

func (n Normalizer) resolvePaymentURL(id, direct string, balance float64) string {
	if direct != "" {
		return direct
	}
	if balance > 0 && n.PayLinkBase != "" {
		return strings.TrimRight(n.PayLinkBase, "/") + "/invoices/" + id
	}
	// Paid with no direct link: no pay action.
	return ""
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
