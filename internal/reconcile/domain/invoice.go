package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidRecord = errors.New("invoice record is structurally invalid")

type Status string

const (
	StatusPaid    Status = "paid"
	StatusNotPaid Status = "not_paid"
	StatusOverdue Status = "overdue"
)

type Filter string

const (
	FilterAll     Filter = "all"
	FilterPaid    Filter = "paid"
	FilterNotPaid Filter = "not_paid"
	FilterOverdue Filter = "overdue"
)

func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterAll, "":
		return FilterAll, true
	case FilterPaid:
		return FilterPaid, true
	case FilterNotPaid:
		return FilterNotPaid, true
	case FilterOverdue:
		return FilterOverdue, true
	}
	return FilterAll, false
}

type Audience string

const (
	AudienceOperator    Audience = "operator"
	AudienceSelfService Audience = "self_service"
)

// NormalizedInvoice is the canonical invoice shape. It carries no lifecycle
// status: status is derived against "now" at projection time, so an invoice
// that crosses its due date flips to overdue without a refetch.
type NormalizedInvoice struct {
	ID           string     `json:"id"`
	DocNumber    string     `json:"doc_number"`
	TxnDate      *time.Time `json:"txn_date"`
	DueDate      *time.Time `json:"due_date"`
	TotalAmount  float64    `json:"total_amount"`
	Balance      float64    `json:"balance"`
	Currency     string     `json:"currency"`
	CustomerName string     `json:"customer_name"`
	Paid         bool       `json:"paid"`
	PaymentURL   string     `json:"payment_url,omitempty"`
}

// DeriveStatus applies the lifecycle rules in order, first match wins:
// explicitly paid or zero balance, then due date behind the start of the
// current calendar day, then not paid. The due date comparison is by day,
// never by time of day.
func DeriveStatus(inv NormalizedInvoice, now time.Time) Status {
	if inv.Paid || inv.Balance == 0 {
		return StatusPaid
	}
	if inv.DueDate != nil {
		today := startOfDay(now)
		due := startOfDay(inv.DueDate.In(now.Location()))
		if due.Before(today) {
			return StatusOverdue
		}
	}
	return StatusNotPaid
}

func MatchesFilter(status Status, filter Filter) bool {
	return filter == FilterAll || Filter(status) == filter
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FetchOutcome records how one mapping fared in a fetch cycle.
type FetchOutcome struct {
	MappingID        snowflake.ID `json:"mapping_id"`
	PortalCustomerID string       `json:"portal_customer_id"`
	CustomerName     string       `json:"customer_name"`
	OK               bool         `json:"ok"`
	Error            string       `json:"error,omitempty"`
	FetchedAt        time.Time    `json:"fetched_at"`
}

// AggregatedInvoiceSet is one fetch cycle's result: normalized invoices keyed
// by mapping, plus a per-mapping outcome. Failed mappings contribute no
// invoices; whether their previous data survives is the snapshot store's
// decision, not the aggregator's.
type AggregatedInvoiceSet struct {
	Outcomes []FetchOutcome
	Invoices map[snowflake.ID][]NormalizedInvoice
}

func (s AggregatedInvoiceSet) Outcome(mappingID snowflake.ID) (FetchOutcome, bool) {
	for _, o := range s.Outcomes {
		if o.MappingID == mappingID {
			return o, true
		}
	}
	return FetchOutcome{}, false
}

func (s AggregatedInvoiceSet) FailedCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if !o.OK {
			n++
		}
	}
	return n
}
