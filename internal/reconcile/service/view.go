package service

import (
	"time"

	"github.com/bwmarrin/snowflake"

	reconciledomain "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile/repository"
)

type Row struct {
	InvoiceID    string                 `json:"invoice_id"`
	DocNumber    string                 `json:"doc_number"`
	CustomerName string                 `json:"customer_name,omitempty"`
	TxnDate      *time.Time             `json:"txn_date"`
	DueDate      *time.Time             `json:"due_date"`
	TotalAmount  float64                `json:"total_amount"`
	Balance      float64                `json:"balance"`
	Currency     string                 `json:"currency"`
	Status       reconciledomain.Status `json:"status"`
	PaymentURL   string                 `json:"payment_url,omitempty"`
	Stale        bool                   `json:"stale,omitempty"`
}

type EmptyState string

const (
	// EmptyStateNone means rows are present.
	EmptyStateNone EmptyState = ""
	// EmptyStateNoInvoices means there are no invoices at all.
	EmptyStateNoInvoices EmptyState = "no_invoices"
	// EmptyStateNoMatch means invoices exist but none match the filter.
	EmptyStateNoMatch EmptyState = "no_match"
)

// CustomerIssue reports a customer whose last fetch cycle failed. Operators
// see these alongside whatever cached rows still render.
type CustomerIssue struct {
	MappingID    snowflake.ID `json:"mapping_id"`
	CustomerName string       `json:"customer_name"`
	LastError    string       `json:"last_error,omitempty"`
	// Unavailable is set when no successful cycle has ever happened for
	// this customer, so there is not even stale data to show.
	Unavailable bool `json:"unavailable"`
}

type Projection struct {
	Rows       []Row           `json:"rows"`
	EmptyState EmptyState      `json:"empty_state,omitempty"`
	Issues     []CustomerIssue `json:"issues,omitempty"`
}

// Project filters and shapes snapshots for one audience. Status is derived
// against now for every row, so overdue flips at the day boundary without a
// refetch. Self-service projections must be handed only the caller's own
// snapshot; this function adds no cross-customer data of its own.
func Project(snapshots []repository.Snapshot, filter reconciledomain.Filter, audience reconciledomain.Audience, now time.Time) Projection {
	proj := Projection{Rows: []Row{}}
	total := 0

	for _, snap := range snapshots {
		if snap.Stale {
			issue := CustomerIssue{
				MappingID:    snap.MappingID,
				CustomerName: snap.CustomerName,
				LastError:    snap.LastError,
				Unavailable:  snap.NeverFetched(),
			}
			if audience == reconciledomain.AudienceOperator || len(snapshots) == 1 {
				proj.Issues = append(proj.Issues, issue)
			}
		}

		for _, inv := range snap.Invoices {
			total++
			status := reconciledomain.DeriveStatus(inv, now)
			if !reconciledomain.MatchesFilter(status, filter) {
				continue
			}

			row := Row{
				InvoiceID:   inv.ID,
				DocNumber:   inv.DocNumber,
				TxnDate:     inv.TxnDate,
				DueDate:     inv.DueDate,
				TotalAmount: inv.TotalAmount,
				Balance:     inv.Balance,
				Currency:    inv.Currency,
				Status:      status,
				PaymentURL:  inv.PaymentURL,
				Stale:       snap.Stale,
			}
			if audience == reconciledomain.AudienceOperator {
				row.CustomerName = inv.CustomerName
			}
			proj.Rows = append(proj.Rows, row)
		}
	}

	if len(proj.Rows) == 0 {
		if total == 0 {
			proj.EmptyState = EmptyStateNoInvoices
		} else {
			proj.EmptyState = EmptyStateNoMatch
		}
	}
	return proj
}
