package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	reconciledomain "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/domain"
	"github.com/ledgerlinklabs/ledgerlink/internal/reconcile/repository"
	reconcileservice "github.com/ledgerlinklabs/ledgerlink/internal/reconcile/service"
)

// @Summary      List Invoices
// @Description  Project cached invoice snapshots for one audience. Operators see all mapped customers; self-service callers see only their own mapping.
// @Tags         invoices
// @Produce      json
// @Param        audience            query  string  false  "operator or self_service"  default(operator)
// @Param        filter              query  string  false  "all, paid, not_paid or overdue"  default(all)
// @Param        portal_customer_id  query  string  false  "Required for self_service"
// @Success      200  {object}  map[string]any
// @Router       /v1/invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	ctx := c.Request.Context()

	filter, ok := reconciledomain.ParseFilter(strings.TrimSpace(c.Query("filter")))
	if !ok {
		invalidRequest(c, "unknown filter")
		return
	}

	audience := reconciledomain.Audience(strings.TrimSpace(c.Query("audience")))
	if audience == "" {
		audience = reconciledomain.AudienceOperator
	}

	var snapshots []repository.Snapshot
	switch audience {
	case reconciledomain.AudienceOperator:
		all, err := s.snapshots.All(ctx)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		snapshots = all

	case reconciledomain.AudienceSelfService:
		portalID := strings.TrimSpace(c.Query("portal_customer_id"))
		if portalID == "" {
			invalidRequest(c, "portal_customer_id is required for self_service")
			return
		}
		// The scope is the caller's own mapping only; foreign snapshots
		// never enter the projection.
		m, err := s.mappingSvc.Get(ctx, portalID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		snap, found, err := s.snapshots.Get(ctx, m.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if found {
			snapshots = []repository.Snapshot{snap}
		}

	default:
		invalidRequest(c, "unknown audience")
		return
	}

	proj := reconcileservice.Project(snapshots, filter, audience, s.clock.Now(ctx))
	respondData(c, proj)
}

// @Summary      List Fetch Failures
// @Description  Customers whose latest fetch cycle failed, with whether any cached data remains.
// @Tags         invoices
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /v1/invoices/failures [get]
func (s *Server) ListFetchFailures(c *gin.Context) {
	ctx := c.Request.Context()

	all, err := s.snapshots.All(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	issues := []reconcileservice.CustomerIssue{}
	for _, snap := range all {
		if !snap.Stale {
			continue
		}
		issues = append(issues, reconcileservice.CustomerIssue{
			MappingID:    snap.MappingID,
			CustomerName: snap.CustomerName,
			LastError:    snap.LastError,
			Unavailable:  snap.NeverFetched(),
		})
	}

	respondData(c, gin.H{
		"issues":     issues,
		"last_cycle": s.refresher.LastCycle(),
	})
}

// @Summary      Refresh Invoices
// @Description  Trigger a refresh cycle. A trigger while a cycle is in flight is a no-op.
// @Tags         invoices
// @Produce      json
// @Success      202  {object}  map[string]any
// @Router       /v1/invoices/refresh [post]
func (s *Server) RefreshInvoices(c *gin.Context) {
	started := s.refresher.TriggerAsync()
	c.JSON(202, gin.H{"data": gin.H{
		"started": started,
		"state":   s.refresher.State(),
	}})
}
