package dashboard

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"

	"dataplatform/models"
)

// ErrEmptyQuery is returned for blank SQL.
var ErrEmptyQuery = errors.New("dashboard: empty query")

// Querier runs read-only SQL against the warehouse.
type Querier interface {
	Query(ctx context.Context, sql string) (*models.QueryResult, error)
}

// Workspace is the SQL editor of the dashboard. It talks to the warehouse
// directly, not through the API server.
type Workspace struct {
	q      Querier
	target models.TableRef
}

// NewWorkspace creates a Workspace whose default query reads target.
func NewWorkspace(q Querier, target models.TableRef) *Workspace {
	return &Workspace{q: q, target: target}
}

// DefaultQuery previews the first rows of the ingestion table.
func (w *Workspace) DefaultQuery() string {
	return "SELECT * FROM " + pq.QuoteIdentifier(w.target.Dataset) + "." +
		pq.QuoteIdentifier(w.target.Table) + " LIMIT 10"
}

// Run executes sql, or the default query when sql is blank and useDefault is
// set.
func (w *Workspace) Run(ctx context.Context, sql string, useDefault bool) (*models.QueryResult, error) {
	if strings.TrimSpace(sql) == "" {
		if !useDefault {
			return nil, ErrEmptyQuery
		}
		sql = w.DefaultQuery()
	}
	return w.q.Query(ctx, sql)
}
