package store

import (
	"fmt"
	"strings"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// WorkerRunQuery defines optional filters for worker run queries.
type WorkerRunQuery struct {
	AccountID *string
	APIFamily *domain.APIFamily
	Statuses  []domain.RunStatus
	Limit     int // default 50
	Offset    int
}

const baseWorkerRunsSelect = `SELECT id, account_id, api_family, status, holder,
	started_at, finished_at, heartbeat_at, summary, COALESCE(error_text, '')
FROM worker_runs`

// ToSQL builds the WHERE clause, ORDER BY, LIMIT, and OFFSET for a worker
// run query. It returns the SQL and its positional parameters.
func (q *WorkerRunQuery) ToSQL() (string, []any) {
	var (
		conditions []string
		args       []any
	)
	paramIdx := 1

	if q.AccountID != nil {
		conditions = append(conditions, fmt.Sprintf("account_id = $%d", paramIdx))
		args = append(args, *q.AccountID)
		paramIdx++
	}

	if q.APIFamily != nil {
		conditions = append(conditions, fmt.Sprintf("api_family = $%d", paramIdx))
		args = append(args, string(*q.APIFamily))
		paramIdx++
	}

	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", paramIdx)
			args = append(args, string(s))
			paramIdx++
		}
		conditions = append(conditions, fmt.Sprintf(
			"status IN (%s)", strings.Join(placeholders, ", "),
		))
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	return fmt.Sprintf(
		"%s%s ORDER BY started_at DESC LIMIT %d OFFSET %d",
		baseWorkerRunsSelect, whereClause, q.limit(), max(q.Offset, 0),
	), args
}

func (q *WorkerRunQuery) limit() int {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return min(limit, maxLimit)
}
