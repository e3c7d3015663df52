package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// listQuery appends positional filters and paging to a SELECT.
type listQuery struct {
	sb    strings.Builder
	args  []any
	where bool
}

func newListQuery(base string) *listQuery {
	q := &listQuery{}
	q.sb.WriteString(base)
	return q
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *listQuery) and(cond string, v any) {
	if q.where {
		q.sb.WriteString(" AND ")
	} else {
		q.sb.WriteString(" WHERE ")
		q.where = true
	}
	q.sb.WriteString(strings.Replace(cond, "?", q.arg(v), 1))
}

func (q *listQuery) timeRange(column string, since, until *time.Time) {
	if since != nil {
		q.and(column+" >= ?", *since)
	}
	if until != nil {
		q.and(column+" <= ?", *until)
	}
}

func (q *listQuery) page(orderBy string, opts domain.ListOpts) {
	q.sb.WriteString(" ORDER BY " + orderBy)
	if opts.Limit > 0 {
		q.sb.WriteString(" LIMIT " + q.arg(opts.Limit))
	}
	if opts.Offset > 0 {
		q.sb.WriteString(" OFFSET " + q.arg(opts.Offset))
	}
}

func (q *listQuery) String() string { return q.sb.String() }
