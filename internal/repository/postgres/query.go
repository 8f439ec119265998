package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	ierr "github.com/flexprice/freemium/internal/errors"
	"github.com/flexprice/freemium/internal/types"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// conditions accumulates AND-ed predicates with positional arguments
type conditions struct {
	clauses []string
	args    []interface{}
}

// add appends a predicate; every "?" in clause is bound to the next argument
func (c *conditions) add(clause string, args ...interface{}) {
	for _, arg := range args {
		c.args = append(c.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(c.args)), 1)
	}
	c.clauses = append(c.clauses, clause)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends LIMIT and OFFSET when the filter asks for them
func (c *conditions) page(f *types.QueryFilter) string {
	var b strings.Builder
	if !f.IsUnlimited() {
		c.args = append(c.args, f.GetLimit())
		fmt.Fprintf(&b, " LIMIT $%d", len(c.args))
	}
	if f.GetOffset() > 0 {
		c.args = append(c.args, f.GetOffset())
		fmt.Fprintf(&b, " OFFSET $%d", len(c.args))
	}
	return b.String()
}

// tenantScope starts a condition set scoped to tenantID and the given status
func tenantScope(tenantID string, status types.Status) *conditions {
	c := &conditions{}
	c.add("tenant_id = ?", tenantID)
	c.add("status = ?", string(status))
	return c
}

// mapError converts driver errors into the internal error kinds
func mapError(err error, entity string, details map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s not found", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ierr.WithError(err).
			WithHintf("%s already exists", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrAlreadyExists)
	}

	return ierr.WithError(err).
		WithHintf("Failed to access %s", entity).
		WithReportableDetails(details).
		Mark(ierr.ErrDatabase)
}

// expectAffected reports ErrNotFound when an update touched no rows
func expectAffected(result sql.Result, entity string, details map[string]any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(err, entity, details)
	}
	if n == 0 {
		return ierr.NewError(entity+" not found").
			WithHintf("%s not found", entity).
			WithReportableDetails(details).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
