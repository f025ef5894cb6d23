package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics is what the request logger records about a failed call.
type Diagnostics struct {
	Message  string
	Code     Code
	Chain    []string
	Postgres *PGFailure
}

// PGFailure is the driver-independent view of a Postgres error, whether it
// surfaced through pgx (gorm) or lib/pq (goose).
type PGFailure struct {
	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// sqlStateClasses names the SQLSTATE classes the stock and coupon paths hit.
var sqlStateClasses = map[string]string{
	"22": "data_exception",
	"23": "integrity_constraint",
	"40": "transaction_rollback",
	"42": "syntax_or_access",
	"53": "insufficient_resources",
	"57": "operator_intervention",
}

// Class maps the SQLSTATE to a coarse label; serialization failures and
// deadlocks under row locks land in transaction_rollback.
func (p *PGFailure) Class() string {
	if p == nil || len(p.SQLState) < 2 {
		return ""
	}
	if class, ok := sqlStateClasses[p.SQLState[:2]]; ok {
		return class
	}
	return "other"
}

// Diagnose unwraps err into loggable pieces.
func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for link := err; link != nil; link = errors.Unwrap(link) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", link, link))
	}
	d.Postgres = postgresFailure(err)
	return d
}

func postgresFailure(err error) *PGFailure {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return &PGFailure{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &PGFailure{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// Fields flattens the diagnostics into log fields, leaving out what is empty.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.SQLState
		fields["pg_class"] = pg.Class()
		for key, value := range map[string]string{
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
