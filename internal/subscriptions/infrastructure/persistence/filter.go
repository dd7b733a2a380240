package persistence

import (
	"fmt"
	"strings"
	"time"

	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// whereBuilder collects SQL predicates and their arguments.
// placeholder renders the n-th (1-based) bind parameter for the dialect;
// bind converts Go values into the dialect's stored form.
type whereBuilder struct {
	clauses     []string
	args        []any
	placeholder func(n int) string
	bind        func(v any) any
}

func postgresWhere() *whereBuilder {
	return &whereBuilder{
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		bind:        func(v any) any { return v },
	}
}

func sqliteWhere() *whereBuilder {
	return &whereBuilder{
		placeholder: func(int) string { return "?" },
		bind:        sqliteValue,
	}
}

// sqliteValue stores times in the fixed-width text layout and UUIDs as text.
func sqliteValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return sharedPersistence.FormatSQLiteTime(x)
	case uuid.UUID:
		return x.String()
	default:
		return v
	}
}

// add appends a predicate with a single %s placeholder bound to arg.
func (b *whereBuilder) add(format string, arg any) {
	b.args = append(b.args, b.bind(arg))
	b.clauses = append(b.clauses, fmt.Sprintf(format, b.placeholder(len(b.args))))
}

// addIn appends "column IN (...)" with one bind parameter per value.
func (b *whereBuilder) addIn(column string, values []any) {
	if len(values) == 0 {
		return
	}
	marks := make([]string, len(values))
	for i, v := range values {
		b.args = append(b.args, b.bind(v))
		marks[i] = b.placeholder(len(b.args))
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(marks, ", ")))
}

// addRaw appends a predicate without arguments.
func (b *whereBuilder) addRaw(clause string) {
	b.clauses = append(b.clauses, clause)
}

func (b *whereBuilder) sql() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// next returns the placeholder for the next argument and records it.
func (b *whereBuilder) next(arg any) string {
	b.args = append(b.args, b.bind(arg))
	return b.placeholder(len(b.args))
}

// orderBy renders an ORDER BY clause for a whitelisted sort, with tiebreak
// appended so paging is stable.
func orderBy(s domain.Sort, tiebreak string) string {
	if s.Field == "" {
		return fmt.Sprintf(" ORDER BY %s DESC", tiebreak)
	}
	dir := "DESC"
	if s.Direction == domain.SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s %s", s.Field, dir, tiebreak, dir)
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func actionStrings(actions []domain.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// reminderColumns maps reminder windows to their stamp columns.
var reminderColumns = []struct {
	window domain.ReminderWindow
	column string
}{
	{domain.Reminder3Days, "notified_3d_at"},
	{domain.Reminder1Day, "notified_1d_at"},
	{domain.Reminder1Hour, "notified_1h_at"},
	{domain.Reminder15Minute, "notified_15m_at"},
}

const subscriptionColumns = `id, user_id, tariff_id, category_id, location_id, price_paid,
	start_date, end_date, status, is_enabled, payment_method, admin_notes,
	approved_by, approved_at, requested_tariff_id,
	notified_3d_at, notified_1d_at, notified_1h_at, notified_15m_at,
	version, created_at, updated_at`

const historyColumns = `id, user_id, subscription_id, action, tariff_name, category_name,
	location_name, price_paid, action_date, notes`
