package dynamostore

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/notexe/reminderd/internal/reminder"
)

// exprBuilder collects attribute name and value placeholders. Every
// attribute is aliased so that reserved words such as status and data
// never reach the expression text.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	err    error
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}
}

func (b *exprBuilder) name(attr string) string {
	alias := "#" + attr
	b.names[alias] = attr
	return alias
}

func (b *exprBuilder) value(placeholder string, v interface{}) string {
	key := ":" + placeholder
	av, err := attributevalue.Marshal(v)
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("marshal %s: %w", placeholder, err)
	}
	b.values[key] = av
	return key
}

// expression is a finished condition, filter or update.
type expression struct {
	update    string
	condition string
	names     map[string]string
	values    map[string]types.AttributeValue
}

// liveReminder matches stored reminders that are not soft-deleted and
// excludes origin markers.
func (b *exprBuilder) liveReminder() string {
	return fmt.Sprintf("%s = %s AND attribute_not_exists(%s)",
		b.name("kind"), b.value("kind", kindReminder), b.name("deleted_at"))
}

// conditionalUpdate replaces the mutable attributes of a reminder when its
// stored status and version equal expect, bumping the version.
func conditionalUpdate(next *reminder.Reminder, expect reminder.Expect) (expression, error) {
	b := newExprBuilder()
	it := toItem(next)

	var set, remove []string
	assign := func(attr string, v interface{}) {
		set = append(set, fmt.Sprintf("%s = %s", b.name(attr), b.value(attr, v)))
	}
	assignOrRemove := func(attr string, v *string) {
		if v == nil {
			remove = append(remove, b.name(attr))
			return
		}
		assign(attr, *v)
	}

	assign("assigned_to", it.AssignedTo)
	assign("title", it.Title)
	assign("message", it.Message)
	assign("fire_at", it.FireAt)
	assign("is_recurring", it.IsRecurring)
	assign("recurrence_pattern", it.RecurrencePattern)
	assign("priority", it.Priority)
	assign("action_required", it.ActionRequired)
	assign("status", it.Status)
	assign("updated_at", it.UpdatedAt)
	set = append(set, fmt.Sprintf("%s = %s + %s", b.name("version"), b.name("version"), b.value("one", 1)))

	assignOrRemove("action_url", it.ActionURL)
	if it.Data == "" {
		remove = append(remove, b.name("data"))
	} else {
		assign("data", it.Data)
	}
	assignOrRemove("triggered_at", it.TriggeredAt)
	assignOrRemove("completed_at", it.CompletedAt)
	assignOrRemove("acknowledged_at", it.AcknowledgedAt)

	update := "SET " + strings.Join(set, ", ")
	if len(remove) > 0 {
		update += " REMOVE " + strings.Join(remove, ", ")
	}

	condition := fmt.Sprintf("attribute_exists(%s) AND %s AND %s = %s AND %s = %s",
		b.name("id"), b.liveReminder(),
		b.name("status"), b.value("expected_status", string(expect.Status)),
		b.name("version"), b.value("expected_version", expect.Version))

	if b.err != nil {
		return expression{}, b.err
	}
	return expression{update: update, condition: condition, names: b.names, values: b.values}, nil
}

// softDelete marks a live reminder deleted.
func softDelete(at string) (expression, error) {
	b := newExprBuilder()

	update := fmt.Sprintf("SET %s = %s, %s = %s, %s = %s + %s",
		b.name("deleted_at"), b.value("at", at),
		b.name("updated_at"), b.value("at", at),
		b.name("version"), b.name("version"), b.value("one", 1))
	condition := fmt.Sprintf("attribute_exists(%s) AND %s", b.name("id"), b.liveReminder())

	if b.err != nil {
		return expression{}, b.err
	}
	return expression{update: update, condition: condition, names: b.names, values: b.values}, nil
}

// scanFilter translates f into a scan filter. Limit and Offset are applied
// after the scan because a filtered scan cannot page by result count.
func scanFilter(f reminder.Filter) (expression, error) {
	b := newExprBuilder()
	parts := []string{b.liveReminder()}

	eq := func(attr string, v interface{}) {
		parts = append(parts, fmt.Sprintf("%s = %s", b.name(attr), b.value(attr, v)))
	}

	if f.AssignedTo != "" {
		eq("assigned_to", f.AssignedTo)
	}
	if f.CreatedBy != "" {
		eq("created_by", f.CreatedBy)
	}
	if f.Status != "" {
		eq("status", string(f.Status))
	}
	if f.Priority != "" {
		eq("priority", string(f.Priority))
	}
	if f.IsRecurring != nil {
		eq("is_recurring", *f.IsRecurring)
	}
	if f.FireAtFrom != nil {
		parts = append(parts, fmt.Sprintf("%s >= %s", b.name("fire_at"), b.value("fire_from", formatTime(*f.FireAtFrom))))
	}
	if f.FireAtTo != nil {
		parts = append(parts, fmt.Sprintf("%s <= %s", b.name("fire_at"), b.value("fire_to", formatTime(*f.FireAtTo))))
	}

	if b.err != nil {
		return expression{}, b.err
	}
	return expression{condition: strings.Join(parts, " AND "), names: b.names, values: b.values}, nil
}
