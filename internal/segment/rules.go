package segment

import (
	"errors"
	"fmt"
)

type Field string

const (
	FieldTotalSpend    Field = "totalSpend"
	FieldOrderCount    Field = "orderCount"
	FieldLastOrderDate Field = "lastOrderDate"
	FieldCreatedAt     Field = "userCreatedAt"
	FieldEmail         Field = "email"
	FieldName          Field = "name"
	FieldCity          Field = "city"
	FieldState         Field = "state"
	FieldCountry       Field = "country"
)

type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
	OpGreaterThan        Operator = "greaterThan"
	OpLessThan           Operator = "lessThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "notContains"
	OpStartsWith         Operator = "startsWith"
	OpEndsWith           Operator = "endsWith"
	OpOlderThanDays      Operator = "olderThanDays"
	OpNewerThanDays      Operator = "newerThanDays"
	OpBeforeDate         Operator = "beforeDate"
	OpAfterDate          Operator = "afterDate"
	OpOnDate             Operator = "onDate"
	OpIsEmpty            Operator = "isEmpty"
	OpIsNotEmpty         Operator = "isNotEmpty"
)

// Condition compares one profile field against a value. Value arrives from
// JSON, so numbers are float64 and dates are RFC 3339 strings.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// ConditionGroup AND's its conditions together.
type ConditionGroup struct {
	Conditions []Condition `json:"conditions"`
}

// Rules OR's its groups together.
type Rules struct {
	Groups []ConditionGroup `json:"groups"`
}

var knownFields = map[Field]bool{
	FieldTotalSpend: true, FieldOrderCount: true, FieldLastOrderDate: true,
	FieldCreatedAt: true, FieldEmail: true, FieldName: true,
	FieldCity: true, FieldState: true, FieldCountry: true,
}

var knownOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true,
	OpGreaterThan: true, OpLessThan: true, OpGreaterThanOrEqual: true, OpLessThanOrEqual: true,
	OpContains: true, OpNotContains: true, OpStartsWith: true, OpEndsWith: true,
	OpOlderThanDays: true, OpNewerThanDays: true, OpBeforeDate: true, OpAfterDate: true, OpOnDate: true,
	OpIsEmpty: true, OpIsNotEmpty: true,
}

func (r Rules) Validate() error {
	if len(r.Groups) == 0 {
		return errors.New("rules must have at least one group")
	}
	for gi, g := range r.Groups {
		if len(g.Conditions) == 0 {
			return fmt.Errorf("group %d must have at least one condition", gi)
		}
		for ci, c := range g.Conditions {
			if !knownFields[c.Field] {
				return fmt.Errorf("group %d condition %d: unknown field %q", gi, ci, c.Field)
			}
			if !knownOperators[c.Operator] {
				return fmt.Errorf("group %d condition %d: unknown operator %q", gi, ci, c.Operator)
			}
		}
	}
	return nil
}
