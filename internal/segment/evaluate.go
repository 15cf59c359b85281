package segment

import (
	"strings"
	"time"
)

// Profile is the per-customer view the evaluator sees: identity fields plus
// the order facts needed for spend/recency aggregates.
type Profile struct {
	CustomerID string
	Name       string
	Email      string
	City       string
	State      string
	Country    string
	CreatedAt  time.Time
	Orders     []OrderFact
}

type OrderFact struct {
	TotalAmount int64
	CreatedAt   time.Time
}

type Aggregates struct {
	TotalSpend    int64
	OrderCount    int
	LastOrderDate *time.Time
}

func Aggregate(orders []OrderFact) Aggregates {
	agg := Aggregates{OrderCount: len(orders)}
	for _, o := range orders {
		agg.TotalSpend += o.TotalAmount
		if agg.LastOrderDate == nil || o.CreatedAt.After(*agg.LastOrderDate) {
			t := o.CreatedAt
			agg.LastOrderDate = &t
		}
	}
	return agg
}

// Matches is the pure predicate behind segment materialization: groups are
// OR'd, conditions within a group are AND'd. Unknown or ill-typed conditions
// evaluate to false rather than erroring, so one bad condition cannot pull
// every customer into an audience.
func Matches(p Profile, agg Aggregates, r Rules) bool {
	for _, g := range r.Groups {
		if groupMatches(p, agg, g) {
			return true
		}
	}
	return false
}

func groupMatches(p Profile, agg Aggregates, g ConditionGroup) bool {
	for _, c := range g.Conditions {
		if !conditionMatches(p, agg, c) {
			return false
		}
	}
	return len(g.Conditions) > 0
}

func conditionMatches(p Profile, agg Aggregates, c Condition) bool {
	switch c.Field {
	case FieldTotalSpend:
		return numberMatches(float64(agg.TotalSpend), c)
	case FieldOrderCount:
		return numberMatches(float64(agg.OrderCount), c)
	case FieldLastOrderDate:
		return dateMatches(agg.LastOrderDate, c)
	case FieldCreatedAt:
		t := p.CreatedAt
		return dateMatches(&t, c)
	case FieldEmail:
		return stringMatches(p.Email, c)
	case FieldName:
		return stringMatches(p.Name, c)
	case FieldCity:
		return stringMatches(p.City, c)
	case FieldState:
		return stringMatches(p.State, c)
	case FieldCountry:
		return stringMatches(p.Country, c)
	}
	return false
}

func numberMatches(have float64, c Condition) bool {
	switch c.Operator {
	case OpIsEmpty:
		return have == 0
	case OpIsNotEmpty:
		return have != 0
	}
	want, ok := asNumber(c.Value)
	if !ok {
		return false
	}
	switch c.Operator {
	case OpEquals:
		return have == want
	case OpNotEquals:
		return have != want
	case OpGreaterThan:
		return have > want
	case OpLessThan:
		return have < want
	case OpGreaterThanOrEqual:
		return have >= want
	case OpLessThanOrEqual:
		return have <= want
	}
	return false
}

func stringMatches(have string, c Condition) bool {
	switch c.Operator {
	case OpIsEmpty:
		return strings.TrimSpace(have) == ""
	case OpIsNotEmpty:
		return strings.TrimSpace(have) != ""
	}
	want, ok := c.Value.(string)
	if !ok {
		return false
	}
	h, w := strings.ToLower(have), strings.ToLower(want)
	switch c.Operator {
	case OpEquals:
		return h == w
	case OpNotEquals:
		return h != w
	case OpContains:
		return strings.Contains(h, w)
	case OpNotContains:
		return !strings.Contains(h, w)
	case OpStartsWith:
		return strings.HasPrefix(h, w)
	case OpEndsWith:
		return strings.HasSuffix(h, w)
	}
	return false
}

func dateMatches(have *time.Time, c Condition) bool {
	switch c.Operator {
	case OpIsEmpty:
		return have == nil
	case OpIsNotEmpty:
		return have != nil
	}
	if have == nil {
		return false
	}
	switch c.Operator {
	case OpOlderThanDays, OpNewerThanDays:
		days, ok := asNumber(c.Value)
		if !ok {
			return false
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -int(days))
		if c.Operator == OpOlderThanDays {
			return have.Before(cutoff)
		}
		return have.After(cutoff)
	case OpBeforeDate, OpAfterDate, OpOnDate:
		want, ok := asDate(c.Value)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpBeforeDate:
			return have.Before(want)
		case OpAfterDate:
			return have.After(want)
		}
		// onDate compares calendar days, not instants.
		hy, hm, hd := have.UTC().Date()
		wy, wm, wd := want.UTC().Date()
		return hy == wy && hm == wm && hd == wd
	}
	return false
}

func asDate(v any) (time.Time, bool) {
	raw, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
