package segment

import (
	"testing"
	"time"
)

func profileWithOrders(amounts ...int64) (Profile, Aggregates) {
	p := Profile{
		CustomerID: "u1",
		Name:       "Asha",
		Email:      "asha@example.com",
		City:       "Pune",
		Country:    "IN",
		CreatedAt:  time.Now().UTC().AddDate(0, -6, 0),
	}
	for i, a := range amounts {
		p.Orders = append(p.Orders, OrderFact{
			TotalAmount: a,
			CreatedAt:   time.Now().UTC().AddDate(0, 0, -i),
		})
	}
	return p, Aggregate(p.Orders)
}

func TestAggregate(t *testing.T) {
	_, agg := profileWithOrders(100, 250)
	if agg.TotalSpend != 350 {
		t.Fatalf("total spend = %d, want 350", agg.TotalSpend)
	}
	if agg.OrderCount != 2 {
		t.Fatalf("order count = %d, want 2", agg.OrderCount)
	}
	if agg.LastOrderDate == nil {
		t.Fatal("expected last order date")
	}

	empty := Aggregate(nil)
	if empty.LastOrderDate != nil || empty.OrderCount != 0 || empty.TotalSpend != 0 {
		t.Fatalf("expected zero aggregates, got %+v", empty)
	}
}

func TestMatchesNumericAndString(t *testing.T) {
	p, agg := profileWithOrders(100, 250)

	rules := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldTotalSpend, Operator: OpGreaterThan, Value: float64(300)},
		{Field: FieldCity, Operator: OpEquals, Value: "pune"},
	}}}}
	if !Matches(p, agg, rules) {
		t.Fatal("expected match: spend > 300 AND city pune")
	}

	rules.Groups[0].Conditions[0].Value = float64(1000)
	if Matches(p, agg, rules) {
		t.Fatal("expected no match when one condition in a group fails")
	}
}

func TestMatchesGroupsAreORed(t *testing.T) {
	p, agg := profileWithOrders(100)

	rules := Rules{Groups: []ConditionGroup{
		{Conditions: []Condition{{Field: FieldTotalSpend, Operator: OpGreaterThan, Value: float64(1000)}}},
		{Conditions: []Condition{{Field: FieldEmail, Operator: OpEndsWith, Value: "@example.com"}}},
	}}
	if !Matches(p, agg, rules) {
		t.Fatal("expected second group to match")
	}
}

func TestMatchesDateWindows(t *testing.T) {
	p, agg := profileWithOrders(100)

	recent := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldLastOrderDate, Operator: OpNewerThanDays, Value: float64(7)},
	}}}}
	if !Matches(p, agg, recent) {
		t.Fatal("expected order placed today to be newer than 7 days")
	}

	stale := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldLastOrderDate, Operator: OpOlderThanDays, Value: float64(7)},
	}}}}
	if Matches(p, agg, stale) {
		t.Fatal("expected order placed today not to be older than 7 days")
	}

	// customers with no orders never match a lastOrderDate comparison
	noOrders, noAgg := profileWithOrders()
	if Matches(noOrders, noAgg, recent) {
		t.Fatal("expected nil last order date not to match")
	}
	isEmpty := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldLastOrderDate, Operator: OpIsEmpty},
	}}}}
	if !Matches(noOrders, noAgg, isEmpty) {
		t.Fatal("expected isEmpty to match customers with no orders")
	}
}

func TestMatchesOnDate(t *testing.T) {
	p, agg := profileWithOrders(100)
	today := time.Now().UTC().Format(time.DateOnly)

	sameDay := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldLastOrderDate, Operator: OpOnDate, Value: today},
	}}}}
	if !Matches(p, agg, sameDay) {
		t.Fatal("expected order placed today to match onDate for today")
	}

	// a full timestamp on the same calendar day also matches
	sameDayStamp := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldLastOrderDate, Operator: OpOnDate, Value: time.Now().UTC().Format(time.RFC3339)},
	}}}}
	if !Matches(p, agg, sameDayStamp) {
		t.Fatal("expected onDate to ignore the time-of-day component")
	}

	otherDay := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldLastOrderDate, Operator: OpOnDate, Value: time.Now().UTC().AddDate(0, 0, -3).Format(time.DateOnly)},
	}}}}
	if Matches(p, agg, otherDay) {
		t.Fatal("expected onDate not to match a different day")
	}

	garbage := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldLastOrderDate, Operator: OpOnDate, Value: "not-a-date"},
	}}}}
	if Matches(p, agg, garbage) {
		t.Fatal("unparsable date value must not match")
	}
}

func TestMatchesIllTypedValueIsFalse(t *testing.T) {
	p, agg := profileWithOrders(100)
	rules := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldTotalSpend, Operator: OpGreaterThan, Value: "not-a-number"},
	}}}}
	if Matches(p, agg, rules) {
		t.Fatal("ill-typed condition must not match")
	}
}

func TestRulesValidate(t *testing.T) {
	if err := (Rules{}).Validate(); err == nil {
		t.Fatal("expected error for empty rules")
	}
	bad := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: "salary", Operator: OpEquals, Value: float64(1)},
	}}}}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown field")
	}
	ok := Rules{Groups: []ConditionGroup{{Conditions: []Condition{
		{Field: FieldOrderCount, Operator: OpGreaterThanOrEqual, Value: float64(1)},
		{Field: FieldLastOrderDate, Operator: OpOnDate, Value: "2026-08-01"},
	}}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
