package util

import (
	"strings"
	"testing"
)

func TestPersonalizeMessage(t *testing.T) {
	got := PersonalizeMessage("Hi {{name}}, 10% off today", "Mohit")
	if got != "Hi Mohit, 10% off today" {
		t.Fatalf("unexpected render: %q", got)
	}

	// every occurrence gets substituted
	got = PersonalizeMessage("{{name}} {{name}}", "A")
	if got != "A A" {
		t.Fatalf("expected all placeholders replaced, got %q", got)
	}
}

func TestPersonalizeMessageFallback(t *testing.T) {
	got := PersonalizeMessage("Hi {{name}}", "")
	if got != "Hi Customer" {
		t.Fatalf("expected fallback name, got %q", got)
	}
	got = PersonalizeMessage("Hi {{name}}", "   ")
	if got != "Hi Customer" {
		t.Fatalf("expected fallback for blank name, got %q", got)
	}
}

func TestNewIDPrefix(t *testing.T) {
	id := NewID("cmp")
	if !strings.HasPrefix(id, "cmp_") {
		t.Fatalf("expected cmp_ prefix, got %q", id)
	}
	if id == NewID("cmp") {
		t.Fatalf("expected unique ids")
	}
}

func TestVendorMessageID(t *testing.T) {
	if got := VendorMessageID("c1", "u1"); got != "msg_c1_u1" {
		t.Fatalf("unexpected vendor message id: %q", got)
	}
}
