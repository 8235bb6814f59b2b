package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFromDust(t *testing.T) {
	t.Parallel()

	t.Run("whole token", func(t *testing.T) {
		got, err := FromDust("1000000000000000000")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !got.Equal(decimal.NewFromInt(1)) {
			t.Fatalf("expected 1, got %s", got)
		}
	})

	t.Run("token total", func(t *testing.T) {
		got, err := FromDust("1500000000000000000000")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !got.Equal(decimal.NewFromInt(1500)) {
			t.Fatalf("expected 1500, got %s", got)
		}
	})

	t.Run("fractional token", func(t *testing.T) {
		got, err := FromDust("500000000000000000")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !got.Equal(decimal.RequireFromString("0.5")) {
			t.Fatalf("expected 0.5, got %s", got)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := FromDust("not-a-number"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestFoldAddress(t *testing.T) {
	t.Parallel()

	if FoldAddress("  0xABCdef123  ") != "0xabcdef123" {
		t.Fatal("expected trimmed, lowercased address")
	}
	if FoldAddress("0xAbC") != FoldAddress("0xaBc") {
		t.Fatal("case variants must fold to the same value")
	}
}

func TestNamespaceOf(t *testing.T) {
	t.Parallel()

	cases := map[string]Namespace{
		"beenest-listing-42": NamespaceDefault,
		"partner-hotel-7":    NamespacePartner,
		"plainid":            NamespaceDefault,
		"unknown-prefix-1":   NamespaceDefault,
		"":                   NamespaceDefault,
	}
	for id, want := range cases {
		if got := NamespaceOf(id); got != want {
			t.Errorf("NamespaceOf(%q) = %s, want %s", id, got, want)
		}
	}
}
