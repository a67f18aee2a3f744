package marketplace

import (
	"math/big"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "toys", "toys", false},
		{"trimmed", "  toys \n", "toys", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"at limit", strings.Repeat("a", 32), strings.Repeat("a", 32), false},
		{"over limit", strings.Repeat("a", 33), "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeName(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeMarketplace(t *testing.T) {
	base := &Marketplace{Name: " toys ", FeeBps: 250}
	sanitized, err := SanitizeMarketplace(base)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Name != "toys" {
		t.Fatalf("name not canonicalised: %q", sanitized.Name)
	}
	if base.Name != " toys " {
		t.Fatalf("original record mutated")
	}
	if _, err := SanitizeMarketplace(&Marketplace{Name: "toys", FeeBps: 10_001}); err == nil {
		t.Fatalf("expected fee bps rejection")
	}
	if _, err := SanitizeMarketplace(nil); err == nil {
		t.Fatalf("expected nil rejection")
	}
}

func TestSanitizeListing(t *testing.T) {
	sanitized, err := SanitizeListing(&Listing{})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Price == nil || sanitized.Price.Sign() != 0 {
		t.Fatalf("expected nil price replaced with zero, got %v", sanitized.Price)
	}
	if _, err := SanitizeListing(&Listing{Price: big.NewInt(-1)}); err == nil {
		t.Fatalf("expected negative price rejection")
	}
	if _, err := SanitizeListing(nil); err == nil {
		t.Fatalf("expected nil rejection")
	}
}

func TestSanitizeBid(t *testing.T) {
	sanitized, err := SanitizeBid(&BidState{})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Price == nil || sanitized.Price.Sign() != 0 {
		t.Fatalf("expected nil price replaced with zero, got %v", sanitized.Price)
	}
	if _, err := SanitizeBid(&BidState{Price: big.NewInt(-1)}); err == nil {
		t.Fatalf("expected negative price rejection")
	}
}

func TestListingCloneIsDeep(t *testing.T) {
	original := &Listing{Price: big.NewInt(100)}
	clone := original.Clone()
	clone.Price.SetInt64(999)
	if original.Price.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("clone shares price with original")
	}
}
