package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateAssetSymbol(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		wantErr bool
	}{
		{"plain", "ETH", false},
		{"exactly 20", strings.Repeat("A", 20), false},
		{"21 chars", strings.Repeat("A", 21), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssetSymbol(tt.symbol)
			if tt.wantErr && !errors.Is(err, ErrInvalidAsset) {
				t.Errorf("ValidateAssetSymbol(%q) = %v, want ErrInvalidAsset", tt.symbol, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateAssetSymbol(%q) unexpected error: %v", tt.symbol, err)
			}
		})
	}
}

func TestValidateDecimals(t *testing.T) {
	tests := []struct {
		decimals int
		wantErr  bool
	}{
		{0, false},
		{18, false},
		{MaxDecimals, false},
		{MaxDecimals + 1, true},
		{-1, true},
		{1 << 32, true},
	}

	for _, tt := range tests {
		err := ValidateDecimals(tt.decimals)
		if tt.wantErr && !errors.Is(err, ErrInvalidDecimals) {
			t.Errorf("ValidateDecimals(%d) = %v, want ErrInvalidDecimals", tt.decimals, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("ValidateDecimals(%d) unexpected error: %v", tt.decimals, err)
		}
	}
}

func TestPriceQuoteIsStale(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	q := PriceQuote{AssetSymbol: "ETH", UpdatedAt: now.Add(-300 * time.Second), TTL: 300 * time.Second}

	if q.IsStale(now) {
		t.Error("quote exactly at TTL should be fresh")
	}
	if !q.IsStale(now.Add(time.Second)) {
		t.Error("quote one second past TTL should be stale")
	}
}
