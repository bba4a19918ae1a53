package economy

import (
	"testing"

	"github.com/viktorwb/scrapbot/pkg/item"
)

func TestValueRefined(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{0, "0.00 ref"},
		{ScrapWorth, "0.11 ref"},
		{RefinedWorth, "1.00 ref"},
		{RefinedWorth + ReclaimedWorth, "1.33 ref"},
		{2*RefinedWorth + 5*ScrapWorth, "2.55 ref"},
		{1, "0.05 ref"},
		{-ScrapWorth, "-0.11 ref"},
	}
	for _, tt := range tests {
		if got := tt.v.Refined(); got != tt.want {
			t.Errorf("(%d).Refined() = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestValueFormat(t *testing.T) {
	key := Value(10 * RefinedWorth)
	tests := []struct {
		v    Value
		want string
	}{
		{RefinedWorth, "1.00 ref"},
		{key, "1 key"},
		{2*key + 5*RefinedWorth, "2 keys, 5.00 ref"},
	}
	for _, tt := range tests {
		if got := tt.v.Format(key); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestStandardList(t *testing.T) {
	l := StandardList("key", 180, "ref", "rec", "scrap", []item.SKU{"w1", "w2"})
	if len(l) != 6 {
		t.Fatalf("len = %d, want 6", len(l))
	}
	// highest to lowest, weapons trailing at one base unit each
	for i := 1; i < len(l); i++ {
		if l[i].Worth > l[i-1].Worth {
			t.Errorf("list not descending at %d: %v", i, l)
		}
	}
	if l[4].SKU != "w1" || l[5].SKU != "w2" || l[5].Worth != WeaponWorth {
		t.Errorf("weapon denominations misplaced: %v", l)
	}

	trimmed := l.Without("key")
	if trimmed.Contains("key") || len(trimmed) != 5 {
		t.Errorf("Without kept the key: %v", trimmed)
	}
}
