package offer

import (
	"testing"

	"github.com/viktorwb/scrapbot/pkg/item"
)

func items(ids ...item.AssetID) []item.Item {
	out := make([]item.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, item.Item{AssetID: id, SKU: "263;6", Tradable: true, UsesLeft: -1})
	}
	return out
}

func TestStateTerminal(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{StateCreated, false},
		{StateActiveUnconfirmed, false},
		{StateActive, false},
		{StateAccepted, true},
		{StateDeclined, true},
		{StateCanceled, true},
		{StateInEscrow, true},
		{StateExpired, true},
		{StateUnknown, false},
	}
	for _, tc := range cases {
		if got := tc.state.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestSameItems(t *testing.T) {
	base := &Offer{ToGive: items("g1", "g2"), ToReceive: items("r1")}

	cases := []struct {
		name  string
		other *Offer
		want  bool
	}{
		{"identical", &Offer{ToGive: items("g1", "g2"), ToReceive: items("r1")}, true},
		{"order ignored", &Offer{ToGive: items("g2", "g1"), ToReceive: items("r1")}, true},
		{"different give", &Offer{ToGive: items("g1", "g3"), ToReceive: items("r1")}, false},
		{"missing give", &Offer{ToGive: items("g1"), ToReceive: items("r1")}, false},
		{"extra receive", &Offer{ToGive: items("g1", "g2"), ToReceive: items("r1", "r2")}, false},
		{"sides swapped", &Offer{ToGive: items("r1"), ToReceive: items("g1", "g2")}, false},
		{"both empty", &Offer{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.SameItems(tc.other); got != tc.want {
				t.Errorf("SameItems = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSameItemsDuplicateAssets(t *testing.T) {
	a := &Offer{ToGive: items("g1", "g1"), ToReceive: items("r1")}
	b := &Offer{ToGive: items("g1", "g2"), ToReceive: items("r1")}
	if a.SameItems(b) {
		t.Error("duplicate asset must not match a distinct pair")
	}
}

func TestGiveAssets(t *testing.T) {
	o := &Offer{ToGive: items("g2", "g1")}
	got := o.GiveAssets()
	if len(got) != 2 || got[0] != "g2" || got[1] != "g1" {
		t.Errorf("GiveAssets = %v, want [g2 g1]", got)
	}
}
