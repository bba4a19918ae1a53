package cart

import "testing"

func TestCartQuantities(t *testing.T) {
	c := New("partner-1")

	c.AddOur("sku_a", 2)
	c.AddOur("sku_a", 1)
	c.AddTheir("sku_b", 5)

	if got := c.OurCount("sku_a"); got != 3 {
		t.Errorf("OurCount = %d, want 3", got)
	}
	if got := c.TheirCount("sku_b"); got != 5 {
		t.Errorf("TheirCount = %d, want 5", got)
	}
	if c.IsEmpty() {
		t.Error("cart with lines reports empty")
	}

	c.RemoveOur("sku_a", 1)
	if got := c.OurCount("sku_a"); got != 2 {
		t.Errorf("after remove, OurCount = %d, want 2", got)
	}

	// removing to zero drops the line entirely
	c.RemoveOur("sku_a", 2)
	if got := len(c.OurSKUs()); got != 0 {
		t.Errorf("zero-quantity SKU retained: %v", c.OurSKUs())
	}

	c.RemoveTheir("sku_b", RemoveAll)
	if !c.IsEmpty() {
		t.Error("cart not empty after removing everything")
	}
}

func TestCartIgnoresNonPositiveAdds(t *testing.T) {
	c := New("partner-1")
	c.AddOur("sku_a", 0)
	c.AddOur("sku_a", -4)
	if !c.IsEmpty() {
		t.Errorf("non-positive adds created lines: %v", c.OurSKUs())
	}
}

func TestCartRemoveBeyondQuantity(t *testing.T) {
	c := New("partner-1")
	c.AddTheir("sku_b", 2)
	c.RemoveTheir("sku_b", 10)
	if c.TheirCount("sku_b") != 0 {
		t.Error("over-removal left a negative or stale line")
	}
}

func TestCartSortedSKUs(t *testing.T) {
	c := New("partner-1")
	c.AddOur("zeta", 1)
	c.AddOur("alpha", 1)
	c.AddOur("mid", 1)
	skus := c.OurSKUs()
	if len(skus) != 3 || skus[0] != "alpha" || skus[2] != "zeta" {
		t.Errorf("OurSKUs not sorted: %v", skus)
	}
}
