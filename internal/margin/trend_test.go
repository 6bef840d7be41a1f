package margin

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPercentChangeBasic(t *testing.T) {
	got := PercentChange(decimal.NewFromInt(110), decimal.NewFromInt(100))
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10, got %s", got)
	}
}

func TestPercentChangeNoChange(t *testing.T) {
	got := PercentChange(decimal.NewFromInt(100), decimal.NewFromInt(100))
	if !got.IsZero() {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestPercentChangeZeroBaseline(t *testing.T) {
	got := PercentChange(decimal.NewFromInt(50), decimal.Zero)
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("zero baseline should yield the 100 sentinel, got %s", got)
	}
}

func TestPercentChangeTruncatesTowardZero(t *testing.T) {
	got := PercentChange(decimal.NewFromInt(1), decimal.NewFromInt(3))
	want := decimal.RequireFromString("-66.66")
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestPercentChangeSmallMove(t *testing.T) {
	got := PercentChange(decimal.NewFromInt(201), decimal.NewFromInt(200))
	want := decimal.RequireFromString("0.5")
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
