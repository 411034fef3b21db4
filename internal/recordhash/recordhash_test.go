package recordhash_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/errdefs"
	"github.com/ProtocolSync/protocolsync-portal-mr-sub000/internal/recordhash"
)

func TestCompute_deterministic(t *testing.T) {
	fields := []recordhash.Field{
		recordhash.String("version_number", "2.1"),
		recordhash.Int("uploaded_by", 42),
		recordhash.Time("uploaded_at", time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)),
	}

	h1, err := recordhash.Compute(fields, recordhash.Sentinel)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := recordhash.Compute(fields, recordhash.Sentinel)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}

func TestCompute_fieldOrderMatters(t *testing.T) {
	a := []recordhash.Field{recordhash.String("a", "1"), recordhash.String("b", "2")}
	b := []recordhash.Field{recordhash.String("b", "2"), recordhash.String("a", "1")}

	ha, _ := recordhash.Compute(a, recordhash.Sentinel)
	hb, _ := recordhash.Compute(b, recordhash.Sentinel)
	if ha == hb {
		t.Error("reordered fields must not produce the same hash")
	}
}

func TestCompute_chainedHashDiffers(t *testing.T) {
	fields := []recordhash.Field{recordhash.String("status", "current")}

	first, _ := recordhash.Compute(fields, recordhash.Sentinel)
	second, err := recordhash.Compute(fields, first)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Error("same fields with different previous hashes must differ")
	}
}

func TestCompute_noDelimiterCollision(t *testing.T) {
	// "a|b" + "c" must hash differently from "a" + "b|c".
	x := []recordhash.Field{recordhash.String("f", "a|b"), recordhash.String("g", "c")}
	y := []recordhash.Field{recordhash.String("f", "a"), recordhash.String("g", "b|c")}

	hx, _ := recordhash.Compute(x, recordhash.Sentinel)
	hy, _ := recordhash.Compute(y, recordhash.Sentinel)
	if hx == hy {
		t.Error("length-prefixed encoding must prevent delimiter collisions")
	}
}

func TestCompute_rejectsBadPreviousHash(t *testing.T) {
	fields := []recordhash.Field{recordhash.String("a", "1")}

	for _, prev := range []string{"", "abc", "zz" + recordhash.Sentinel[2:]} {
		if _, err := recordhash.Compute(fields, prev); !errors.Is(err, errdefs.ErrEncoding) {
			t.Errorf("previous hash %q: expected ErrEncoding, got %v", prev, err)
		}
	}
}

func TestFloat_nonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := recordhash.Float("x", v); !errors.Is(err, errdefs.ErrEncoding) {
			t.Errorf("value %v: expected ErrEncoding, got %v", v, err)
		}
	}
	if _, err := recordhash.Float("x", 1.25); err != nil {
		t.Errorf("finite float should canonicalize: %v", err)
	}
}

func TestMatches(t *testing.T) {
	fields := []recordhash.Field{
		recordhash.String("status", "accepted"),
		recordhash.String("signed_by", "Jane Smith"),
	}
	h, err := recordhash.Compute(fields, recordhash.Sentinel)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := recordhash.Matches(fields, recordhash.Sentinel, h)
	if err != nil || !ok {
		t.Errorf("Matches() = %v, %v; want true, nil", ok, err)
	}

	tampered := []recordhash.Field{
		recordhash.String("status", "accepted"),
		recordhash.String("signed_by", "John Smith"),
	}
	ok, err = recordhash.Matches(tampered, recordhash.Sentinel, h)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("tampered fields must not match the stored hash")
	}
}

func TestTimePtr_nilEncodesEmpty(t *testing.T) {
	f := recordhash.TimePtr("signed_at", nil)
	if f.Value != "" {
		t.Errorf("nil time should encode empty, got %q", f.Value)
	}
}
