package types

import "testing"

func TestConstantHashCodeStableAcrossUnicodeNormalForms(t *testing.T) {
	// "cafe" with a precomposed e-acute (U+00E9) vs. the same word built
	// from a bare "e" plus a combining acute accent (U+0301): two
	// different byte sequences for what a user would type and see as the
	// same string. NFKC normalization (done inside HashCode) must make
	// them hash identically even though a plain byte comparison would not.
	precomposed := NewConstantString("café")
	decomposed := NewConstantString("café")

	if precomposed.AsString() == decomposed.AsString() {
		t.Fatalf("test fixture is broken: the two byte representations must differ")
	}
	if precomposed.HashCode() != decomposed.HashCode() {
		t.Errorf("HashCode differed across Unicode normal forms of the same string: %d != %d",
			precomposed.HashCode(), decomposed.HashCode())
	}
}

func TestConstantHashCodeConsistentForIntegers(t *testing.T) {
	a := NewConstantInt(42)
	b := NewConstantInt(42)
	if a.HashCode() != b.HashCode() {
		t.Errorf("equal int Constants hashed differently: %d != %d", a.HashCode(), b.HashCode())
	}

	c := NewConstantInt(43)
	if a.HashCode() == c.HashCode() {
		t.Errorf("distinct int Constants 42 and 43 hashed the same: %d", a.HashCode())
	}
}
