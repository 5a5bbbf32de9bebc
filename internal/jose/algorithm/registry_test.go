package algorithm

import (
	"errors"
	"testing"
)

func TestLookupKnown(t *testing.T) {
	names := []string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512",
		"ES256", "ES384", "ES512", "PS256", "PS384", "PS512", "EdDSA", "none"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			d, err := Lookup(name)
			if err != nil {
				t.Fatalf("Lookup(%q) returned error: %v", name, err)
			}
			if d.Name != name {
				t.Errorf("Name = %q, want %q", d.Name, name)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("HS1")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestPSSParams(t *testing.T) {
	d, err := Lookup("PS256")
	if err != nil {
		t.Fatal(err)
	}
	if d.PSS == nil {
		t.Fatal("expected PSS params for PS256")
	}
	if d.PSS.SaltLength != 32 {
		t.Errorf("SaltLength = %d, want 32", d.PSS.SaltLength)
	}
}

func TestDefaultPermitted(t *testing.T) {
	set := DefaultPermitted()
	for _, name := range []string{"RS256", "RS384", "RS512"} {
		if _, ok := set[name]; !ok {
			t.Errorf("default permitted set missing %q", name)
		}
	}
	if len(set) != 3 {
		t.Errorf("len(set) = %d, want 3", len(set))
	}
}

func TestCurveBitSize(t *testing.T) {
	cases := map[string]int{"P-256": 32, "P-384": 48, "P-521": 66}
	for curve, want := range cases {
		got, err := CurveBitSize(curve)
		if err != nil {
			t.Fatalf("CurveBitSize(%q): %v", curve, err)
		}
		if got != want {
			t.Errorf("CurveBitSize(%q) = %d, want %d", curve, got, want)
		}
	}
	if _, err := CurveBitSize("P-999"); err == nil {
		t.Error("expected error for unsupported curve")
	}
}
