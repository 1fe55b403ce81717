package internal

import "testing"

func TestParseDepth(t *testing.T) {
	for _, tc := range []struct {
		s string
		d Depth
	}{
		{"0", DepthZero},
		{"1", DepthOne},
		{"infinity", DepthInfinity},
	} {
		d, err := ParseDepth(tc.s)
		if err != nil {
			t.Fatalf("ParseDepth(%q) = %v", tc.s, err)
		}
		if d != tc.d {
			t.Errorf("ParseDepth(%q) = %v, want %v", tc.s, d, tc.d)
		}
		if got := d.String(); got != tc.s {
			t.Errorf("Depth.String() = %q, want %q", got, tc.s)
		}
	}

	if _, err := ParseDepth("2"); err == nil {
		t.Errorf("ParseDepth(\"2\") succeeded, expected an error")
	}
}
