package ids

import "testing"

func TestNewIsValidAndOrdered(t *testing.T) {
	first := New()
	second := New()

	if !Valid(first) || !Valid(second) {
		t.Fatalf("expected generated ids to be valid: %q %q", first, second)
	}
	if first == second {
		t.Fatal("expected unique ids")
	}
	if first > second {
		t.Fatalf("expected time ordered ids, got %q then %q", first, second)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"not-an-id", false},
		{"507f1f77bcf86cd799439011", false},
		{"{0190b7c4-5f2a-7cc3-9d7e-1f5e8a3b2c10}", false},
		{"0190b7c4-5f2a-7cc3-9d7e-1f5e8a3b2c10", true},
	}

	for _, tc := range cases {
		if got := Valid(tc.in); got != tc.want {
			t.Fatalf("Valid(%q) = %v want %v", tc.in, got, tc.want)
		}
	}
}
