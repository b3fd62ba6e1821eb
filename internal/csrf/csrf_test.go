package csrf

import "testing"

func TestCheck(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		cookie string
		form   string
		want   bool
	}{
		{"both empty", "", "", false},
		{"cookie only", "abc", "", false},
		{"form only", "", "abc", false},
		{"match", "abc", "abc", true},
		{"mismatch", "abc", "abd", false},
		{"length mismatch", "abc", "abcd", false},
	}
	for _, tc := range cases {
		if got := Check(tc.cookie, tc.form); got != tc.want {
			t.Errorf("%s: Check(%q, %q) = %v, want %v", tc.name, tc.cookie, tc.form, got, tc.want)
		}
	}
}

func TestCheck_RepeatWithinLifetime(t *testing.T) {
	t.Parallel()
	tok, err := Mint()
	if err != nil {
		t.Fatal(err)
	}
	// tokens are not rotated mid-life; matching twice is fine
	for range 3 {
		if !Check(tok, tok) {
			t.Fatal("repeated match rejected")
		}
	}
}

func TestMint_Unpredictable(t *testing.T) {
	t.Parallel()
	a, err := Mint()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Mint()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != tokenBytes*2 {
		t.Fatalf("token length %d, want %d hex chars", len(a), tokenBytes*2)
	}
	if a == b {
		t.Fatal("two mints produced the same token")
	}
}
