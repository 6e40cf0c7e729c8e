package assetfs

import "testing"

func TestSanitizeDirName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "my study", want: "my_study"},
		{in: "  padded  ", want: "padded"},
		{in: "../escape", want: "escape"},
		{in: "a/b\\c", want: "abc"},
		{in: ".hidden", want: "hidden"},
		{in: "ümlaut-ok_1.0", want: "mlaut-ok_1.0"},
		{in: "", want: "study"},
		{in: "...", want: "study"},
	}
	for _, tc := range cases {
		if got := SanitizeDirName(tc.in); got != tc.want {
			t.Fatalf("SanitizeDirName(%q): got=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestWithSuffix(t *testing.T) {
	if got := WithSuffix("demo", 1); got != "demo" {
		t.Fatalf("n=1: got=%q", got)
	}
	if got := WithSuffix("demo", 3); got != "demo_3" {
		t.Fatalf("n=3: got=%q", got)
	}
}

func TestValidateDirName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", ".incoming-x", "a/b", `a\b`} {
		if err := validateDirName(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if err := validateDirName("ok_name"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
