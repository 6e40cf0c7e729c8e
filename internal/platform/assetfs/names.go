package assetfs

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	incomingPrefix = ".incoming-"
	retiredPrefix  = ".retired-"
	fallbackName   = "study"
)

// SanitizeDirName maps an arbitrary directory name to one safe to place
// directly beneath the assets root. Whitespace becomes '_', anything outside
// [A-Za-z0-9._-] is dropped, and leading dots are stripped.
func SanitizeDirName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return fallbackName
	}
	return out
}

// WithSuffix returns the n-th disambiguated variant of name (n >= 2).
func WithSuffix(name string, n int) string {
	if n < 2 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, n)
}

func validateDirName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid directory name %q", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("directory name %q is reserved", name)
	case strings.ContainsAny(name, `/\`), filepath.Base(name) != name:
		return fmt.Errorf("directory name %q must not contain separators", name)
	}
	return nil
}
