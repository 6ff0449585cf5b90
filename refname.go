package git

import "strings"

// validRefComponent implements the bulk of git's check-ref-format grammar
// for a single "/"-separated component of a short ref name (e.g. the
// "foo" in "refs/heads/foo"): no empty components, no leading dot, no
// ".lock" suffix, no "..", no control characters or any of the characters
// git reserves for its own syntax, and no component that is only dots.
func validRefComponent(c string) bool {
	if c == "" || c == "." || c == "@" {
		return false
	}
	if strings.HasPrefix(c, ".") || strings.HasSuffix(c, ".") || strings.HasSuffix(c, ".lock") {
		return false
	}
	if strings.Contains(c, "..") {
		return false
	}
	for _, r := range c {
		switch {
		case r < 0x20 || r == 0x7f:
			return false
		case strings.ContainsRune(" ~^:?*[\\", r):
			return false
		}
	}
	return true
}

// validRefName reports whether name satisfies the git ref-name grammar
// well enough for this engine's purposes: every "/"-separated component
// passes validRefComponent, the name doesn't start or end with "/", and
// it contains no "//" or "@{".
func validRefName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	if strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return false
	}
	for _, c := range strings.Split(name, "/") {
		if !validRefComponent(c) {
			return false
		}
	}
	return true
}

// sanitizeRefName rewrites name into something validRefName would accept,
// for use as the suggestion carried on an InvalidRefNameError.
func sanitizeRefName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "/.")
	for strings.Contains(out, "//") {
		out = strings.ReplaceAll(out, "//", "/")
	}
	if out == "" {
		out = "unnamed"
	}
	return out
}
