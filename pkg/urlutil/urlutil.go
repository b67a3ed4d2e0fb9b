package urlutil

import (
	"net/url"
	"path"
)

// Canonicalize applies a deterministic normalization to a URL, producing the
// canonical form used for resource identity. It maps equivalent URL spellings
// to a single representation while keeping everything that can address a
// different resource.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Fragments are removed (never sent to the server)
//   - Path, query, and trailing slashes are preserved: two URLs differing in
//     any of them may name different resources and must stay distinct
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on prior lookups
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	// A bare "?" carries no query; drop it so both spellings collapse
	if canonical.RawQuery == "" {
		canonical.ForceQuery = false
	}

	return canonical
}

// ExtensionOf returns the file extension of the URL path including the
// leading dot, or "" when the path has none. Only short alphanumeric
// extensions are recognized so hashed cache names stay filesystem-friendly.
func ExtensionOf(u url.URL) string {
	ext := path.Ext(u.Path)
	if len(ext) < 2 || len(ext) > 9 {
		return ""
	}
	for i := 1; i < len(ext); i++ {
		c := ext[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
