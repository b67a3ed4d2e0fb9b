/*
Package source classifies caller-supplied references into local paths and
remote URLs.

Responsibilities:
- Decide whether a reference names a local file or a remote resource. The
  scheme separator "://" is the discriminator: anything without it is a
  local path and is returned verbatim, without touching the filesystem.
- Validate remote references: the URL must parse, carry an allowed scheme,
  and name a host that is not on the deny list.
- Canonicalize accepted remote URLs so that downstream key derivation sees
  one spelling per resource.

Resolution is pure classification. It performs no filesystem access and no
network I/O; existence checks belong to the caller that consumes the
reference.
*/
package source

import (
	"net/url"
	"strings"

	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/urlutil"
)

// Resolve classifies a reference string into a local or remote Reference.
//
// A reference containing no "://" separator is treated as a local path and
// passed through unchanged. Anything URL-shaped must parse, use one of the
// allowed schemes, and name a permitted host, otherwise a non-retryable
// ResolveError describes what disqualified it.
func Resolve(reference string, param ResolveParam) (Reference, failure.ClassifiedError) {
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return Reference{}, &ResolveError{
			Message:   "reference is empty",
			Retryable: false,
			Cause:     ErrCauseEmptyReference,
		}
	}

	if !strings.Contains(trimmed, "://") {
		return Reference{
			kind:      KindLocal,
			localPath: trimmed,
		}, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Reference{}, &ResolveError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseUnparsable,
		}
	}

	if !schemeAllowed(parsed.Scheme, param.allowedSchemes) {
		return Reference{}, &ResolveError{
			Message:   "scheme " + parsed.Scheme + " is not allowed",
			Retryable: false,
			Cause:     ErrCauseSchemeNotAllowed,
		}
	}

	if parsed.Host == "" {
		return Reference{}, &ResolveError{
			Message:   "url " + trimmed + " has no host",
			Retryable: false,
			Cause:     ErrCauseMissingHost,
		}
	}

	if hostDenied(parsed.Hostname(), param.deniedHosts) {
		return Reference{}, &ResolveError{
			Message:   "host " + parsed.Hostname() + " is denied",
			Retryable: false,
			Cause:     ErrCauseDeniedHost,
		}
	}

	canonical := urlutil.Canonicalize(*parsed)
	return Reference{
		kind:      KindRemote,
		remoteUrl: canonical,
	}, nil
}

func schemeAllowed(scheme string, allowed []string) bool {
	for _, candidate := range allowed {
		if strings.EqualFold(scheme, candidate) {
			return true
		}
	}
	return false
}

func hostDenied(host string, denied []string) bool {
	for _, candidate := range denied {
		if strings.EqualFold(host, candidate) {
			return true
		}
	}
	return false
}
