/*
Package cachekey maps canonical remote URLs onto deterministic cache entry
names.

Responsibilities:
- Derive a collision-resistant digest from the canonical URL, prefixed with
  a namespace string so that a format change can retire every old entry at
  once by bumping the namespace.
- Keep the derivation total and deterministic: the same URL and the same
  parameters always yield the same key, with no filesystem access and no
  randomness.
- Preserve the URL path's extension on the entry filename when it looks
  like a real one, because consumers hand cached files to tools that sniff
  type by suffix.
*/
package cachekey

import (
	"net/url"

	"github.com/rohmanhakim/datacache/pkg/failure"
	"github.com/rohmanhakim/datacache/pkg/hashutil"
	"github.com/rohmanhakim/datacache/pkg/urlutil"
)

// Derive computes the cache Key for a remote URL.
//
// The URL is canonicalized before hashing, so spellings that name the same
// resource converge on one key even if the caller skipped resolution. The
// hashed material is "<namespace>|<canonical url>", which keeps equal URLs
// under different namespaces from ever sharing an entry.
func Derive(remoteUrl url.URL, param DeriveParam) (Key, failure.ClassifiedError) {
	canonical := urlutil.Canonicalize(remoteUrl)
	material := param.namespace + "|" + canonical.String()

	digest, err := hashutil.HashBytesPrefix([]byte(material), param.algo, param.digestLen)
	if err != nil {
		return Key{}, &DeriveError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseUnsupportedAlgo,
		}
	}

	return Key{
		digest: digest,
		ext:    urlutil.ExtensionOf(canonical),
	}, nil
}
