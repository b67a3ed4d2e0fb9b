package cachekey

import "github.com/rohmanhakim/datacache/pkg/hashutil"

// Key identifies one remote resource inside the cache directory. The digest
// is a fixed-length hex prefix of the hashed canonical URL; the extension is
// carried over from the URL path when it has a recognizable one so that
// cached files stay openable by type-sniffing tools.
type Key struct {
	digest string
	ext    string
}

func (k *Key) Digest() string {
	return k.digest
}

// Ext returns the preserved extension including its leading dot, or the
// empty string when the source URL had none.
func (k *Key) Ext() string {
	return k.ext
}

// Filename is the basename of the cache entry inside the cache directory.
func (k *Key) Filename() string {
	return k.digest + k.ext
}

// LockName is the basename of the lock file guarding this entry. It shares
// the digest but never the extension, so an entry and its lock cannot
// collide.
func (k *Key) LockName() string {
	return k.digest + ".lock"
}

func (k *Key) String() string {
	return k.Filename()
}

// DeriveParam pins the derivation policy. Changing any field changes every
// derived key, so values should only come from config defaults that are
// versioned alongside the namespace.
type DeriveParam struct {
	namespace string
	algo      hashutil.HashAlgo
	digestLen int
}

func NewDeriveParam(namespace string, algo hashutil.HashAlgo, digestLen int) DeriveParam {
	return DeriveParam{
		namespace: namespace,
		algo:      algo,
		digestLen: digestLen,
	}
}

func (p *DeriveParam) Namespace() string {
	return p.namespace
}

func (p *DeriveParam) Algo() hashutil.HashAlgo {
	return p.algo
}

func (p *DeriveParam) DigestLen() int {
	return p.digestLen
}

// NewKeyForTest creates a Key for testing purposes. This allows test
// packages to construct Key values without accessing unexported fields
// directly.
func NewKeyForTest(digest string, ext string) Key {
	return Key{
		digest: digest,
		ext:    ext,
	}
}
