package source

import "net/url"

type Kind int

const (
	KindLocal Kind = iota
	KindRemote
)

// Reference is the resolved form of a caller-supplied source string:
// either a filesystem path returned verbatim to the caller, or a validated
// remote URL in canonical form. Exactly one variant is populated.
type Reference struct {
	kind      Kind
	localPath string
	remoteUrl url.URL
}

func (r *Reference) Kind() Kind {
	return r.kind
}

func (r *Reference) IsLocal() bool {
	return r.kind == KindLocal
}

func (r *Reference) IsRemote() bool {
	return r.kind == KindRemote
}

// LocalPath is only meaningful when IsLocal reports true.
func (r *Reference) LocalPath() string {
	return r.localPath
}

// RemoteURL is only meaningful when IsRemote reports true. The returned
// URL is already canonicalized for key derivation.
func (r *Reference) RemoteURL() url.URL {
	return r.remoteUrl
}

func (r *Reference) String() string {
	if r.kind == KindRemote {
		return r.remoteUrl.String()
	}
	return r.localPath
}

// ResolveParam carries the validation policy. Values are passed from
// outside (e.g., config) and should not be known by the resolver internally.
type ResolveParam struct {
	allowedSchemes []string
	deniedHosts    []string
}

func NewResolveParam(allowedSchemes []string, deniedHosts []string) ResolveParam {
	return ResolveParam{
		allowedSchemes: allowedSchemes,
		deniedHosts:    deniedHosts,
	}
}

func (p *ResolveParam) AllowedSchemes() []string {
	out := make([]string, len(p.allowedSchemes))
	copy(out, p.allowedSchemes)
	return out
}

func (p *ResolveParam) DeniedHosts() []string {
	out := make([]string, len(p.deniedHosts))
	copy(out, p.deniedHosts)
	return out
}

// NewLocalReferenceForTest creates a local Reference for testing purposes.
// This allows test packages to construct Reference values without
// accessing unexported fields directly.
func NewLocalReferenceForTest(path string) Reference {
	return Reference{
		kind:      KindLocal,
		localPath: path,
	}
}

// NewRemoteReferenceForTest creates a remote Reference for testing purposes.
func NewRemoteReferenceForTest(remoteUrl url.URL) Reference {
	return Reference{
		kind:      KindRemote,
		remoteUrl: remoteUrl,
	}
}
