package session

// Allowlist grants admin capability to statically configured identities.
// The identity must come from a verified source: a platform-verified user ID
// for chat surfaces ("slack:U0123"), or for the REST surface an X-Identity
// header that the fronting reverse proxy sets after authenticating the
// caller and strips from inbound traffic. The service itself does not
// authenticate; a "rest:" identity reaching it unproxied is a deployment
// error, not something Authorize can detect.
type Allowlist struct {
	admins map[string]struct{}
}

// NewAllowlist builds an allow-list from configured admin identities. Empty
// entries are ignored.
func NewAllowlist(admins []string) *Allowlist {
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		if a != "" {
			set[a] = struct{}{}
		}
	}
	return &Allowlist{admins: set}
}

// Authorize reports whether identity holds admin capability.
func (a *Allowlist) Authorize(identity string) bool {
	_, ok := a.admins[identity]
	return ok
}
