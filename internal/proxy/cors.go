package proxy

// CORS header values sent on every response. Allow-origin is decided per
// request by originPolicy.
const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "3600"
)

// originPolicy is an immutable origin allow-list snapshot. The router
// swaps in a new snapshot on config reload, so lookups never lock.
type originPolicy struct {
	exact    map[string]bool
	allowAny bool
}

func newOriginPolicy(origins []string) *originPolicy {
	p := &originPolicy{exact: make(map[string]bool, len(origins))}

	for _, o := range origins {
		if o == "*" {
			p.allowAny = true

			continue
		}

		p.exact[o] = true
	}

	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for an inbound
// origin, or "" when the origin is not recognized. An unrecognized origin
// gets no allow-origin header at all — the browser enforces the rejection.
func (p *originPolicy) allowOrigin(origin string) string {
	switch {
	case origin == "":
		return ""
	case p.exact[origin]:
		return origin
	case p.allowAny:
		return "*"
	default:
		return ""
	}
}

// baseHeaders builds the header set every envelope starts from:
// allow-methods and allow-headers always, allow-origin only for a
// recognized origin.
func (p *originPolicy) baseHeaders(origin string) map[string]string {
	headers := map[string]string{
		"Access-Control-Allow-Methods": corsAllowMethods,
		"Access-Control-Allow-Headers": corsAllowHeaders,
		"Access-Control-Max-Age":       corsMaxAge,
	}

	if allowed := p.allowOrigin(origin); allowed != "" {
		headers["Access-Control-Allow-Origin"] = allowed
	}

	return headers
}
