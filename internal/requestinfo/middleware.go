// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
This handler sits near the top of the chain, after request logging and
before the form routes.  For every request it:

  1. Parses the User-Agent header and Accept-Language list.
  2. Picks the client IP.  With TrustProxy the left-most valid address in
     X-Forwarded-For or X-Real-IP wins; otherwise only r.RemoteAddr counts.
  3. Performs a GeoIP lookup when a database is loaded.
  4. Stores a *RequestInfo in the request context.

Instrumentation
---------------
At debug level each invocation logs the client IP, country, browser, and
bot flag.
*/
package requestinfo

import (
	"net"
	"net/http"
	"strings"
)

/*──────────────────────────── middleware ───────────────────────────────────*/

// Middleware wraps next, attaches *RequestInfo, and forwards.
func (e *Enricher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := e.Build(r)

		e.log.Debugw("request info",
			"ip", info.ClientIP(),
			"country", info.Geo.CountryISO,
			"browser", info.UA.Browser,
			"bot", info.UA.IsBot,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
	})
}

// Build derives a RequestInfo from r without touching its context.
func (e *Enricher) Build(r *http.Request) *RequestInfo {
	return &RequestInfo{
		UA:        parseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
		Geo:       e.lookupGeo(e.clientIP(r)),
		Timestamp: e.now().UTC(),
	}
}

/*──────────────────────────── client IP helper ─────────────────────────────*/

func (e *Enricher) clientIP(r *http.Request) net.IP {
	if e.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
					return ip
				}
			}
		}
		if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
			if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(r.RemoteAddr)
}
