//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight types and helpers that collect per-request metadata
//  (user-agent fingerprint, client IP, country, and timestamp).  The form
//  handler copies these into a submission so the stored row and the
//  notification email carry the submitter's address, agent, and location.
//  These structs are inert and safe to log.
//
//  Dependencies
//  • github.com/avct/uasurfer            (UA parsing)
//  • github.com/oschwald/geoip2-golang   (MaxMind lookup)
//  • golang.org/x/text/language          (Accept-Language weighting)
//

package requestinfo

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// UA holds the parsed user-agent properties.
type UA struct {
	Raw         string // Entire User-Agent header
	Browser     string // "Chrome", "Firefox", "Safari", etc.
	Version     string // "124.0.6367"
	OS          string // "macOS", "Windows", "Android", "iOS", etc.
	OSVersion   string
	Device      string // "Desktop", "Phone", "Tablet", "TV", ...
	IsBot       bool
	PrimaryLang string // First tag from Accept-Language
}

// Geo holds IP-based geolocation hints.  Empty when no database is loaded
// or it has no match.
type Geo struct {
	IP         net.IP
	CountryISO string // "US", "NZ", ...
	Country    string // English name
	City       string // only with a City database
}

// RequestInfo is attached to the request context by Middleware.
type RequestInfo struct {
	UA        UA
	Geo       Geo
	Timestamp time.Time
}

// ClientIP returns the client address as text, or "".
func (ri *RequestInfo) ClientIP() string {
	if ri == nil || ri.Geo.IP == nil {
		return ""
	}
	return ri.Geo.IP.String()
}

// Location is the human-readable place for notification footers:
// "Auckland, New Zealand", "New Zealand", or "".
func (ri *RequestInfo) Location() string {
	if ri == nil {
		return ""
	}
	name := ri.Geo.Country
	if name == "" {
		name = ri.Geo.CountryISO
	}
	if ri.Geo.City != "" && name != "" {
		return ri.Geo.City + ", " + name
	}
	return name
}

//
//  -----------------------------
//  Enricher
//  -----------------------------
//

// Options configures New.
type Options struct {
	GeoDB      string // path to a GeoLite2 Country or City database; optional
	TrustProxy bool   // honour X-Forwarded-For and X-Real-IP
	Logger     *zap.SugaredLogger
}

// Enricher builds RequestInfo values.  Safe for concurrent use; the MaxMind
// reader only serves reads.
type Enricher struct {
	geo        *geoip2.Reader
	city       bool
	trustProxy bool
	log        *zap.SugaredLogger
	now        func() time.Time
}

// New opens the GeoIP database when opts.GeoDB is set.
func New(opts Options) (*Enricher, error) {
	e := &Enricher{trustProxy: opts.TrustProxy, log: opts.Logger, now: time.Now}
	if e.log == nil {
		e.log = zap.S()
	}
	if opts.GeoDB == "" {
		return e, nil
	}
	r, err := geoip2.Open(opts.GeoDB)
	if err != nil {
		return nil, fmt.Errorf("requestinfo: open geoip db: %w", err)
	}
	e.geo = r
	e.city = strings.Contains(r.Metadata().DatabaseType, "City")
	e.log.Infow("geoip database loaded", "path", opts.GeoDB, "type", r.Metadata().DatabaseType)
	return e, nil
}

// Close releases the GeoIP reader.
func (e *Enricher) Close() error {
	if e.geo == nil {
		return nil
	}
	return e.geo.Close()
}

// lookupGeo returns best-effort Geo data.
func (e *Enricher) lookupGeo(ip net.IP) Geo {
	g := Geo{IP: ip}
	if e.geo == nil || ip == nil {
		return g
	}
	if e.city {
		rec, err := e.geo.City(ip)
		if err != nil {
			return g
		}
		g.CountryISO = rec.Country.IsoCode
		g.Country = rec.Country.Names["en"]
		g.City = rec.City.Names["en"]
		return g
	}
	rec, err := e.geo.Country(ip)
	if err != nil {
		return g
	}
	g.CountryISO = rec.Country.IsoCode
	g.Country = rec.Country.Names["en"]
	return g
}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//

type ctxKey struct{}

// FromContext returns the pointer stored by Middleware, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// WithInfo returns ctx carrying ri.
func WithInfo(ctx context.Context, ri *RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, ri)
}

//
//  -----------------------------
//  Internal helpers
//  -----------------------------
//

// parseUA converts a raw header into our UA struct using uasurfer.
func parseUA(uaHeader, acceptLang string) UA {
	u := uasurfer.Parse(uaHeader)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}

	return UA{
		Raw:         uaHeader,
		Browser:     strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:     trimVersion(u.Browser.Version),
		OS:          osName,
		OSVersion:   trimVersion(u.OS.Version),
		Device:      deviceTypeToString(u.DeviceType),
		IsBot:       u.IsBot(),
		PrimaryLang: primaryLang(acceptLang),
	}
}

// trimVersion builds "major.minor.patch" and removes trailing ".0".
func trimVersion(v uasurfer.Version) string {
	parts := []string{strconv.Itoa(v.Major), strconv.Itoa(v.Minor), strconv.Itoa(v.Patch)}
	for len(parts) > 1 && parts[len(parts)-1] == "0" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

func deviceTypeToString(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	default:
		return "Unknown"
	}
}

// primaryLang returns the highest weighted tag in an Accept-Language header,
// lower-cased.  Malformed headers yield "".
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(al)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return strings.ToLower(tags[0].String())
}
