package sanitizer

import (
	"regexp"

	"github.com/c360/debugtel/event"
)

// Category groups redaction rules by the kind of data they remove.
type Category string

// Rule categories.
const (
	CategoryPII    Category = "pii"
	CategoryAuth   Category = "auth"
	CategorySystem Category = "system"
	CategoryCustom Category = "custom"
)

// Gate names the configuration switch that enables a rule.
type Gate int

// Gates. GateAlways rules run whenever sanitization is enabled.
const (
	GateAlways Gate = iota
	GateUserData
	GateTokens
	GateAPIKeys
	GateLongTokens
)

// Rule is one redaction pattern. Replacement may reference capture groups
// with ${n} syntax.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	Category    Category
	Severity    event.Severity
	Gate        Gate
}

// Redaction markers.
const (
	RedactedMarker = "[REDACTED]"
	EmailMarker    = "[EMAIL_REDACTED]"
	CardMarker     = "[CARD_REDACTED]"
	SSNMarker      = "[SSN_REDACTED]"
	PhoneMarker    = "[PHONE_REDACTED]"
	TokenMarker    = "[TOKEN_REDACTED]"
	APIKeyMarker   = "[API_KEY_REDACTED]"
	JWTMarker      = "[JWT_REDACTED]"
	DBURIMarker    = "[DB_URI_REDACTED]"
	PathMarker     = "[PATH_REDACTED]"
	IPMarker       = "[IP_REDACTED]"
	URLMarker      = "[URL_REDACTED]"
)

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	cardPattern     = regexp.MustCompile(`\b(?:\d{4}[\s-]?){3}\d{4}\b`)
	ssnPattern      = regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)
	phonePattern    = regexp.MustCompile(`(?:\+\d{1,3}[\s-]?)?\(?\b\d{2,4}\)?[\s-]\d{3,4}[\s-]\d{3,4}\b`)
	bearerPattern   = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*`)
	apiKeyPattern   = regexp.MustCompile(`(?i)(api[_-]?key|apikey|access[_-]?token|client[_-]?secret|secret[_-]?key)(\s*[:=]\s*)("?)[^\s",;&]+`)
	passwordPattern = regexp.MustCompile(`(?i)(password|passwd|pwd)(\s*[:=]\s*)("?)[^\s",;&]+`)
	jwtPattern      = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	dbURIPattern    = regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|rediss|amqps?|mssql|sqlserver)://[^\s"'<>]+`)
	pathPattern     = regexp.MustCompile(`(?:/(?:home|Users|root|var|etc|usr|opt|tmp|srv)/[^\s"'<>:]+)|(?:\b[A-Za-z]:\\[^\s"'<>]+)`)
	ipv4Pattern     = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`)
	longToken       = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)

	urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>]+`)
)

// DefaultRules returns the built-in rule table in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "email", Pattern: emailPattern, Replacement: EmailMarker, Category: CategoryPII, Severity: event.SeverityMedium, Gate: GateUserData},
		{Name: "credit_card", Pattern: cardPattern, Replacement: CardMarker, Category: CategoryPII, Severity: event.SeverityCritical, Gate: GateUserData},
		{Name: "ssn", Pattern: ssnPattern, Replacement: SSNMarker, Category: CategoryPII, Severity: event.SeverityCritical, Gate: GateUserData},
		{Name: "phone", Pattern: phonePattern, Replacement: PhoneMarker, Category: CategoryPII, Severity: event.SeverityMedium, Gate: GateUserData},
		{Name: "bearer_token", Pattern: bearerPattern, Replacement: "Bearer " + TokenMarker, Category: CategoryAuth, Severity: event.SeverityHigh, Gate: GateTokens},
		{Name: "api_key", Pattern: apiKeyPattern, Replacement: "${1}${2}${3}" + APIKeyMarker, Category: CategoryAuth, Severity: event.SeverityHigh, Gate: GateAPIKeys},
		{Name: "password", Pattern: passwordPattern, Replacement: "${1}${2}${3}" + RedactedMarker, Category: CategoryAuth, Severity: event.SeverityCritical, Gate: GateAlways},
		{Name: "jwt", Pattern: jwtPattern, Replacement: JWTMarker, Category: CategoryAuth, Severity: event.SeverityHigh, Gate: GateTokens},
		{Name: "database_uri", Pattern: dbURIPattern, Replacement: DBURIMarker, Category: CategorySystem, Severity: event.SeverityHigh, Gate: GateAlways},
		{Name: "file_path", Pattern: pathPattern, Replacement: PathMarker, Category: CategorySystem, Severity: event.SeverityLow, Gate: GateAlways},
		{Name: "ipv4", Pattern: ipv4Pattern, Replacement: IPMarker, Category: CategorySystem, Severity: event.SeverityLow, Gate: GateAlways},
		{Name: "long_token", Pattern: longToken, Replacement: TokenMarker, Category: CategoryCustom, Severity: event.SeverityMedium, Gate: GateLongTokens},
	}
}

// sensitiveKeys are substrings that mark a map key's value as secret.
var sensitiveKeys = []string{
	"password", "passwd", "secret", "key", "token", "auth", "credential",
	"cookie", "session", "csrf", "private", "signature", "ssn",
}

func (c Config) gateOpen(g Gate) bool {
	switch g {
	case GateUserData:
		return c.RedactUserData
	case GateTokens:
		return c.RedactTokens
	case GateAPIKeys:
		return c.RedactAPIKeys
	case GateLongTokens:
		return c.RedactLongTokens
	default:
		return true
	}
}
