package directory

import (
	"log/slog"
	"strings"
	"time"
)

// AuthMethod selects how the connector authenticates against the directory.
type AuthMethod string

const (
	AuthAnonymous AuthMethod = "anonymous"
	AuthSimple    AuthMethod = "simple"
	AuthSASL      AuthMethod = "sasl"
)

// LDAPConfig describes the directory endpoint and the credentials used to
// bind against it. It is immutable once validated.
type LDAPConfig struct {
	// Server is the directory URL, e.g. ldap://ldap.corp.example.com:389
	// or ldaps://ldap.corp.example.com:636.
	Server string `json:"server"`
	// BaseDN is the root distinguished name all searches are scoped under.
	BaseDN string `json:"base_dn"`
	// AuthMethod is one of anonymous, simple or sasl.
	AuthMethod AuthMethod `json:"auth_method" default:"anonymous"`
	// BindDN is the service account DN, required for simple auth.
	BindDN string `json:"bind_dn"`
	// Password is the service account password, required for simple auth.
	Password string `json:"password"`
	// ConnectTimeoutSeconds bounds each connect attempt.
	ConnectTimeoutSeconds int `json:"timeout" default:"30"`
	// ReceiveTimeoutSeconds bounds each network round-trip on a bound session.
	ReceiveTimeoutSeconds int `json:"receive_timeout" default:"10"`
	// SASL holds Kerberos/GSSAPI settings, consulted only when AuthMethod is sasl.
	SASL *SASLConfig `json:"sasl,omitempty"`
}

// ConnectTimeout returns the connect timeout as a duration.
func (c LDAPConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// ReceiveTimeout returns the per-round-trip receive timeout as a duration.
func (c LDAPConfig) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutSeconds) * time.Second
}

// SASLConfig holds settings for the GSSAPI bind path. Credentials are
// resolved in ccache, keytab, password order.
type SASLConfig struct {
	Mechanism        string `json:"mechanism" default:"GSSAPI"`
	Realm            string `json:"realm"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	KeytabPath       string `json:"keytab"`
	CCachePath       string `json:"ccache"`
	Krb5ConfPath     string `json:"krb5_conf" default:"/etc/krb5.conf"`
	ServicePrincipal string `json:"service_principal"`
}

// SchemaConfig maps the directory's data model: object classes, search bases,
// searchable attributes and the single/multi-valued classification consulted
// by the normalizer.
type SchemaConfig struct {
	PersonObjectClass string `json:"person_object_class" default:"person"`
	GroupObjectClass  string `json:"group_object_class" default:"groupOfNames"`

	// PersonSearchBase scopes people searches; falls back to the base DN.
	PersonSearchBase string `json:"person_search_base"`
	// GroupSearchBase scopes group searches; falls back to the base DN.
	GroupSearchBase string `json:"group_search_base"`

	// SearchFields lists the attributes matched per entity type when
	// building substring filters from a free-text query.
	SearchFields map[string][]string `json:"search_fields"`

	// CorporateAttributes are requested on every person lookup.
	CorporateAttributes []string `json:"corporate_attributes"`
	// ExtendedAttributes are vendor attributes requested but not indexed on.
	ExtendedAttributes []string `json:"extended_attributes"`

	// MultiValuedAttributes classifies attributes the normalizer emits as
	// ordered sequences; everything else is treated as single-valued.
	MultiValuedAttributes []string `json:"multi_valued_attributes"`

	// AttributeAliases renames vendor attributes to canonical field names in
	// normalized records, e.g. rhatLocation -> location.
	AttributeAliases map[string]string `json:"attribute_aliases"`
}

// IsMultiValued reports whether the normalizer should keep every value of
// the named attribute.
func (s SchemaConfig) IsMultiValued(attr string) bool {
	for _, a := range s.MultiValuedAttributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

// CanonicalName resolves an attribute to its canonical field name.
func (s SchemaConfig) CanonicalName(attr string) string {
	for raw, alias := range s.AttributeAliases {
		if strings.EqualFold(raw, attr) {
			return alias
		}
	}
	return attr
}

// PersonAttributes returns the full attribute list requested for person
// entries: corporate attributes plus extended vendor attributes.
func (s SchemaConfig) PersonAttributes() []string {
	attrs := make([]string, 0, len(s.CorporateAttributes)+len(s.ExtendedAttributes))
	attrs = append(attrs, s.CorporateAttributes...)
	attrs = append(attrs, s.ExtendedAttributes...)
	return attrs
}

// SecurityConfig carries the transport security flags.
type SecurityConfig struct {
	EnableTLS           bool   `json:"enable_tls"`
	ValidateCertificate bool   `json:"validate_certificate" default:"true"`
	CACertFile          string `json:"ca_cert_file"`
}

// LoggingConfig selects log level and destination for the process logger.
type LoggingConfig struct {
	Level string `json:"level" default:"INFO"`
	File  string `json:"file"`
}

// SlogLevel maps the configured level onto a slog.Level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToUpper(l.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// PerformanceConfig bounds retries, paging and result sizes.
//
// PageSize <= MaxResults is recommended but not enforced; the search executor
// caps the running total at MaxResults regardless of page size.
type PerformanceConfig struct {
	// MaxRetries is the number of retries after the initial connect attempt.
	MaxRetries int `json:"max_retries" default:"3"`
	// RetryDelaySeconds is the fixed delay between connect attempts.
	RetryDelaySeconds float64 `json:"retry_delay" default:"1"`
	// PageSize is the server-side paging cookie size.
	PageSize int `json:"page_size" default:"1000"`
	// MaxResults caps the total entries returned by one search.
	MaxResults int `json:"max_results" default:"5000"`
}

// RetryDelay returns the fixed inter-attempt delay as a duration.
func (p PerformanceConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelaySeconds * float64(time.Second))
}

// ExportConfig governs the export collaborator hand-off.
type ExportConfig struct {
	// Formats is the allow-list of export format tags.
	Formats []string `json:"formats"`
	// MaxExportSize caps the number of records handed to the formatter.
	MaxExportSize int `json:"max_export_size" default:"10000"`
	// SensitiveAttributes are stripped from records before export.
	SensitiveAttributes []string `json:"sensitive_attributes"`
}

// FormatAllowed reports whether the given format tag may be exported.
func (e ExportConfig) FormatAllowed(format string) bool {
	for _, f := range e.Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// Config is the validated top-level configuration consumed by the connector.
type Config struct {
	LDAP        LDAPConfig        `json:"ldap"`
	Schema      SchemaConfig      `json:"schema"`
	Security    SecurityConfig    `json:"security"`
	Logging     LoggingConfig     `json:"logging"`
	Performance PerformanceConfig `json:"performance"`
	Export      ExportConfig      `json:"export"`

	// Logger is the process logger; slog.Default() when nil.
	Logger *slog.Logger `json:"-"`
}

// Validate checks the configuration against the rules the connector depends
// on. It returns a *ConfigurationError naming the first offending field.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.LDAP.Server, "ldap://") && !strings.HasPrefix(c.LDAP.Server, "ldaps://") {
		return configError("ldap.server", "must specify an ldap:// or ldaps:// scheme, got %q", c.LDAP.Server)
	}
	if strings.TrimSpace(c.LDAP.BaseDN) == "" {
		return configError("ldap.base_dn", "must not be empty")
	}

	switch c.LDAP.AuthMethod {
	case AuthAnonymous:
		// Anonymous access never fails validation on credential grounds.
	case AuthSimple:
		if strings.TrimSpace(c.LDAP.BindDN) == "" {
			return configError("ldap.bind_dn", "required for simple authentication")
		}
		if c.LDAP.Password == "" {
			return configError("ldap.password", "required for simple authentication")
		}
	case AuthSASL:
		if c.LDAP.SASL == nil {
			return configError("ldap.sasl", "required for sasl authentication")
		}
		if !strings.EqualFold(c.LDAP.SASL.Mechanism, "GSSAPI") {
			return configError("ldap.sasl.mechanism", "unsupported mechanism %q, only GSSAPI is supported", c.LDAP.SASL.Mechanism)
		}
	default:
		return configError("ldap.auth_method", "must be one of anonymous, simple, sasl, got %q", c.LDAP.AuthMethod)
	}

	if c.LDAP.ConnectTimeoutSeconds <= 0 {
		return configError("ldap.timeout", "must be positive, got %d", c.LDAP.ConnectTimeoutSeconds)
	}
	if c.LDAP.ReceiveTimeoutSeconds <= 0 {
		return configError("ldap.receive_timeout", "must be positive, got %d", c.LDAP.ReceiveTimeoutSeconds)
	}
	if c.Performance.MaxRetries < 0 {
		return configError("performance.max_retries", "must not be negative, got %d", c.Performance.MaxRetries)
	}
	if c.Performance.RetryDelaySeconds < 0 {
		return configError("performance.retry_delay", "must not be negative, got %v", c.Performance.RetryDelaySeconds)
	}
	if c.Performance.PageSize <= 0 {
		return configError("performance.page_size", "must be positive, got %d", c.Performance.PageSize)
	}
	if c.Performance.MaxResults <= 0 {
		return configError("performance.max_results", "must be positive, got %d", c.Performance.MaxResults)
	}
	if c.Export.MaxExportSize <= 0 {
		return configError("export.max_export_size", "must be positive, got %d", c.Export.MaxExportSize)
	}
	for _, f := range c.Export.Formats {
		if !strings.EqualFold(f, "json") && !strings.EqualFold(f, "csv") {
			return configError("export.formats", "unsupported format %q", f)
		}
	}

	if c.Schema.PersonSearchBase != "" && !dnUnder(c.Schema.PersonSearchBase, c.LDAP.BaseDN) {
		return configError("schema.person_search_base", "%q must be under base DN %q", c.Schema.PersonSearchBase, c.LDAP.BaseDN)
	}
	if c.Schema.GroupSearchBase != "" && !dnUnder(c.Schema.GroupSearchBase, c.LDAP.BaseDN) {
		return configError("schema.group_search_base", "%q must be under base DN %q", c.Schema.GroupSearchBase, c.LDAP.BaseDN)
	}

	return nil
}

// PersonSearchBase returns the configured person search base, falling back
// to the endpoint base DN.
func (c *Config) PersonSearchBase() string {
	if c.Schema.PersonSearchBase != "" {
		return c.Schema.PersonSearchBase
	}
	return c.LDAP.BaseDN
}

// GroupSearchBase returns the configured group search base, falling back to
// the endpoint base DN.
func (c *Config) GroupSearchBase() string {
	if c.Schema.GroupSearchBase != "" {
		return c.Schema.GroupSearchBase
	}
	return c.LDAP.BaseDN
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// dnUnder reports whether child is scoped under parent, case-insensitively.
func dnUnder(child, parent string) bool {
	return strings.HasSuffix(strings.ToLower(child), strings.ToLower(parent))
}
