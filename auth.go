package directory

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// Conn is the subset of *ldap.Conn the connector uses. Tests substitute a
// scripted implementation; production code always holds a real connection.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SetTimeout(d time.Duration)
	IsClosing() bool
	Close() error
}

var _ Conn = (*ldap.Conn)(nil)

// Authenticator produces a bound connection for one authentication method.
// Bind performs exactly one connect+bind attempt per invocation; all retry
// orchestration lives in the ConnectionManager.
type Authenticator interface {
	// Bind opens a transport connection and authenticates it. A server
	// rejection surfaces as a *BindError with the diagnostic preserved.
	Bind(ctx context.Context) (Conn, error)
	// Method identifies the authentication method for auditing.
	Method() AuthMethod
	// Endpoint is the target server URL.
	Endpoint() string
}

// NewAuthenticator selects the authentication strategy for the validated
// configuration.
func NewAuthenticator(cfg *Config) (Authenticator, error) {
	switch cfg.LDAP.AuthMethod {
	case AuthAnonymous:
		return &anonymousAuthenticator{cfg: cfg}, nil
	case AuthSimple:
		return &simpleAuthenticator{cfg: cfg}, nil
	case AuthSASL:
		return &gssapiAuthenticator{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAuth, cfg.LDAP.AuthMethod)
	}
}

// dialEndpoint opens the transport connection with the configured timeouts
// and TLS settings. The receive timeout applies to every subsequent network
// round-trip on the returned connection.
func dialEndpoint(ctx context.Context, cfg *Config) (*ldap.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialOpts := []ldap.DialOpt{
		ldap.DialWithDialer(&net.Dialer{Timeout: cfg.LDAP.ConnectTimeout()}),
	}

	if cfg.Security.EnableTLS || strings.HasPrefix(cfg.LDAP.Server, "ldaps://") {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: !cfg.Security.ValidateCertificate, //nolint:gosec // operator opt-out for lab directories
		}
		if cfg.Security.CACertFile != "" {
			pem, err := os.ReadFile(cfg.Security.CACertFile)
			if err != nil {
				return nil, fmt.Errorf("reading CA certificate %s: %w", cfg.Security.CACertFile, err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no usable certificates in %s", cfg.Security.CACertFile)
			}
			tlsConfig.RootCAs = pool
		}
		dialOpts = append(dialOpts, ldap.DialWithTLSConfig(tlsConfig))
	}

	conn, err := ldap.DialURL(cfg.LDAP.Server, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial directory server: %w", err)
	}
	conn.SetTimeout(cfg.LDAP.ReceiveTimeout())
	return conn, nil
}

// anonymousAuthenticator performs an unauthenticated bind. Whether the
// server accepts anonymous access is the server's policy; a rejection
// surfaces as a BindError.
type anonymousAuthenticator struct {
	cfg *Config
}

func (a *anonymousAuthenticator) Method() AuthMethod { return AuthAnonymous }
func (a *anonymousAuthenticator) Endpoint() string   { return a.cfg.LDAP.Server }

func (a *anonymousAuthenticator) Bind(ctx context.Context) (Conn, error) {
	conn, err := dialEndpoint(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.UnauthenticatedBind(""); err != nil {
		_ = conn.Close()
		return nil, &BindError{
			Server:     a.cfg.LDAP.Server,
			Method:     AuthAnonymous,
			Diagnostic: bindDiagnostic(err),
			Err:        err,
		}
	}
	return conn, nil
}

// simpleAuthenticator binds with a service account DN and password.
type simpleAuthenticator struct {
	cfg *Config
}

func (a *simpleAuthenticator) Method() AuthMethod { return AuthSimple }
func (a *simpleAuthenticator) Endpoint() string   { return a.cfg.LDAP.Server }

func (a *simpleAuthenticator) Bind(ctx context.Context) (Conn, error) {
	conn, err := dialEndpoint(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.Bind(a.cfg.LDAP.BindDN, a.cfg.LDAP.Password); err != nil {
		_ = conn.Close()
		return nil, &BindError{
			Server:     a.cfg.LDAP.Server,
			Method:     AuthSimple,
			Diagnostic: bindDiagnostic(err),
			Err:        err,
		}
	}
	return conn, nil
}

// gssapiAuthenticator binds with Kerberos via SASL/GSSAPI. Credentials are
// resolved in ccache, keytab, password order.
type gssapiAuthenticator struct {
	cfg *Config
}

func (a *gssapiAuthenticator) Method() AuthMethod { return AuthSASL }
func (a *gssapiAuthenticator) Endpoint() string   { return a.cfg.LDAP.Server }

func (a *gssapiAuthenticator) Bind(ctx context.Context) (Conn, error) {
	sasl := a.cfg.LDAP.SASL

	gssClient, err := newGSSAPIClient(sasl)
	if err != nil {
		return nil, fmt.Errorf("creating GSSAPI client: %w", err)
	}
	defer func() { _ = gssClient.DeleteSecContext() }()

	spn, err := servicePrincipal(sasl, a.cfg.LDAP.Server)
	if err != nil {
		return nil, err
	}

	conn, err := dialEndpoint(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.GSSAPIBind(gssClient, spn, ""); err != nil {
		_ = conn.Close()
		return nil, &BindError{
			Server:     a.cfg.LDAP.Server,
			Method:     AuthSASL,
			Diagnostic: bindDiagnostic(err),
			Err:        err,
		}
	}
	return conn, nil
}

// newGSSAPIClient builds the Kerberos client from the first available
// credential source.
func newGSSAPIClient(sasl *SASLConfig) (*gssapi.Client, error) {
	krb5conf := sasl.Krb5ConfPath
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}
	if _, err := os.Stat(krb5conf); err != nil {
		return nil, fmt.Errorf("kerberos configuration file %s not found: %w", krb5conf, err)
	}

	if sasl.CCachePath != "" {
		return gssapi.NewClientFromCCache(sasl.CCachePath, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if sasl.KeytabPath != "" {
		return gssapi.NewClientWithKeytab(sasl.Username, sasl.Realm, sasl.KeytabPath, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if sasl.Username != "" && sasl.Password != "" {
		return gssapi.NewClientWithPassword(sasl.Username, sasl.Realm, sasl.Password, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	return nil, fmt.Errorf("no kerberos credentials available: configure ccache, keytab or username/password")
}

// servicePrincipal derives the LDAP service principal from the endpoint
// unless one was configured explicitly.
func servicePrincipal(sasl *SASLConfig, server string) (string, error) {
	if sasl.ServicePrincipal != "" {
		return sasl.ServicePrincipal, nil
	}
	u, err := url.Parse(server)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("cannot derive service principal from server URL %q", server)
	}
	return "ldap/" + u.Hostname(), nil
}
