package augur

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrInvalidDSN       = errors.New("invalid dsn")
	ErrMissingTransport = errors.New("no transport configured")
	ErrFlushTimeout     = errors.New("flush did not complete before the deadline")
)

// Dsn is a parsed destination of the form scheme://publicKey@host[:port][/path]/projectID.
type Dsn struct {
	Scheme    string
	PublicKey string
	Host      string
	Port      string
	Path      string
	ProjectID string
}

func ParseDsn(raw string) (*Dsn, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" && parsed.Scheme != "grpc" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidDSN, parsed.Scheme)
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return nil, fmt.Errorf("%w: missing public key", ErrInvalidDSN)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidDSN)
	}
	path := strings.TrimSuffix(parsed.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 || path[idx+1:] == "" {
		return nil, fmt.Errorf("%w: missing project id", ErrInvalidDSN)
	}
	return &Dsn{
		Scheme:    parsed.Scheme,
		PublicKey: parsed.User.Username(),
		Host:      parsed.Hostname(),
		Port:      parsed.Port(),
		Path:      path[:idx],
		ProjectID: path[idx+1:],
	}, nil
}

// HostPort returns host:port, or the host alone when no port was given.
func (d *Dsn) HostPort() string {
	if d.Port == "" {
		return d.Host
	}
	return d.Host + ":" + d.Port
}

func (d *Dsn) String() string {
	return fmt.Sprintf("%s://%s@%s%s/%s", d.Scheme, d.PublicKey, d.HostPort(), d.Path, d.ProjectID)
}
