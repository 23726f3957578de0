package pinger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/keepalive/internal/project"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultPath    = "/rest/v1/"
)

// Failure reasons recorded on a PingResult.
const (
	ReasonTimeout          = "timeout"
	ReasonNetworkError     = "network_error"
	ReasonAuthError        = "auth_error"
	ReasonUnexpectedStatus = "unexpected_status"
)

// Pinger performs a single bounded read-only request against a project.
type Pinger struct {
	client  *http.Client
	timeout time.Duration
	path    string
	now     func() time.Time
}

type Option func(*Pinger)

func WithTimeout(timeout time.Duration) Option {
	return func(p *Pinger) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithPath sets the path appended to the project URL, e.g. "/rest/v1/".
func WithPath(path string) Option {
	return func(p *Pinger) {
		p.path = path
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(p *Pinger) {
		p.client = client
	}
}

func New(opts ...Option) *Pinger {
	p := &Pinger{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSHandshakeTimeout: 5 * time.Second,
				DisableKeepAlives:   true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		timeout: DefaultTimeout,
		path:    DefaultPath,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the per-ping deadline.
func (p *Pinger) Timeout() time.Duration {
	return p.timeout
}

// Ping issues one request against the project and classifies the outcome.
// The only error returned is project.ErrValidation for a project without a
// URL or credential; every other failure is reported inside the result.
func (p *Pinger) Ping(ctx context.Context, target project.Project) (project.PingResult, error) {
	if strings.TrimSpace(target.URL) == "" || strings.TrimSpace(target.Credential) == "" {
		return project.PingResult{}, fmt.Errorf("%w: project %s has no connection url or credential", project.ErrValidation, target.ID)
	}

	result := project.PingResult{
		ProjectID:   target.ID,
		ProjectName: target.Name,
		Timestamp:   p.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(target.URL), nil)
	if err != nil {
		result.Error = ReasonNetworkError
		return result, nil
	}
	req.Header.Set("apikey", target.Credential)
	req.Header.Set("Authorization", "Bearer "+target.Credential)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := p.client.Do(req)
	if err != nil {
		result.LatencyMS = time.Since(start).Milliseconds()
		result.Error = classifyError(ctx, err)
		return result, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	res.Body.Close()
	result.LatencyMS = time.Since(start).Milliseconds()

	result.Error = classifyStatus(res.StatusCode)
	result.Success = result.Error == ""
	return result, nil
}

func (p *Pinger) endpoint(base string) string {
	if p.path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p.path, "/")
}

func classifyStatus(code int) string {
	switch {
	case code >= 200 && code < 400:
		return ""
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ReasonAuthError
	default:
		return fmt.Sprintf("%s:%d", ReasonUnexpectedStatus, code)
	}
}

func classifyError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetworkError
}
