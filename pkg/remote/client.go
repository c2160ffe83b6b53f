// Package remote implements the WebDAV-shaped remote protocol client used
// by the Smart Sync Planner: shallow and recursive directory listings, a
// capability probe cached per source, and the URL manager that maps
// logical paths onto server-specific URL prefixes (spec.md §4.7).
package remote

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Entry is one immediate child of a listed directory.
type Entry struct {
	Path  string // logical path
	ETag  string
	IsDir bool
	Size  int64
}

// Listing is the result of a shallow (Depth: 1) list of one directory.
type Listing struct {
	DirectoryETag string
	Children      []Entry
}

// ConnectionError classifies a remote failure as connection-class (DNS,
// TLS, refused, timeout) vs. not, since connection-class errors are what
// permits the https/http protocol fallback described in spec.md §4.7.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string  { return "connection error: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error  { return e.Err }

func isConnectionClassError(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"no such host", "connection refused", "certificate", "tls", "timeout"} {
		if strings.Contains(strings.ToLower(msg), marker) {
			return true
		}
	}
	return false
}

// ServerKind selects the URL-prefix mapping a source's WebDAV endpoint uses.
type ServerKind string

const (
	ServerNextcloud ServerKind = "nextcloud"
	ServerOwnCloud  ServerKind = "owncloud"
	ServerGeneric   ServerKind = "generic"
)

// URLManager maps between the tracker's logical paths (e.g. "/Photos/2024")
// and server-specific URL prefixes.
type URLManager struct {
	Kind     ServerKind
	Username string
}

// Resolve returns the absolute URL for a logical path against baseURL.
func (m URLManager) Resolve(baseURL, logicalPath string) (string, error) {
	u, err := url.Parse(normalizeProtocol(baseURL))
	if err != nil {
		return "", err
	}
	var prefix string
	switch m.Kind {
	case ServerNextcloud:
		prefix = "/remote.php/dav/files/" + m.Username
	case ServerOwnCloud:
		prefix = "/remote.php/webdav"
	default:
		prefix = "/webdav"
	}
	u.Path = strings.TrimRight(u.Path, "/") + prefix + logicalPath
	return u.String(), nil
}

// normalizeProtocol defaults a protocol-less server URL to https://.
func normalizeProtocol(raw string) string {
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

// AlternateProtocol returns raw with its scheme swapped (https<->http), for
// use as a fallback when the primary fails with a connection-class error.
func AlternateProtocol(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "http://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "https://" + strings.TrimPrefix(raw, "http://")
	default:
		return raw
	}
}

// Capability is the cached result of an OPTIONS/DAV compliance probe.
type Capability struct {
	DirectoryETagSupport bool
	ProbedAt             time.Time
}

// CapabilityCache caches Capability per source ID. NewCapabilityCache
// returns the in-process fallback; NewRedisCapabilityCache (capability_redis.go)
// backs the same interface with Redis so probes survive a process restart,
// which matters here because the scheduler resets "running" syncs on
// startup but has no way to know whether a DAV-compliance probe from before
// the restart is still valid.
type CapabilityCache interface {
	Get(sourceID string) (Capability, bool)
	Set(sourceID string, capability Capability)
}

// LocalCapabilityCache is a process-local CapabilityCache. Probe results
// are lost on restart, so the first WebDAV request per source after a
// restart re-probes.
type LocalCapabilityCache struct {
	mu    sync.RWMutex
	local map[string]Capability
}

func NewCapabilityCache() *LocalCapabilityCache {
	return &LocalCapabilityCache{local: map[string]Capability{}}
}

func (c *LocalCapabilityCache) Get(sourceID string) (Capability, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	capability, ok := c.local[sourceID]
	return capability, ok
}

func (c *LocalCapabilityCache) Set(sourceID string, capability Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[sourceID] = capability
}

// HTTPDoer is the subset of *http.Client the WebDAV client needs; tests
// substitute a fake.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a circuit-broken WebDAV client. Each request goes through a
// gobreaker.CircuitBreaker so a source whose remote endpoint is down stops
// being hammered by the scheduler's 60s tick.
type Client struct {
	http       HTTPDoer
	breaker    *gobreaker.CircuitBreaker
	urlManager URLManager
	caps       CapabilityCache
}

func NewClient(httpDoer HTTPDoer, sourceName string, urlManager URLManager, caps CapabilityCache) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webdav:" + sourceName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{http: httpDoer, breaker: breaker, urlManager: urlManager, caps: caps}
}

// ProbeCapability issues an OPTIONS request and caches whether the server
// advertises DAV compliance class 1 or higher (directory ETag support).
func (c *Client) ProbeCapability(ctx context.Context, sourceID, baseURL string) (Capability, error) {
	if capability, ok := c.caps.Get(sourceID); ok {
		return capability, nil
	}

	resp, err := c.do(ctx, http.MethodOptions, baseURL, "")
	if err != nil {
		return Capability{}, err
	}
	defer resp.Body.Close()

	dav := resp.Header.Get("DAV")
	capability := Capability{DirectoryETagSupport: strings.Contains(dav, "1"), ProbedAt: time.Now()}
	c.caps.Set(sourceID, capability)
	return capability, nil
}

// ShallowList lists logicalPath at Depth: 1, returning the directory's own
// ETag plus one Entry per immediate child.
func (c *Client) ShallowList(ctx context.Context, baseURL, logicalPath string) (Listing, error) {
	target, err := c.urlManager.Resolve(baseURL, logicalPath)
	if err != nil {
		return Listing{}, err
	}
	resp, err := c.do(ctx, "PROPFIND", target, "1")
	if err != nil {
		return Listing{}, err
	}
	defer resp.Body.Close()
	return parsePropfind(resp.Body, logicalPath)
}

func (c *Client) do(ctx context.Context, method, target, depth string) (*http.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, err
		}
		if depth != "" {
			req.Header.Set("Depth", depth)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if isConnectionClassError(err) {
				return nil, &ConnectionError{Err: err}
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}
