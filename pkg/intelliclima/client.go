package intelliclima

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultRequestTimeout = 15 * time.Second

// CloudClient is the surface the bridge talks to. *Client implements it
// against the vendor cloud; TestCloudClient implements it in memory.
type CloudClient interface {
	Login(ctx context.Context) (*Session, error)
	ListHouses(ctx context.Context) ([]House, error)
	GetDevices(ctx context.Context) ([]Device, error)
	SyncClimate(ctx context.Context, deviceIDs []string) (map[string]ClimateState, error)
	SyncEco(ctx context.Context, ecoIDs []string) (map[string]EcoState, error)
	SetClimate(ctx context.Context, device Device, cmd ClimateCommand) error
	SetEco(ctx context.Context, device Device, cmd EcoCommand) error
	Invalidate()
}

// Client talks to the Intelliclima cloud. Safe for concurrent use: login
// is deduplicated, writes to the same ECO unit are serialized.
type Client struct {
	creds   Credentials
	device  DeviceInfo
	http    *http.Client
	log     *zap.Logger
	timeout time.Duration

	resolver *resolver

	mu      sync.Mutex
	session *Session

	loginGroup singleflight.Group

	writeMu    sync.Mutex
	writeLocks map[string]*sync.Mutex
}

var _ CloudClient = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithProfiles replaces the endpoint candidate list. The first profile
// is tried first.
func WithProfiles(profiles []EndpointProfile) Option {
	return func(c *Client) { c.resolver = newResolver(profiles) }
}

func WithDeviceInfo(info DeviceInfo) Option {
	return func(c *Client) { c.device = info }
}

// NewClient builds a client for one cloud account. baseURL and apiFolder
// may be empty to use the known defaults.
func NewClient(creds Credentials, baseURL, apiFolder string, opts ...Option) *Client {
	c := &Client{
		creds:      creds,
		device:     DefaultDeviceInfo(),
		http:       &http.Client{},
		log:        zap.NewNop(),
		timeout:    defaultRequestTimeout,
		resolver:   newResolver(DefaultProfiles(baseURL, apiFolder)),
		writeLocks: map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PasswordDigest returns the lowercase hex SHA-256 digest the login
// endpoint expects in place of the plain password.
func PasswordDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// resolver keeps the ordered endpoint candidates and the pinned index.
type resolver struct {
	mu       sync.Mutex
	profiles []EndpointProfile
	pinned   int
}

func newResolver(profiles []EndpointProfile) *resolver {
	return &resolver{profiles: profiles, pinned: -1}
}

func (r *resolver) current() (EndpointProfile, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pinned < 0 || r.pinned >= len(r.profiles) {
		return EndpointProfile{}, -1, false
	}
	return r.profiles[r.pinned], r.pinned, true
}

func (r *resolver) list() []EndpointProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EndpointProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

func (r *resolver) pin(i int) {
	r.mu.Lock()
	r.pinned = i
	r.mu.Unlock()
}

func (r *resolver) unpin() {
	r.mu.Lock()
	r.pinned = -1
	r.mu.Unlock()
}

// resolve runs fn against the pinned profile first, then walks the full
// candidate list once. The first profile fn accepts gets pinned. An
// authentication rejection aborts the walk: the endpoint answered, the
// credentials are the problem.
func (c *Client) resolve(ctx context.Context, op string, fn func(EndpointProfile) error) error {
	var attempts []ProfileAttempt
	failedPinned := -1

	if p, i, ok := c.resolver.current(); ok {
		err := fn(p)
		if err == nil {
			return nil
		}
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return err
		}
		c.log.Debug("pinned endpoint profile failed, re-resolving",
			zap.String("op", op), zap.Stringer("profile", p), zap.Error(err))
		attempts = append(attempts, ProfileAttempt{Profile: p, Err: err})
		failedPinned = i
	}

	for i, p := range c.resolver.list() {
		if i == failedPinned {
			continue
		}
		if err := ctx.Err(); err != nil {
			return &TransportError{Op: op, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
		}
		err := fn(p)
		if err == nil {
			c.resolver.pin(i)
			c.log.Info("endpoint profile pinned", zap.Stringer("profile", p))
			return nil
		}
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return err
		}
		attempts = append(attempts, ProfileAttempt{Profile: p, Err: err})
	}

	c.resolver.unpin()
	return &EndpointResolutionError{Op: op, Attempts: attempts}
}

// Login authenticates and pins the first endpoint profile that survives
// a login plus house-list round trip. Concurrent callers share a single
// in-flight login.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	v, err, _ := c.loginGroup.Do("login", func() (any, error) {
		return c.login(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (c *Client) login(ctx context.Context) (*Session, error) {
	digest := PasswordDigest(c.creds.Password)
	var session *Session
	err := c.resolve(ctx, "login", func(p EndpointProfile) error {
		sess, err := c.loginVia(ctx, p, digest)
		if err != nil {
			return err
		}
		// Some misbehaving variants accept any login and fail later. A
		// house-list round trip through the same profile proves it real.
		if _, err := c.listHousesVia(ctx, p, sess); err != nil {
			return err
		}
		session = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.log.Debug("logged in", zap.String("userID", session.UserID))
	return session, nil
}

func (c *Client) loginVia(ctx context.Context, p EndpointProfile, digest string) (*Session, error) {
	path := fmt.Sprintf("user/login/%s/%s", c.creds.Username, digest)
	resp, err := c.doJSON(ctx, "login", p.URL(path), c.device, nil)
	if err != nil {
		return nil, err
	}
	st := resp.status(p.Shape)
	if isNoAuth(st) {
		return nil, &AuthError{Op: "login", Err: fmt.Errorf("credentials rejected (status %q)", st)}
	}
	if !isOK(st) {
		return nil, &TransportError{Op: "login", URL: p.URL(path), Err: fmt.Errorf("unexpected status %q", st)}
	}
	token, ok := resp.firstString(p.Shape.TokenKeys)
	if !ok {
		return nil, &TransportError{Op: "login", URL: p.URL(path), Err: errors.New("login response missing token")}
	}
	userID, ok := resp.firstString(p.Shape.UserIDKeys)
	if !ok {
		return nil, &TransportError{Op: "login", URL: p.URL(path), Err: errors.New("login response missing user id")}
	}
	return &Session{Token: token, UserID: userID, CreatedAt: time.Now()}, nil
}

// CurrentSession returns the active session, or nil.
func (c *Client) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Invalidate drops the current session. The next operation logs in again.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

func (c *Client) ensureSession(ctx context.Context) (*Session, error) {
	if s := c.CurrentSession(); s != nil && s.Valid() {
		return s, nil
	}
	return c.Login(ctx)
}

// authedPost performs an authenticated POST against the pinned profile.
// The path is built from the live session because some endpoints embed
// the user id. A NO_AUTH answer invalidates the session and retries once
// with a fresh login; a transport failure triggers one re-resolution
// pass through Login. Re-resolution proves candidates with the login +
// house-list round trip only: a profile that authenticates but fails
// this particular endpoint gets one retry on the new pin and is then
// surfaced, never walked across the remaining profiles per operation.
func (c *Client) authedPost(ctx context.Context, op string, pathFn func(*Session) string, body any) (payload, PayloadShape, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sess, err := c.ensureSession(ctx)
		if err != nil {
			return nil, PayloadShape{}, err
		}
		p, _, ok := c.resolver.current()
		if !ok {
			// Login pins on success, so this only happens when another
			// goroutine unpinned concurrently. Resolve again via login.
			c.Invalidate()
			continue
		}
		path := pathFn(sess)
		resp, err := c.doJSON(ctx, op, p.URL(path), body, sess)
		if err != nil {
			lastErr = err
			var te *TransportError
			if errors.As(err, &te) && attempt == 0 {
				if _, lerr := c.Login(ctx); lerr == nil {
					continue
				}
			}
			return nil, PayloadShape{}, err
		}
		st := resp.status(p.Shape)
		if isNoAuth(st) {
			c.log.Debug("session rejected, re-authenticating", zap.String("op", op))
			c.Invalidate()
			lastErr = &AuthError{Op: op, Err: fmt.Errorf("session rejected (status %q)", st)}
			continue
		}
		if !isOK(st) {
			return nil, PayloadShape{}, &TransportError{Op: op, URL: p.URL(path), Err: fmt.Errorf("unexpected status %q", st)}
		}
		return resp, p.Shape, nil
	}
	if lastErr == nil {
		lastErr = errors.New("retries exhausted")
	}
	return nil, PayloadShape{}, &AuthError{Op: op, Err: lastErr}
}

// doJSON POSTs body as JSON and decodes the JSON answer. sess may be nil
// for unauthenticated endpoints. Every failure mode maps to the error
// taxonomy so callers can branch on type alone.
func (c *Client) doJSON(ctx context.Context, op, url string, body any, sess *Session) (payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, &TransportError{Op: op, URL: url, Err: err}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req.Header.Set("Tokenid", sess.UserID)
		req.Header.Set("Token", sess.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(op, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransport(op, url, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("http %d: %s", resp.StatusCode, truncate(raw, 200))}
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("malformed response body: %w", err)}
	}
	return p, nil
}

func classifyTransport(op, url string, err error) *TransportError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		timeout = true
	}
	return &TransportError{Op: op, URL: url, Timeout: timeout, Err: err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func staticPath(path string) func(*Session) string {
	return func(*Session) string { return path }
}

func isOK(status string) bool {
	return strings.EqualFold(status, "ok")
}

func isNoAuth(status string) bool {
	return strings.EqualFold(status, "NO_AUTH")
}

// lockSerial returns the write mutex for one ECO unit, creating it on
// first use.
func (c *Client) lockSerial(serial string) *sync.Mutex {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	m, ok := c.writeLocks[serial]
	if !ok {
		m = &sync.Mutex{}
		c.writeLocks[serial] = m
	}
	return m
}
