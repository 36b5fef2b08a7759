package intelliclima

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloud struct {
	mu          sync.Mutex
	folder      string
	loginCount  int
	rejectToken bool
	devices     []map[string]any
}

func (f *fakeCloud) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		// Only one folder variant exists on this fake server.
		path := r.URL.Path
		if !strings.HasPrefix(path, f.folder+"/") && f.folder != "" {
			http.NotFound(w, r)
			return
		}
		path = strings.TrimPrefix(path, f.folder)

		switch {
		case strings.HasPrefix(path, "/user/login/"):
			f.loginCount++
			parts := strings.Split(strings.TrimPrefix(path, "/user/login/"), "/")
			if len(parts) != 2 || parts[0] != "user" || parts[1] != PasswordDigest("secret") {
				writeJSON(w, map[string]any{"status": "NO_AUTH"})
				return
			}
			writeJSON(w, map[string]any{"status": "OK", "token": "tok-1", "id": "42"})

		case strings.HasPrefix(path, "/casa/elenco2/"):
			if !f.authorized(r) {
				writeJSON(w, map[string]any{"status": "NO_AUTH"})
				return
			}
			writeJSON(w, map[string]any{
				"status":   "OK",
				"houses":   map[string]any{"7": map[string]any{"name": "Home"}},
				"cronoIDs": []any{"101", "0", ""},
				"ecoIDs":   []any{"201"},
			})

		case path == "/sync/cronos380" || path == "/sync/cronos400":
			if !f.authorized(r) {
				writeJSON(w, map[string]any{"status": "NO_AUTH"})
				return
			}
			writeJSON(w, map[string]any{"status": "OK", "data": f.devices})

		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeCloud) authorized(r *http.Request) bool {
	if f.rejectToken {
		return false
	}
	return r.Header.Get("Token") == "tok-1" && r.Header.Get("Tokenid") == "42"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, srv *httptest.Server, folders ...string) *Client {
	t.Helper()
	var profiles []EndpointProfile
	for _, folder := range folders {
		profiles = append(profiles, EndpointProfile{BaseURL: srv.URL, Folder: folder, Shape: shapeV2})
	}
	return NewClient(
		Credentials{Username: "user", Password: "secret"},
		"", "",
		WithProfiles(profiles),
		WithHTTPClient(srv.Client()),
		WithRequestTimeout(2*time.Second),
	)
}

func TestLoginPinsFirstWorkingProfile(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeCloud{folder: "/mono"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	// First candidate 404s, second serves the API.
	c := newTestClient(t, srv, "/", "/mono")

	sess, err := c.Login(context.Background())
	require.NoError(err)
	assert.Equal("42", sess.UserID)
	assert.Equal("tok-1", sess.Token)

	p, _, ok := c.resolver.current()
	require.True(ok, "profile pinned after login")
	assert.Equal("/mono", p.Folder)

	// Subsequent operations go straight through the pinned profile.
	houses, err := c.ListHouses(context.Background())
	require.NoError(err)
	require.Len(houses, 1)
	assert.Equal("7", houses[0].ID)
	assert.Equal("Home", houses[0].Name)
	assert.Equal([]string{"101", "0"}, houses[0].CronoIDs, "empty entries dropped, zeros kept for caller filtering")
	assert.Equal([]string{"201"}, houses[0].EcoIDs)
}

func TestLoginExhaustsAllProfiles(t *testing.T) {

	assert := assert.New(t)

	fake := &fakeCloud{folder: "/nowhere"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "/", "/mono")

	_, err := c.Login(context.Background())
	var ere *EndpointResolutionError
	assert.ErrorAs(err, &ere)
	assert.Len(ere.Attempts, 2, "every candidate recorded")

	_, _, ok := c.resolver.current()
	assert.False(ok, "nothing pinned after exhaustion")
}

func TestLoginRejectsBadCredentials(t *testing.T) {

	assert := assert.New(t)

	fake := &fakeCloud{folder: ""}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(
		Credentials{Username: "user", Password: "wrong"},
		"", "",
		WithProfiles([]EndpointProfile{{BaseURL: srv.URL, Folder: "", Shape: shapeV2}}),
		WithHTTPClient(srv.Client()),
	)

	_, err := c.Login(context.Background())
	assert.True(IsAuthError(err), "credential rejection is an auth error, not resolution exhaustion")
}

func TestExpiredSessionTriggersRelogin(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeCloud{folder: ""}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "")

	_, err := c.Login(context.Background())
	require.NoError(err)

	// Simulate a server-side token expiry: the next call answers
	// NO_AUTH once, the client re-authenticates and retries.
	c.mu.Lock()
	c.session = &Session{Token: "stale", UserID: "42", CreatedAt: time.Now()}
	c.mu.Unlock()

	houses, err := c.ListHouses(context.Background())
	require.NoError(err)
	assert.Len(houses, 1)
	assert.Equal(2, fake.loginCount, "one initial login plus one re-login")
}

func TestPinnedProfileFailoverMidSession(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeCloud{folder: "/mono"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "/mono", "/api")

	_, err := c.Login(context.Background())
	require.NoError(err)

	p, _, ok := c.resolver.current()
	require.True(ok)
	require.Equal("/mono", p.Folder)

	// The deployment moves: the pinned folder starts 404ing and a
	// different one serves the API.
	fake.mu.Lock()
	fake.folder = "/api"
	fake.mu.Unlock()

	houses, err := c.ListHouses(context.Background())
	require.NoError(err)
	assert.Len(houses, 1)

	p, _, ok = c.resolver.current()
	require.True(ok, "a new profile pinned after the old one died")
	assert.Equal("/api", p.Folder)
	assert.Equal(2, fake.loginCount, "re-resolution logs in through the surviving profile")
}

func TestAllProfilesDeadMidSession(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeCloud{folder: "/mono"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "/mono", "/api")

	_, err := c.Login(context.Background())
	require.NoError(err)

	fake.mu.Lock()
	fake.folder = "/nowhere"
	fake.mu.Unlock()

	_, err = c.ListHouses(context.Background())
	var te *TransportError
	assert.ErrorAs(err, &te, "one full re-resolution pass, then the failure surfaces")

	_, _, ok := c.resolver.current()
	assert.False(ok, "nothing left pinned after exhaustion")
}

func TestConcurrentLoginIsDeduplicated(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeCloud{folder: ""}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "")

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Login(context.Background()); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Zero(failures.Load())
	assert.Equal(1, fake.loginCount, "concurrent logins share one round trip")
}

func TestGetDevicesDecodesDoubleEncodedFields(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeCloud{
		folder: "",
		devices: []map[string]any{
			{
				"id":       "201",
				"name":     "Bathroom ECO",
				"multi_sn": "06231964",
				// model and config arrive serialized twice
				"model":      `{"modello":"ECO","fw":"2.1"}`,
				"config":     `{"mode":"2"}`,
				"speed_set":  "2",
				"mode_state": "132",
			},
			{
				"id":       "101",
				"name":     "Hallway",
				"crono_sn": "00180674",
				"model":    `{"modello":"C800WiFi"}`,
				// vendor quirk: an inner decode failure keeps the raw string
				"config": `not-json{`,
				"t_amb":  "21.5",
				"tmanw":  "22.0",
			},
		},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newTestClient(t, srv, "")

	devices, err := c.GetDevices(context.Background())
	require.NoError(err)
	require.Len(devices, 4, "eco sync plus one thermostat sync, fake returns both payloads each time")

	var eco, crono Device
	for _, d := range devices {
		switch d.ID {
		case "201":
			eco = d
		case "101":
			crono = d
		}
	}

	assert.Equal(FamilyECO, eco.Family)
	assert.Equal("06231964", eco.Serial)
	fw, ok := eco.Model.Get("fw")
	assert.True(ok)
	assert.Equal("2.1", fw)
	assert.True(eco.IsECO())

	assert.Equal(FamilyC800WiFi, crono.Family)
	assert.Nil(crono.Config.Object, "unparseable config keeps raw only")
	assert.Equal("not-json{", crono.Config.Raw)

	st := parseClimateState(crono)
	require.NotNil(st.CurrentTemperature)
	assert.InDelta(21.5, *st.CurrentTemperature, 0.001)
	require.NotNil(st.TargetTemperature)
	assert.InDelta(22.0, *st.TargetTemperature, 0.001)

	ecoState := parseEcoState(eco)
	level, ok := ecoState.EffectiveSpeed()
	assert.True(ok)
	assert.Equal(2, level)
	mode, ok := ecoState.EffectiveMode()
	assert.True(ok)
	assert.Equal(132, mode)
}

func TestPasswordDigest(t *testing.T) {

	assert := assert.New(t)

	// sha256("secret"), lowercase hex
	assert.Equal(
		"2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b",
		PasswordDigest("secret"),
	)
}

func TestProfileURL(t *testing.T) {

	assert := assert.New(t)

	p := EndpointProfile{BaseURL: "https://app.example.com/", Folder: "/mono"}
	assert.Equal("https://app.example.com/mono/user/login/a/b", p.URL("user/login/a/b"))

	p = EndpointProfile{BaseURL: "https://app.example.com", Folder: "/"}
	assert.Equal("https://app.example.com/sync/cronos380", p.URL("sync/cronos380"))
}

func TestDefaultProfilesDeduplicates(t *testing.T) {

	assert := assert.New(t)

	profiles := DefaultProfiles(DefaultBaseURL, DefaultAPIFolder)
	seen := map[string]bool{}
	for _, p := range profiles {
		assert.False(seen[p.String()], "duplicate profile %s", p)
		seen[p.String()] = true
	}
	assert.Equal(DefaultBaseURL, profiles[0].BaseURL, "configured endpoint leads")
}
