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

type fakeWriteCloud struct {
	mu         sync.Mutex
	ackSerial  func(trama string) string
	ackTrama   func(trama string) string
	ecoBodies  []string
	c800Bodies []map[string]any

	inflight   atomic.Int32
	overlapped atomic.Bool
}

func (f *fakeWriteCloud) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/user/login/"):
			writeJSON(w, map[string]any{"status": "OK", "token": "tok-1", "id": "42"})

		case strings.HasPrefix(r.URL.Path, "/casa/elenco2/"):
			writeJSON(w, map[string]any{
				"status": "OK",
				"houses": map[string]any{"7": map[string]any{}},
			})

		case r.URL.Path == "/eco/send/":
			if f.inflight.Add(1) > 1 {
				f.overlapped.Store(true)
			}
			time.Sleep(10 * time.Millisecond)
			f.inflight.Add(-1)

			var body struct {
				Trama string `json:"trama"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.ecoBodies = append(f.ecoBodies, body.Trama)
			f.mu.Unlock()

			resp := map[string]any{"status": "OK"}
			if f.ackSerial != nil {
				resp["serial"] = f.ackSerial(body.Trama)
			}
			if f.ackTrama != nil {
				resp["trama"] = f.ackTrama(body.Trama)
			}
			writeJSON(w, resp)

		case r.URL.Path == "/C800/scrivi/":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.c800Bodies = append(f.c800Bodies, body)
			f.mu.Unlock()
			writeJSON(w, map[string]any{"status": "OK"})

		default:
			http.NotFound(w, r)
		}
	}
}

func newWriteClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(
		Credentials{Username: "user", Password: "secret"},
		"", "",
		WithProfiles([]EndpointProfile{{BaseURL: srv.URL, Folder: "/", Shape: shapeV2}}),
		WithHTTPClient(srv.Client()),
		WithRequestTimeout(2*time.Second),
	)
}

func ecoDevice(serial string) Device {
	return Device{ID: "201", Serial: serial, Family: FamilyECO}
}

func TestSetEcoValidatesEcho(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeWriteCloud{
		ackSerial: func(string) string { return "06231964" },
		ackTrama:  func(trama string) string { return trama },
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	err := c.SetEco(context.Background(), ecoDevice("06231964"), EcoCommand{Mode: ModeOutdoorIntake, Speed: 2})
	require.NoError(err)

	require.Len(fake.ecoBodies, 1)
	assert.Equal("0A00001964000E2F005000000102880D", fake.ecoBodies[0])
}

func TestSetEcoAcceptsPrefixedEcho(t *testing.T) {

	assert := assert.New(t)

	fake := &fakeWriteCloud{
		ackSerial: func(string) string { return "06231964" },
		ackTrama:  func(trama string) string { return "SERVERECO" + trama },
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	err := c.SetEco(context.Background(), ecoDevice("06231964"), EcoCommand{Mode: ModeIndoorExhaust, Speed: 1})
	assert.NoError(err, "informational prefix before the echoed frame is fine")
}

func TestSetEcoAcceptsEmptyEcho(t *testing.T) {

	assert := assert.New(t)

	fake := &fakeWriteCloud{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	err := c.SetEco(context.Background(), ecoDevice("06231964"), EcoCommand{Off: true})
	assert.NoError(err, "some deployments omit the echo fields entirely")
}

func TestSetEcoRejectsSerialMismatch(t *testing.T) {

	assert := assert.New(t)

	fake := &fakeWriteCloud{
		ackSerial: func(string) string { return "99999999" },
		ackTrama:  func(trama string) string { return trama },
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	err := c.SetEco(context.Background(), ecoDevice("06231964"), EcoCommand{Mode: ModeOutdoorIntake, Speed: 2})
	var ack *WriteAckMismatchError
	assert.ErrorAs(err, &ack)
	assert.Equal("06231964", ack.Serial)
	assert.Equal("99999999", ack.GotSerial)
}

func TestSetEcoRejectsTramaMismatch(t *testing.T) {

	assert := assert.New(t)

	fake := &fakeWriteCloud{
		ackSerial: func(string) string { return "06231964" },
		ackTrama:  func(string) string { return "0A00001964000E2F005000000401AC0D" },
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	err := c.SetEco(context.Background(), ecoDevice("06231964"), EcoCommand{Mode: ModeOutdoorIntake, Speed: 2})
	var ack *WriteAckMismatchError
	assert.ErrorAs(err, &ack, "a different frame echoed back is not an acknowledgement")
}

func TestSetEcoSerializesWritesPerUnit(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeWriteCloud{
		ackTrama: func(trama string) string { return trama },
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 5; i++ {
		speed := i%MaxSpeedLevel + 1
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.SetEco(context.Background(), ecoDevice("06231964"), EcoCommand{Mode: ModeAlternating45s, Speed: speed})
			if err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Zero(failures.Load())
	assert.False(fake.overlapped.Load(), "writes to one unit never overlap on the wire")
	assert.Len(fake.ecoBodies, 5)
}

func TestSetClimateGatesOnModel(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeWriteCloud{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	err := c.SetClimate(context.Background(), Device{ID: "9", Serial: "123", Family: FamilyECO}, ClimateCommand{TargetTemperature: 21, Mode: ClimateModeHeat})
	assert.Error(err, "only C800WiFi accepts writes")
	assert.Empty(fake.c800Bodies, "nothing sent for rejected models")

	err = c.SetClimate(context.Background(), Device{ID: "101", Serial: "00180674", Family: FamilyC800WiFi}, ClimateCommand{TargetTemperature: 21.5, Mode: ClimateModeAuto})
	require.NoError(err)
	require.Len(fake.c800Bodies, 1)
	assert.Equal("00180674", fake.c800Bodies[0]["serial"])
	assert.InDelta(21.5, fake.c800Bodies[0]["w_Tset_Tman"].(float64), 0.001)
	assert.InDelta(2, fake.c800Bodies[0]["mode"].(float64), 0.001, "auto writes as 2")
}

func TestEcoCommandVariants(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	fake := &fakeWriteCloud{
		ackTrama: func(trama string) string { return trama },
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := newWriteClient(t, srv)

	require.NoError(c.SetEco(context.Background(), ecoDevice("1964"), EcoCommand{Mode: ModeAlternating45s, Auto: true}))
	require.NoError(c.SetEco(context.Background(), ecoDevice("180674"), EcoCommand{Off: true}))

	require.Len(fake.ecoBodies, 2)
	assert.Equal("0A00001964000E2F005000000310700D", fake.ecoBodies[0], "auto speed byte")
	assert.Equal("0A00000674000E2F005000000000720D", fake.ecoBodies[1], "off frame is mode 0 speed 0")
}
