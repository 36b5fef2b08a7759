package intelliclima

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Device family tags as reported by the cloud API.
const (
	FamilyC800WiFi = "C800WiFi"
	FamilyECO      = "ECO"
)

// ClimateMode is the operating mode of a C800WiFi thermostat.
type ClimateMode string

const (
	ClimateModeOff  ClimateMode = "off"
	ClimateModeHeat ClimateMode = "heat"
	ClimateModeAuto ClimateMode = "auto"
)

// Wire values for ClimateMode on the C800 write endpoint.
func (m ClimateMode) Int() int {
	switch m {
	case ClimateModeHeat:
		return 1
	case ClimateModeAuto:
		return 2
	default:
		return 0
	}
}

func ClimateModeFromWire(value string) ClimateMode {
	switch strings.TrimSpace(value) {
	case "1":
		return ClimateModeHeat
	case "2":
		return ClimateModeAuto
	default:
		return ClimateModeOff
	}
}

// Credentials are captured once per client and never mutated afterwards.
type Credentials struct {
	Username string
	Password string
}

// DeviceInfo is the client metadata posted with every login call.
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Platform     string `json:"platform"`
	Version      string `json:"version"`
	Serial       string `json:"serial"`
	UUID         string `json:"uuid"`
	Language     string `json:"language"`
}

// Session is the authenticated context returned by a successful login.
// The token is sent in the `Token` header and the user id in `Tokenid`.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
}

func (s Session) Valid() bool {
	return s.Token != "" && s.UserID != ""
}

// DefaultDeviceInfo mimics the metadata the official app sends. The
// server only checks presence, not content.
func DefaultDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Manufacturer: "generic",
		Model:        "api-client",
		Platform:     "linux",
		Version:      "1.0",
		Serial:       "unknown",
		UUID:         "unknown",
		Language:     "en",
	}
}

// House groups devices per installation. Thermostat ids and ECO unit
// ids travel in separate lists because the sync endpoints take them
// separately.
type House struct {
	ID       string
	Name     string
	CronoIDs []string
	EcoIDs   []string
}

// JSONField holds a value the API may deliver double-encoded: a JSON
// document serialized again into a JSON string. Decoding is attempted
// once; on failure Raw is kept and Object stays nil.
type JSONField struct {
	Raw    string
	Object map[string]any
}

func (f JSONField) Get(key string) (string, bool) {
	if f.Object == nil {
		return "", false
	}
	v, ok := f.Object[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

func decodeJSONField(value any) JSONField {
	switch t := value.(type) {
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(t), &obj); err == nil {
			return JSONField{Raw: t, Object: obj}
		}
		// vendor quirk: keep the raw string when the second decode fails
		return JSONField{Raw: t}
	case map[string]any:
		return JSONField{Object: t}
	default:
		return JSONField{}
	}
}

// Device is one unit as discovered through the sync endpoints.
type Device struct {
	ID     string
	Name   string
	Serial string
	Family string
	Model  JSONField
	Config JSONField

	// Raw keeps the whole normalized payload for diagnostics.
	Raw map[string]any
}

func (d Device) IsECO() bool {
	return d.Family == FamilyECO
}

// ClimateState is the snapshot of a C800WiFi thermostat.
type ClimateState struct {
	CurrentTemperature *float64
	TargetTemperature  *float64
	Humidity           *float64
	OutdoorTemperature *float64
	Mode               ClimateMode
}

// EcoState carries the raw ECO ventilation fields as reported by the
// backend. Derived values (speed level, preset) come from the frame
// codec's normalization functions and are never stored back here.
type EcoState struct {
	SpeedSet   *int
	SpeedState *int
	ModeSet    *int
	ModeState  *int
}

// EffectiveSpeed prefers the runtime speed over the configured one.
func (s EcoState) EffectiveSpeed() (int, bool) {
	if s.SpeedState != nil {
		return *s.SpeedState, true
	}
	if s.SpeedSet != nil {
		return *s.SpeedSet, true
	}
	return 0, false
}

// EffectiveMode prefers the runtime mode over the configured one.
func (s EcoState) EffectiveMode() (int, bool) {
	if s.ModeState != nil {
		return *s.ModeState, true
	}
	if s.ModeSet != nil {
		return *s.ModeSet, true
	}
	return 0, false
}

// NormalizeSerial reduces an ECO serial to the 8-digit zero-padded form
// the backend echoes on writes. Non-digit characters are stripped.
func NormalizeSerial(serial string) (string, error) {
	var digits strings.Builder
	for _, ch := range serial {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	s := digits.String()
	if s == "" || len(s) > 8 {
		return "", &MalformedFrameError{Reason: "invalid ECO serial: " + serial}
	}
	return strings.Repeat("0", 8-len(s)) + s, nil
}
