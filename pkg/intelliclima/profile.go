package intelliclima

import (
	"fmt"
	"strings"
)

// Known-good defaults for the vendor cloud. Both are plain data: the
// config layer may override them, the resolver only orders candidates.
const (
	DefaultBaseURL = "https://app.intelliclima.com"
	LegacyBaseURL  = "https://intelliclima.fantinicosmi.it"

	DefaultAPIFolder = "/"
	MonoAPIFolder    = "/mono"
	AppAPIFolder     = "/api"
)

// PayloadShape names the set of field aliases one deployment generation
// uses. A field is present when any alias matches; extra fields are
// always ignored.
type PayloadShape struct {
	Name        string
	StatusKeys  []string
	TokenKeys   []string
	UserIDKeys  []string
	HousesKeys  []string
	CronoIDKeys []string
	EcoIDKeys   []string
	DataKeys    []string
	SerialKeys  []string
	TramaKeys   []string
}

// The current app-server generation.
var shapeV2 = PayloadShape{
	Name:        "v2",
	StatusKeys:  []string{"status"},
	TokenKeys:   []string{"token", "auth_token"},
	UserIDKeys:  []string{"id", "user_id"},
	HousesKeys:  []string{"houses", "case"},
	CronoIDKeys: []string{"cronoIDs", "IDs"},
	EcoIDKeys:   []string{"ecoIDs", "ECOs"},
	DataKeys:    []string{"data"},
	SerialKeys:  []string{"serial"},
	TramaKeys:   []string{"trama"},
}

// Older installations serve the same endpoints under different field
// names (Italian aliases first).
var shapeLegacy = PayloadShape{
	Name:        "legacy",
	StatusKeys:  []string{"status", "esito"},
	TokenKeys:   []string{"auth_token", "token"},
	UserIDKeys:  []string{"user_id", "id", "utente"},
	HousesKeys:  []string{"case", "houses"},
	CronoIDKeys: []string{"IDs", "cronoIDs"},
	EcoIDKeys:   []string{"ECOs", "ecoIDs"},
	DataKeys:    []string{"data", "dispositivi"},
	SerialKeys:  []string{"serial", "seriale"},
	TramaKeys:   []string{"trama"},
}

// EndpointProfile is one base-URL/folder/shape candidate. Exactly one
// profile gets pinned per session once a login + house-list round trip
// succeeds through it.
type EndpointProfile struct {
	BaseURL string
	Folder  string
	Shape   PayloadShape
}

func (p EndpointProfile) String() string {
	return fmt.Sprintf("%s%s[%s]", p.BaseURL, p.Folder, p.Shape.Name)
}

// URL joins base, folder and endpoint path.
func (p EndpointProfile) URL(path string) string {
	base := strings.TrimRight(p.BaseURL, "/")
	folder := strings.Trim(p.Folder, "/")
	if folder != "" {
		folder = "/" + folder
	}
	return base + folder + "/" + strings.TrimLeft(path, "/")
}

// DefaultProfiles builds the ordered candidate list. The configured
// base/folder leads under both shapes, followed by the historically
// observed variants. Duplicates are dropped, order is preserved.
func DefaultProfiles(baseURL, apiFolder string) []EndpointProfile {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiFolder == "" {
		apiFolder = DefaultAPIFolder
	}

	candidates := []EndpointProfile{
		{BaseURL: baseURL, Folder: apiFolder, Shape: shapeV2},
		{BaseURL: baseURL, Folder: apiFolder, Shape: shapeLegacy},
		{BaseURL: DefaultBaseURL, Folder: DefaultAPIFolder, Shape: shapeV2},
		{BaseURL: DefaultBaseURL, Folder: MonoAPIFolder, Shape: shapeV2},
		{BaseURL: DefaultBaseURL, Folder: AppAPIFolder, Shape: shapeV2},
		{BaseURL: LegacyBaseURL, Folder: MonoAPIFolder, Shape: shapeLegacy},
		{BaseURL: LegacyBaseURL, Folder: DefaultAPIFolder, Shape: shapeLegacy},
	}

	var profiles []EndpointProfile
	seen := map[string]bool{}
	for _, c := range candidates {
		key := c.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		profiles = append(profiles, c)
	}
	return profiles
}

// payload is a decoded JSON response body.
type payload map[string]any

func (p payload) firstString(keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			switch t := v.(type) {
			case string:
				if t != "" {
					return t, true
				}
			case float64:
				return fmt.Sprintf("%.0f", t), true
			}
		}
	}
	return "", false
}

func (p payload) firstList(keys []string) ([]any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if list, ok := v.([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func (p payload) firstMap(keys []string) (map[string]any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			if m, ok := v.(map[string]any); ok {
				return m, true
			}
		}
	}
	return nil, false
}

func (p payload) status(shape PayloadShape) string {
	s, _ := p.firstString(shape.StatusKeys)
	return s
}
