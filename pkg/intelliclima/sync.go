package intelliclima

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ListHouses fetches the account's installations. The cloud reports the
// thermostat and ECO id lists account-wide, so every returned house
// carries the same lists.
func (c *Client) ListHouses(ctx context.Context) ([]House, error) {
	resp, shape, err := c.authedPost(ctx, "list-houses", func(s *Session) string {
		return "casa/elenco2/" + s.UserID
	}, nil)
	if err != nil {
		return nil, err
	}
	return parseHouses(resp, shape), nil
}

// listHousesVia is the login validation round trip: same endpoint, but
// forced through one candidate profile.
func (c *Client) listHousesVia(ctx context.Context, p EndpointProfile, sess *Session) ([]House, error) {
	url := p.URL("casa/elenco2/" + sess.UserID)
	resp, err := c.doJSON(ctx, "list-houses", url, nil, sess)
	if err != nil {
		return nil, err
	}
	st := resp.status(p.Shape)
	if isNoAuth(st) {
		return nil, &AuthError{Op: "list-houses", Err: fmt.Errorf("session rejected (status %q)", st)}
	}
	if !isOK(st) {
		return nil, &TransportError{Op: "list-houses", URL: url, Err: fmt.Errorf("unexpected status %q", st)}
	}
	return parseHouses(resp, p.Shape), nil
}

func parseHouses(resp payload, shape PayloadShape) []House {
	housesRaw, ok := resp.firstMap(shape.HousesKeys)
	if !ok || len(housesRaw) == 0 {
		return nil
	}
	cronoIDs := toIDList(resp, shape.CronoIDKeys)
	ecoIDs := toIDList(resp, shape.EcoIDKeys)

	houses := make([]House, 0, len(housesRaw))
	for id, v := range housesRaw {
		h := House{ID: id, CronoIDs: cronoIDs, EcoIDs: ecoIDs}
		if obj, ok := v.(map[string]any); ok {
			h.Name = stringAlias(obj, "name", "nome")
		}
		houses = append(houses, h)
	}
	sort.Slice(houses, func(i, j int) bool { return houses[i].ID < houses[j].ID })
	return houses
}

func toIDList(resp payload, keys []string) []string {
	list, ok := resp.firstList(keys)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		switch t := v.(type) {
		case string:
			if t != "" {
				out = append(out, t)
			}
		case float64:
			out = append(out, strconv.FormatFloat(t, 'f', -1, 64))
		}
	}
	return out
}

// GetDevices walks house list, ECO sync and per-thermostat sync and
// returns every device payload as a parsed Device.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	houses, err := c.ListHouses(ctx)
	if err != nil {
		return nil, err
	}
	cronoIDs, ecoIDs := collectIDs(houses)

	var devices []Device
	if len(ecoIDs) > 0 {
		ds, err := c.syncDevices(ctx, "sync-eco", ecoSyncBody(ecoIDs))
		if err != nil {
			return nil, err
		}
		devices = append(devices, ds...)
	}
	for _, id := range cronoIDs {
		ds, err := c.syncDevices(ctx, "sync-climate", cronoSyncBody(id))
		if err != nil {
			return nil, err
		}
		devices = append(devices, ds...)
	}
	c.log.Debug("device sync complete", zap.Int("devices", len(devices)))
	return devices, nil
}

// SyncClimate refreshes thermostat state for the given device ids.
func (c *Client) SyncClimate(ctx context.Context, deviceIDs []string) (map[string]ClimateState, error) {
	states := map[string]ClimateState{}
	for _, id := range deviceIDs {
		if !validDeviceID(id) {
			continue
		}
		devices, err := c.syncDevices(ctx, "sync-climate", cronoSyncBody(id))
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			states[d.ID] = parseClimateState(d)
		}
	}
	return states, nil
}

// SyncEco refreshes ventilation state for the given ECO unit ids in one
// round trip.
func (c *Client) SyncEco(ctx context.Context, ecoIDs []string) (map[string]EcoState, error) {
	if len(ecoIDs) == 0 {
		return map[string]EcoState{}, nil
	}
	devices, err := c.syncDevices(ctx, "sync-eco", ecoSyncBody(ecoIDs))
	if err != nil {
		return nil, err
	}
	states := make(map[string]EcoState, len(devices))
	for _, d := range devices {
		states[d.ID] = parseEcoState(d)
	}
	return states, nil
}

func (c *Client) syncDevices(ctx context.Context, op string, req syncRequest) ([]Device, error) {
	resp, shape, err := c.authedPost(ctx, op, staticPath(req.path), req.body)
	if err != nil {
		return nil, err
	}
	list, _ := resp.firstList(shape.DataKeys)
	devices := make([]Device, 0, len(list))
	for _, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		devices = append(devices, parseDevice(raw))
	}
	return devices, nil
}

type syncRequest struct {
	path string
	body map[string]any
}

func cronoSyncBody(deviceID string) syncRequest {
	return syncRequest{
		path: "sync/cronos380",
		body: map[string]any{
			"IDs":           deviceID,
			"ECOs":          "",
			"includi_eco":   true,
			"includi_ledot": true,
		},
	}
}

func ecoSyncBody(ecoIDs []string) syncRequest {
	return syncRequest{
		path: "sync/cronos400",
		body: map[string]any{
			"IDs":           "",
			"ECOs":          strings.Join(ecoIDs, ","),
			"C900s":         "",
			"RHINOs":        "",
			"ECO3s":         "",
			"includi_eco":   true,
			"includi_ledot": true,
			"includi_c900":  true,
			"includi_rhino": true,
			"includi_eco3":  true,
		},
	}
}

func collectIDs(houses []House) (cronoIDs, ecoIDs []string) {
	seenCrono := map[string]bool{}
	seenEco := map[string]bool{}
	for _, h := range houses {
		for _, id := range h.CronoIDs {
			if validDeviceID(id) && !seenCrono[id] {
				seenCrono[id] = true
				cronoIDs = append(cronoIDs, id)
			}
		}
		for _, id := range h.EcoIDs {
			if id != "" && !seenEco[id] {
				seenEco[id] = true
				ecoIDs = append(ecoIDs, id)
			}
		}
	}
	return cronoIDs, ecoIDs
}

// The cloud pads thermostat id lists with zeros and placeholders.
func validDeviceID(id string) bool {
	n, err := strconv.Atoi(id)
	return err == nil && n > 0
}

// parseDevice normalizes one raw device payload. The model and config
// fields may arrive double-encoded; decodeJSONField keeps the raw string
// when the inner decode fails.
func parseDevice(raw map[string]any) Device {
	d := Device{
		ID:     stringAlias(raw, "id"),
		Name:   stringAlias(raw, "name", "nome"),
		Serial: stringAlias(raw, "crono_sn", "multi_sn", "serial"),
		Model:  decodeJSONField(raw["model"]),
		Config: decodeJSONField(raw["config"]),
		Raw:    raw,
	}
	if m, ok := d.Model.Get("modello"); ok {
		d.Family = m
	} else if m, ok := d.Model.Get("tipo"); ok {
		d.Family = m
	}
	return d
}

func parseClimateState(d Device) ClimateState {
	st := ClimateState{
		CurrentTemperature: floatAlias(d.Raw, "t_amb", "tamb"),
		TargetTemperature:  floatAlias(d.Raw, "tmanw", "tmans", "tset"),
		Humidity:           floatAlias(d.Raw, "humidity", "umidita"),
		OutdoorTemperature: floatAlias(d.Raw, "outdoor_temperature", "t_est"),
	}
	mode := stringAlias(d.Raw, "hvac_mode")
	if mode == "" {
		mode, _ = d.Config.Get("mode")
	}
	st.Mode = ClimateModeFromWire(mode)
	return st
}

func parseEcoState(d Device) EcoState {
	return EcoState{
		SpeedSet:   intAlias(d.Raw, "speed_set"),
		SpeedState: intAlias(d.Raw, "speed_state"),
		ModeSet:    intAlias(d.Raw, "mode_set"),
		ModeState:  intAlias(d.Raw, "mode_state"),
	}
}

func stringAlias(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return ""
}

func floatAlias(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			f := t
			return &f
		case string:
			if s := strings.TrimSpace(t); s != "" {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					return &f
				}
			}
		}
	}
	return nil
}

func intAlias(m map[string]any, keys ...string) *int {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			n := int(t)
			return &n
		case string:
			if s := strings.TrimSpace(t); s != "" {
				if n, err := strconv.Atoi(s); err == nil {
					return &n
				}
			}
		}
	}
	return nil
}
