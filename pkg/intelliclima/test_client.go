package intelliclima

import (
	"context"
	"sync"
	"time"
)

// TestCloudClient is an in-memory CloudClient for tests and local runs.
// Populate Houses/Devices/Climate/Eco and inject errors per operation.
type TestCloudClient struct {
	mu sync.Mutex

	Houses  []House
	Devices []Device
	Climate map[string]ClimateState
	Eco     map[string]EcoState

	LoginErr error
	SyncErr  error
	WriteErr error

	LoginCalls    int
	ClimateWrites []RecordedClimateWrite
	EcoWrites     []RecordedEcoWrite

	session *Session
}

type RecordedClimateWrite struct {
	Serial  string
	Command ClimateCommand
}

type RecordedEcoWrite struct {
	Serial  string
	Command EcoCommand
}

var _ CloudClient = (*TestCloudClient)(nil)

func (t *TestCloudClient) Login(ctx context.Context) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.LoginCalls++
	if t.LoginErr != nil {
		return nil, t.LoginErr
	}
	t.session = &Session{Token: "test-token", UserID: "test-user", CreatedAt: time.Now()}
	return t.session, nil
}

func (t *TestCloudClient) ListHouses(ctx context.Context) ([]House, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SyncErr != nil {
		return nil, t.SyncErr
	}
	return t.Houses, nil
}

func (t *TestCloudClient) GetDevices(ctx context.Context) ([]Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SyncErr != nil {
		return nil, t.SyncErr
	}
	return t.Devices, nil
}

func (t *TestCloudClient) SyncClimate(ctx context.Context, deviceIDs []string) (map[string]ClimateState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SyncErr != nil {
		return nil, t.SyncErr
	}
	out := map[string]ClimateState{}
	for _, id := range deviceIDs {
		if st, ok := t.Climate[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (t *TestCloudClient) SyncEco(ctx context.Context, ecoIDs []string) (map[string]EcoState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SyncErr != nil {
		return nil, t.SyncErr
	}
	out := map[string]EcoState{}
	for _, id := range ecoIDs {
		if st, ok := t.Eco[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (t *TestCloudClient) SetClimate(ctx context.Context, device Device, cmd ClimateCommand) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.WriteErr != nil {
		return t.WriteErr
	}
	t.ClimateWrites = append(t.ClimateWrites, RecordedClimateWrite{Serial: device.Serial, Command: cmd})
	if t.Climate == nil {
		t.Climate = map[string]ClimateState{}
	}
	st := t.Climate[device.ID]
	target := cmd.TargetTemperature
	st.TargetTemperature = &target
	st.Mode = cmd.Mode
	t.Climate[device.ID] = st
	return nil
}

func (t *TestCloudClient) SetEco(ctx context.Context, device Device, cmd EcoCommand) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.WriteErr != nil {
		return t.WriteErr
	}
	t.EcoWrites = append(t.EcoWrites, RecordedEcoWrite{Serial: device.Serial, Command: cmd})
	if t.Eco == nil {
		t.Eco = map[string]EcoState{}
	}
	speed := cmd.Speed
	var mode int
	if cmd.Off {
		speed = 0
	} else {
		b, err := ModeCommandByte(cmd.Mode)
		if err != nil {
			return err
		}
		mode = int(b)
		if cmd.Auto {
			speed = int(SpeedByteAuto)
		}
	}
	t.Eco[device.ID] = EcoState{SpeedSet: &speed, ModeSet: &mode}
	return nil
}

func (t *TestCloudClient) Invalidate() {
	t.mu.Lock()
	t.session = nil
	t.mu.Unlock()
}
