package actor

import (
	"testing"
	"time"

	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/internal/util/actorutil"
	"intelliclima2mqtt/pkg/intelliclima"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testCloudClient() *intelliclima.TestCloudClient {
	tman := 21.5
	tamb := 19.8
	speed := 2
	mode := 3
	return &intelliclima.TestCloudClient{
		Devices: []intelliclima.Device{
			{ID: "101", Name: "Living room", Serial: "06231964", Family: intelliclima.FamilyC800WiFi},
			{ID: "201", Name: "Bathroom", Serial: "00180674", Family: intelliclima.FamilyECO},
		},
		Climate: map[string]intelliclima.ClimateState{
			"101": {
				CurrentTemperature: &tamb,
				TargetTemperature:  &tman,
				Mode:               intelliclima.ClimateModeHeat,
			},
		},
		Eco: map[string]intelliclima.EcoState{
			"201": {
				SpeedState: &speed,
				ModeState:  &mode,
			},
		},
	}
}

func TestGetDevicesCloudActor(t *testing.T) {

	assert := assert.New(t)

	cloud := testCloudClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(cloud, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetDevicesRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetDevicesResponse)

	assert.False(resp.HasResponseError())
	assert.Len(resp.Devices, 2)
	assert.Equal("Living room", resp.Devices[0].Name)
	assert.Equal(intelliclima.FamilyECO, resp.Devices[1].Family)
	assert.GreaterOrEqual(cloud.LoginCalls, 1, "login on actor start")

	context.Stop(pid)

	as.Shutdown()
}

func TestSyncStatesCloudActor(t *testing.T) {

	assert := assert.New(t)

	cloud := testCloudClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(cloud, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	// device list first so the actor knows which ids to sync
	_, err := context.RequestFuture(pid, domain.GetDevicesRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}

	result, err := context.RequestFuture(pid, domain.SyncStatesRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.SyncStatesResponse)

	assert.False(resp.HasResponseError())
	assert.Contains(resp.Climate, "101")
	assert.Equal(intelliclima.ClimateModeHeat, resp.Climate["101"].Mode)
	assert.Contains(resp.Eco, "201")
	level, ok := resp.Eco["201"].EffectiveSpeed()
	assert.True(ok)
	assert.Equal(2, level)

	context.Stop(pid)

	as.Shutdown()
}

func TestFanCommandsMergeCachedStateCloudActor(t *testing.T) {

	assert := assert.New(t)

	cloud := testCloudClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(cloud, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	// warm device and state caches
	if _, err := context.RequestFuture(pid, domain.GetDevicesRequest{}, 15*time.Second).Result(); err != nil {
		t.Error(err)
		return
	}
	if _, err := context.RequestFuture(pid, domain.SyncStatesRequest{}, 15*time.Second).Result(); err != nil {
		t.Error(err)
		return
	}

	// 75% maps to level 3 and keeps the cached preset
	result, err := context.RequestFuture(pid, domain.SetFanPercentageRequest{
		DeviceControlRequestMixIn: domain.DeviceControlRequestMixIn{DeviceId: "201"},
		Percentage:                75,
	}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	pctResp := result.(domain.SetFanPercentageResponse)
	assert.False(pctResp.HasResponseError())

	if assert.Len(cloud.EcoWrites, 1) {
		assert.Equal("00180674", cloud.EcoWrites[0].Serial)
		assert.Equal(3, cloud.EcoWrites[0].Command.Speed)
		assert.Equal(intelliclima.ModeAlternating45s, cloud.EcoWrites[0].Command.Mode)
	}

	// power off maps to the off command
	result, err = context.RequestFuture(pid, domain.SetFanPowerRequest{
		DeviceControlRequestMixIn: domain.DeviceControlRequestMixIn{DeviceId: "201"},
		On:                        false,
	}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	powerResp := result.(domain.SetFanPowerResponse)
	assert.False(powerResp.HasResponseError())

	if assert.Len(cloud.EcoWrites, 2) {
		assert.True(cloud.EcoWrites[1].Command.Off)
	}

	// power back on restores the preset the fan had before the off,
	// at the default level (off zeroed the cached speed)
	result, err = context.RequestFuture(pid, domain.SetFanPowerRequest{
		DeviceControlRequestMixIn: domain.DeviceControlRequestMixIn{DeviceId: "201"},
		On:                        true,
	}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	onResp := result.(domain.SetFanPowerResponse)
	assert.False(onResp.HasResponseError())

	if assert.Len(cloud.EcoWrites, 3) {
		assert.Equal(2, cloud.EcoWrites[2].Command.Speed)
		assert.Equal(intelliclima.ModeAlternating45s, cloud.EcoWrites[2].Command.Mode)
	}

	// unknown device is rejected without a cloud call
	result, err = context.RequestFuture(pid, domain.SetFanPowerRequest{
		DeviceControlRequestMixIn: domain.DeviceControlRequestMixIn{DeviceId: "999"},
		On:                        true,
	}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	unknownResp := result.(domain.SetFanPowerResponse)
	assert.True(unknownResp.HasResponseError())
	assert.Len(cloud.EcoWrites, 3)

	context.Stop(pid)

	as.Shutdown()
}

func TestClimateCommandsMergeCachedStateCloudActor(t *testing.T) {

	assert := assert.New(t)

	cloud := testCloudClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewCloudActor(cloud, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	if _, err := context.RequestFuture(pid, domain.GetDevicesRequest{}, 15*time.Second).Result(); err != nil {
		t.Error(err)
		return
	}
	if _, err := context.RequestFuture(pid, domain.SyncStatesRequest{}, 15*time.Second).Result(); err != nil {
		t.Error(err)
		return
	}

	// mode change keeps the synced setpoint
	result, err := context.RequestFuture(pid, domain.SetClimateModeRequest{
		DeviceControlRequestMixIn: domain.DeviceControlRequestMixIn{DeviceId: "101"},
		Mode:                      "auto",
	}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	modeResp := result.(domain.SetClimateModeResponse)
	assert.False(modeResp.HasResponseError())

	if assert.Len(cloud.ClimateWrites, 1) {
		assert.Equal(21.5, cloud.ClimateWrites[0].Command.TargetTemperature)
		assert.Equal(intelliclima.ClimateModeAuto, cloud.ClimateWrites[0].Command.Mode)
	}

	// a setpoint change before the next poll merges with the mode that
	// was just written, not the pre-write snapshot
	result, err = context.RequestFuture(pid, domain.SetTargetTemperatureRequest{
		DeviceControlRequestMixIn: domain.DeviceControlRequestMixIn{DeviceId: "101"},
		Value:                     23.0,
	}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	tempResp := result.(domain.SetTargetTemperatureResponse)
	assert.False(tempResp.HasResponseError())

	if assert.Len(cloud.ClimateWrites, 2) {
		assert.Equal(23.0, cloud.ClimateWrites[1].Command.TargetTemperature)
		assert.Equal(intelliclima.ClimateModeAuto, cloud.ClimateWrites[1].Command.Mode)
	}

	// and a further mode change carries the new setpoint
	result, err = context.RequestFuture(pid, domain.SetClimateModeRequest{
		DeviceControlRequestMixIn: domain.DeviceControlRequestMixIn{DeviceId: "101"},
		Mode:                      "off",
	}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	modeResp = result.(domain.SetClimateModeResponse)
	assert.False(modeResp.HasResponseError())

	if assert.Len(cloud.ClimateWrites, 3) {
		assert.Equal(23.0, cloud.ClimateWrites[2].Command.TargetTemperature)
		assert.Equal(intelliclima.ClimateModeOff, cloud.ClimateWrites[2].Command.Mode)
	}

	context.Stop(pid)

	as.Shutdown()
}
