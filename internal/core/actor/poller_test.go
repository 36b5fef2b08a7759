package actor

import (
	"sync"
	"testing"
	"time"

	adactor "intelliclima2mqtt/internal/adapter/actor"
	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/internal/util"
	"intelliclima2mqtt/internal/util/actorutil"
	"intelliclima2mqtt/pkg/intelliclima"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPollerPublishesStateEvents(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.MonitorConfig.PollIntervalMillis = 500

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	tamb := 19.8
	tman := 21.5
	speed := 2
	mode := 1
	cloud := &intelliclima.TestCloudClient{
		Devices: []intelliclima.Device{
			{ID: "101", Name: "Living room", Serial: "06231964", Family: intelliclima.FamilyC800WiFi},
			{ID: "201", Name: "Bathroom", Serial: "00180674", Family: intelliclima.FamilyECO},
		},
		Climate: map[string]intelliclima.ClimateState{
			"101": {CurrentTemperature: &tamb, TargetTemperature: &tman, Mode: intelliclima.ClimateModeAuto},
		},
		Eco: map[string]intelliclima.EcoState{
			"201": {SpeedState: &speed, ModeState: &mode},
		},
	}

	cloudProps := actor.PropsFromProducer(func() actor.Actor { return adactor.NewCloudActor(cloud, logger) })
	cloudPID := context.Spawn(cloudProps)

	es := eventstream.EventStream{}

	var mu sync.Mutex
	var climateEvents []domain.ClimateStateUpdateEvent
	var fanEvents []domain.FanStateUpdateEvent
	sub := es.Subscribe(func(value any) {
		mu.Lock()
		defer mu.Unlock()
		switch ev := value.(type) {
		case domain.ClimateStateUpdateEvent:
			climateEvents = append(climateEvents, ev)
		case domain.FanStateUpdateEvent:
			fanEvents = append(fanEvents, ev)
		}
	})
	defer es.Unsubscribe(sub)

	pollerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, cloudPID, &es, logger)
	})
	pollerPID := context.Spawn(pollerProps)

	time.Sleep(3 * time.Second)

	mu.Lock()
	gotClimate := append([]domain.ClimateStateUpdateEvent(nil), climateEvents...)
	gotFans := append([]domain.FanStateUpdateEvent(nil), fanEvents...)
	mu.Unlock()

	if assert.NotEmpty(gotClimate, "climate events published") {
		ev := gotClimate[0]
		assert.Equal("101", ev.SensorId())
		assert.Equal("auto", ev.Mode)
		if assert.NotNil(ev.TargetTemperature) {
			assert.Equal(21.5, *ev.TargetTemperature)
		}
	}
	if assert.NotEmpty(gotFans, "fan events published") {
		ev := gotFans[0]
		assert.Equal("201", ev.SensorId())
		assert.Equal(string(intelliclima.ModeOutdoorIntake), ev.Preset)
		if assert.NotNil(ev.Percentage) {
			assert.Equal(50, *ev.Percentage)
		}
	}

	context.Stop(pollerPID)
	context.Stop(cloudPID)

	as.Shutdown()
}
