package actor

import (
	"context"
	"fmt"
	"time"

	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/internal/util/actorutil"
	"intelliclima2mqtt/pkg/intelliclima"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	cloudTaskTimeout = 30 * time.Second

	// setpoint used when a mode change arrives before the first poll
	defaultTargetTemperature = 20.0
	defaultFanLevel          = 2
	defaultVentilationMode   = intelliclima.ModeAlternating45s
)

// CloudActor owns the Intelliclima session. Every cloud round trip runs
// as a background task while the actor stashes incoming work, so the
// mailbox never blocks on HTTP. State reads are cached so that device
// commands can be merged with the last known state.
type CloudActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   intelliclima.CloudClient
	logger   *zap.Logger
	devices  map[string]intelliclima.Device
	climate  map[string]intelliclima.ClimateState
	eco      map[string]intelliclima.EcoState
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
	// commit folds an accepted write into the cached state. Only set on
	// the success path, and only run on the actor goroutine.
	commit func()
}

func NewCloudActor(client intelliclima.CloudClient, logger *zap.Logger) *CloudActor {
	act := &CloudActor{
		client:   client,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_CLOUD, logger),
		devices:  map[string]intelliclima.Device{},
		climate:  map[string]intelliclima.ClimateState{},
		eco:      map[string]intelliclima.EcoState{},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *CloudActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CloudActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("cloud@starting started")
		_, err := state.client.Login(context.Background())
		if err != nil {
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.client.Invalidate()
	default:
		state.logger.Debug("cloud@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CloudActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("cloud@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLOUD,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDevicesRequest:
		state.logger.Debug("cloud@default: GetDevicesRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		pipeCloudTask(state, ctx, sender, state.getDevices, func(err error) domain.GetDevicesResponse {
			return domain.GetDevicesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
	case domain.SyncStatesRequest:
		state.logger.Debug("cloud@default: SyncStatesRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		climateIDs, ecoIDs := state.knownDeviceIDs()
		pipeCloudTask(state, ctx, sender, func() (*domain.SyncStatesResponse, error) {
			return state.syncStates(climateIDs, ecoIDs)
		}, func(err error) domain.SyncStatesResponse {
			return domain.SyncStatesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		})
	case domain.SetClimateStateRequest:
		state.logger.Debug("cloud@default: SetClimateStateRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		pipeCloudWrite(state, ctx, sender, func() (*domain.SetClimateStateResponse, error) {
			err := state.client.SetClimate(context.Background(), msg.Device, msg.Command)
			if err != nil {
				return nil, err
			}
			return &domain.SetClimateStateResponse{}, nil
		}, func(err error) domain.SetClimateStateResponse {
			return domain.SetClimateStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		}, func() { state.applyClimateWrite(msg.Device.ID, msg.Command) })
	case domain.SetEcoStateRequest:
		state.logger.Debug("cloud@default: SetEcoStateRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		pipeCloudWrite(state, ctx, sender, func() (*domain.SetEcoStateResponse, error) {
			err := state.client.SetEco(context.Background(), msg.Device, msg.Command)
			if err != nil {
				return nil, err
			}
			return &domain.SetEcoStateResponse{}, nil
		}, func(err error) domain.SetEcoStateResponse {
			return domain.SetEcoStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
			}
		}, func() { state.applyEcoWrite(msg.Device.ID, msg.Command) })
	case domain.SetTargetTemperatureRequest:
		state.logger.Debug("cloud@default: SetTargetTemperatureRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		device, err := state.lookupDevice(msg.TargetDeviceId())
		if err != nil {
			ctx.Send(sender, domain.SetTargetTemperatureResponse{DeviceControlResponseMixIn: controlError(err)})
			return
		}
		cmd := intelliclima.ClimateCommand{
			TargetTemperature: msg.Value,
			Mode:              state.cachedClimateMode(device.ID),
		}
		pipeCloudWrite(state, ctx, sender, func() (*domain.SetTargetTemperatureResponse, error) {
			if err := state.client.SetClimate(context.Background(), device, cmd); err != nil {
				return nil, err
			}
			return &domain.SetTargetTemperatureResponse{}, nil
		}, func(err error) domain.SetTargetTemperatureResponse {
			return domain.SetTargetTemperatureResponse{DeviceControlResponseMixIn: controlError(err)}
		}, func() { state.applyClimateWrite(device.ID, cmd) })
	case domain.SetClimateModeRequest:
		state.logger.Debug("cloud@default: SetClimateModeRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		device, err := state.lookupDevice(msg.TargetDeviceId())
		if err != nil {
			ctx.Send(sender, domain.SetClimateModeResponse{DeviceControlResponseMixIn: controlError(err)})
			return
		}
		mode, err := parseClimateMode(msg.Mode)
		if err != nil {
			ctx.Send(sender, domain.SetClimateModeResponse{DeviceControlResponseMixIn: controlError(err)})
			return
		}
		cmd := intelliclima.ClimateCommand{
			TargetTemperature: state.cachedTargetTemperature(device.ID),
			Mode:              mode,
		}
		pipeCloudWrite(state, ctx, sender, func() (*domain.SetClimateModeResponse, error) {
			if err := state.client.SetClimate(context.Background(), device, cmd); err != nil {
				return nil, err
			}
			return &domain.SetClimateModeResponse{}, nil
		}, func(err error) domain.SetClimateModeResponse {
			return domain.SetClimateModeResponse{DeviceControlResponseMixIn: controlError(err)}
		}, func() { state.applyClimateWrite(device.ID, cmd) })
	case domain.SetFanPercentageRequest:
		state.logger.Debug("cloud@default: SetFanPercentageRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		device, err := state.lookupDevice(msg.TargetDeviceId())
		if err != nil {
			ctx.Send(sender, domain.SetFanPercentageResponse{DeviceControlResponseMixIn: controlError(err)})
			return
		}
		level := (msg.Percentage*intelliclima.MaxSpeedLevel + 50) / 100
		var cmd intelliclima.EcoCommand
		if level <= 0 {
			cmd = intelliclima.EcoCommand{Off: true}
		} else {
			cmd = intelliclima.EcoCommand{Mode: state.cachedFanMode(device.ID), Speed: level}
		}
		pipeCloudWrite(state, ctx, sender, func() (*domain.SetFanPercentageResponse, error) {
			if err := state.client.SetEco(context.Background(), device, cmd); err != nil {
				return nil, err
			}
			return &domain.SetFanPercentageResponse{}, nil
		}, func(err error) domain.SetFanPercentageResponse {
			return domain.SetFanPercentageResponse{DeviceControlResponseMixIn: controlError(err)}
		}, func() { state.applyEcoWrite(device.ID, cmd) })
	case domain.SetFanPresetRequest:
		state.logger.Debug("cloud@default: SetFanPresetRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		device, err := state.lookupDevice(msg.TargetDeviceId())
		if err != nil {
			ctx.Send(sender, domain.SetFanPresetResponse{DeviceControlResponseMixIn: controlError(err)})
			return
		}
		preset, err := parseVentilationMode(msg.Preset)
		if err != nil {
			ctx.Send(sender, domain.SetFanPresetResponse{DeviceControlResponseMixIn: controlError(err)})
			return
		}
		level := state.cachedFanLevel(device.ID)
		if level <= 0 {
			// selecting a preset implies the fan turns on
			level = 1
		}
		cmd := intelliclima.EcoCommand{Mode: preset, Speed: level}
		pipeCloudWrite(state, ctx, sender, func() (*domain.SetFanPresetResponse, error) {
			if err := state.client.SetEco(context.Background(), device, cmd); err != nil {
				return nil, err
			}
			return &domain.SetFanPresetResponse{}, nil
		}, func(err error) domain.SetFanPresetResponse {
			return domain.SetFanPresetResponse{DeviceControlResponseMixIn: controlError(err)}
		}, func() { state.applyEcoWrite(device.ID, cmd) })
	case domain.SetFanPowerRequest:
		state.logger.Debug("cloud@default: SetFanPowerRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		device, err := state.lookupDevice(msg.TargetDeviceId())
		if err != nil {
			ctx.Send(sender, domain.SetFanPowerResponse{DeviceControlResponseMixIn: controlError(err)})
			return
		}
		var cmd intelliclima.EcoCommand
		if msg.On {
			level := state.cachedFanLevel(device.ID)
			if level <= 0 {
				level = defaultFanLevel
			}
			cmd = intelliclima.EcoCommand{Mode: state.cachedFanMode(device.ID), Speed: level}
		} else {
			cmd = intelliclima.EcoCommand{Off: true}
		}
		pipeCloudWrite(state, ctx, sender, func() (*domain.SetFanPowerResponse, error) {
			if err := state.client.SetEco(context.Background(), device, cmd); err != nil {
				return nil, err
			}
			return &domain.SetFanPowerResponse{}, nil
		}, func(err error) domain.SetFanPowerResponse {
			return domain.SetFanPowerResponse{DeviceControlResponseMixIn: controlError(err)}
		}, func() { state.applyEcoWrite(device.ID, cmd) })
	case *actor.Stopping:
		state.client.Invalidate()
	default:
		state.logger.Debug("cloud@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CloudActor) WaitingCloud(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("cloud@WaitingCloud backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		state.cacheResult(msg.message)
		if msg.commit != nil {
			msg.commit()
		}
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.client.Invalidate()
	default:
		state.logger.Debug("cloud@WaitingCloud stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// cacheResult keeps the last successful read so later commands can be
// merged with known state. Runs on the actor goroutine only.
func (state *CloudActor) cacheResult(message any) {
	switch msg := message.(type) {
	case domain.GetDevicesResponse:
		if msg.HasResponseError() {
			return
		}
		state.devices = map[string]intelliclima.Device{}
		for _, d := range msg.Devices {
			state.devices[d.ID] = d
		}
	case domain.SyncStatesResponse:
		if msg.HasResponseError() {
			return
		}
		for id, st := range msg.Climate {
			state.climate[id] = st
		}
		for id, st := range msg.Eco {
			state.eco[id] = st
		}
	}
}

// applyClimateWrite updates the cached thermostat state with the values
// just written, so a command issued before the next poll merges with
// what was sent, not with the pre-write snapshot. The next sync
// overwrites it with the backend's authoritative state.
func (state *CloudActor) applyClimateWrite(id string, cmd intelliclima.ClimateCommand) {
	st := state.climate[id]
	target := cmd.TargetTemperature
	st.TargetTemperature = &target
	st.Mode = cmd.Mode
	state.climate[id] = st
}

// applyEcoWrite is the ventilation counterpart. Turning the unit off
// keeps the cached preset so a later power-on restores it.
func (state *CloudActor) applyEcoWrite(id string, cmd intelliclima.EcoCommand) {
	st := state.eco[id]
	if cmd.Off {
		speed := 0
		st.SpeedState = &speed
		state.eco[id] = st
		return
	}
	modeByte, err := intelliclima.ModeCommandByte(cmd.Mode)
	if err != nil {
		return
	}
	speed := cmd.Speed
	if cmd.Auto {
		speed = int(intelliclima.SpeedByteAuto)
	}
	mode := int(modeByte)
	st.SpeedState = &speed
	st.ModeState = &mode
	state.eco[id] = st
}

func (a *CloudActor) getDevices() (*domain.GetDevicesResponse, error) {
	devices, err := a.client.GetDevices(context.Background())
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetDevicesResponse{Devices: devices}, nil
}

func (a *CloudActor) syncStates(climateIDs, ecoIDs []string) (*domain.SyncStatesResponse, error) {
	var climate map[string]intelliclima.ClimateState
	var eco map[string]intelliclima.EcoState
	var err error

	if len(climateIDs) > 0 {
		climate, err = a.client.SyncClimate(context.Background(), climateIDs)
		if err != nil {
			logger.Error(err)
			return nil, err
		}
	}
	if len(ecoIDs) > 0 {
		eco, err = a.client.SyncEco(context.Background(), ecoIDs)
		if err != nil {
			logger.Error(err)
			return nil, err
		}
	}
	return &domain.SyncStatesResponse{Climate: climate, Eco: eco}, nil
}

func (state *CloudActor) knownDeviceIDs() (climateIDs, ecoIDs []string) {
	for id, d := range state.devices {
		if d.IsECO() {
			ecoIDs = append(ecoIDs, id)
		} else {
			climateIDs = append(climateIDs, id)
		}
	}
	return climateIDs, ecoIDs
}

func (state *CloudActor) lookupDevice(id string) (intelliclima.Device, error) {
	device, ok := state.devices[id]
	if !ok {
		return intelliclima.Device{}, fmt.Errorf("unknown device %s", id)
	}
	return device, nil
}

func (state *CloudActor) cachedClimateMode(id string) intelliclima.ClimateMode {
	if st, ok := state.climate[id]; ok && st.Mode != "" {
		return st.Mode
	}
	return intelliclima.ClimateModeHeat
}

func (state *CloudActor) cachedTargetTemperature(id string) float64 {
	if st, ok := state.climate[id]; ok && st.TargetTemperature != nil {
		return *st.TargetTemperature
	}
	return defaultTargetTemperature
}

func (state *CloudActor) cachedFanLevel(id string) int {
	st, ok := state.eco[id]
	if !ok {
		return 0
	}
	raw, ok := st.EffectiveSpeed()
	if !ok {
		return 0
	}
	level, err := intelliclima.NormalizeSpeed(raw)
	if err != nil {
		return 0
	}
	return level
}

func (state *CloudActor) cachedFanMode(id string) intelliclima.VentilationMode {
	st, ok := state.eco[id]
	if !ok {
		return defaultVentilationMode
	}
	raw, ok := st.EffectiveMode()
	if !ok {
		return defaultVentilationMode
	}
	mode, err := intelliclima.NormalizeMode(raw)
	if err != nil {
		return defaultVentilationMode
	}
	return mode
}

func controlError(err error) domain.DeviceControlResponseMixIn {
	return domain.DeviceControlResponseMixIn{
		ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
	}
}

func parseClimateMode(value string) (intelliclima.ClimateMode, error) {
	switch intelliclima.ClimateMode(value) {
	case intelliclima.ClimateModeOff, intelliclima.ClimateModeHeat, intelliclima.ClimateModeAuto:
		return intelliclima.ClimateMode(value), nil
	}
	return "", fmt.Errorf("unknown climate mode %s", value)
}

func parseVentilationMode(value string) (intelliclima.VentilationMode, error) {
	for _, mode := range intelliclima.VentilationModes {
		if string(mode) == value {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown fan preset %s", value)
}

func pipeCloudTask[T any](state *CloudActor, ctx actor.Context, sender *actor.PID,
	fn func() (*T, error), onError func(error) T) {
	pipeCloudWrite(state, ctx, sender, fn, onError, nil)
}

// pipeCloudWrite is pipeCloudTask with a commit callback applied once
// the cloud accepts the write.
func pipeCloudWrite[T any](state *CloudActor, ctx actor.Context, sender *actor.PID,
	fn func() (*T, error), onError func(error) T, commit func()) {
	actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, fn),
		mapTaskResult[T](sender, commit)).Recover(func(err error) backgroundTaskResult {
		return backgroundTaskResult{
			message: onError(err),
			replyTo: sender,
		}
	}).WithTimeout(cloudTaskTimeout).PipeTo(ctx.Self())
	state.behavior.BecomeStacked(state.WaitingCloud)
}

func mapTaskResult[T any](sender *actor.PID, commit func()) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
			commit:  commit,
		}
	}
}
