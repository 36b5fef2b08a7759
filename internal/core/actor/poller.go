package actor

import (
	"fmt"
	"time"

	"intelliclima2mqtt/internal/config"
	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/internal/events"
	. "intelliclima2mqtt/internal/util/actorutil"
	"intelliclima2mqtt/pkg/intelliclima"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor drives the periodic cloud sync. Each tick asks the cloud
// actor for fresh climate and ventilation states and publishes the
// resulting update events on the event stream.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	cloudActor  *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	devices     map[string]intelliclima.Device

	logger *zap.Logger
}

type pollTick struct {
}

func NewPollerActor(config *config.Config, cloudActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:      config,
		cloudActor:  cloudActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_POLLER, logger),
		eventStream: eventStream,
		devices:     map[string]intelliclima.Device{},
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")

		if state.config.MonitorConfig.PollIntervalMillis > 0 {
			state.scheduler = scheduler.NewTimerScheduler(ctx)
			state.scheduler.RequestOnce(time.Duration(state.config.MonitorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), pollTick{})
		}

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetDevicesRequest{}, 40*time.Second), func(err error) any {
			return domain.GetDevicesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingDevicesReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case pollTick:
		state.logger.Debug("poller@default tick")

		// schedule next tick
		state.scheduler.RequestOnce(time.Duration(state.config.MonitorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), pollTick{})

		if len(state.devices) == 0 {
			// device listing failed on boot, retry before syncing
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.GetDevicesRequest{}, 40*time.Second), func(err error) any {
				return domain.GetDevicesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
			state.behavior.Become(state.WaitingDevicesReceive)
			return
		}

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.cloudActor, domain.SyncStatesRequest{}, 40*time.Second), func(err error) any {
			return domain.SyncStatesResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingSyncReceive)
	default:
		state.logger.Debug("poller@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingSyncReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.SyncStatesResponse:
		if msg.HasResponseError() {
			state.logger.Error("poller@waiting SyncStatesResponse error", zap.Error(msg.GetResponseError()))
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Debug("poller@waiting SyncStatesResponse")
		for id, st := range msg.Climate {
			device, ok := state.devices[id]
			if !ok {
				continue
			}
			for _, ev := range events.ClimateStateToUpdateEvents(device, st) {
				state.eventStream.Publish(ev)
			}
		}
		for id, st := range msg.Eco {
			device, ok := state.devices[id]
			if !ok {
				continue
			}
			for _, ev := range events.EcoStateToUpdateEvents(device, st) {
				state.eventStream.Publish(ev)
			}
		}

		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingDevicesReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDevicesResponse:
		if msg.HasResponseError() {
			state.logger.Error("poller@waitingDevices GetDevicesResponse", zap.Error(msg.GetResponseError()))
			state.behavior.Become(state.DefaultReceive)
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Debug("poller@waitingDevices GetDevicesResponse", zap.Int("devices", len(msg.Devices)))
		state.devices = map[string]intelliclima.Device{}
		for _, d := range msg.Devices {
			state.devices[d.ID] = d
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("poller@waitingDevices: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}
