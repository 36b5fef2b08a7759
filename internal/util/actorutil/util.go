package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"intelliclima2mqtt/internal/core/domain"
	"intelliclima2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps a parsed MQTT set-topic message to a
// device control request. A nil return with nil error means the command
// is not for us.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	mixin := domain.DeviceControlRequestMixIn{DeviceId: cmd.DeviceId}
	switch cmd.Command {
	case "temperature":
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.SetTargetTemperatureRequest{
			DeviceControlRequestMixIn: mixin,
			Value:                     value,
		}, nil
	case "mode":
		return domain.SetClimateModeRequest{
			DeviceControlRequestMixIn: mixin,
			Mode:                      strings.ToLower(cmd.Payload),
		}, nil
	case "percentage":
		value, err := strconv.ParseUint(cmd.Payload, 10, 8)
		if err != nil {
			return nil, err
		}
		if value > 100 {
			return nil, fmt.Errorf("fan percentage out of range: %d", value)
		}
		return domain.SetFanPercentageRequest{
			DeviceControlRequestMixIn: mixin,
			Percentage:                int(value),
		}, nil
	case "preset":
		return domain.SetFanPresetRequest{
			DeviceControlRequestMixIn: mixin,
			Preset:                    strings.ToLower(cmd.Payload),
		}, nil
	case "power":
		return domain.SetFanPowerRequest{
			DeviceControlRequestMixIn: mixin,
			On:                        strings.EqualFold(cmd.Payload, mqtt.MQTT_PAYLOAD_ON),
		}, nil
	}
	return nil, nil
}
