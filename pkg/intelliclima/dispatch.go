package intelliclima

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ClimateCommand is a thermostat write: target setpoint plus operating
// mode, applied together.
type ClimateCommand struct {
	TargetTemperature float64
	Mode              ClimateMode
}

// EcoCommand is a ventilation write. Speed is the native level 0..4;
// Auto replaces it with the controller-managed speed byte. Off is
// speed 0 with mode byte 0.
type EcoCommand struct {
	Mode  VentilationMode
	Speed int
	Auto  bool
	Off   bool
}

// SetClimate writes setpoint and mode to a thermostat. Only the
// C800WiFi model accepts writes; everything else is rejected up front.
func (c *Client) SetClimate(ctx context.Context, device Device, cmd ClimateCommand) error {
	if device.Family != FamilyC800WiFi {
		return fmt.Errorf("set climate: model %q does not accept writes", device.Family)
	}
	if device.Serial == "" {
		return fmt.Errorf("set climate: device %s has no serial", device.ID)
	}
	body := map[string]any{
		"serial":      device.Serial,
		"w_Tset_Tman": cmd.TargetTemperature,
		"mode":        cmd.Mode.Int(),
	}
	_, _, err := c.authedPost(ctx, "set-climate", staticPath("C800/scrivi/"), body)
	if err != nil {
		return err
	}
	c.log.Debug("climate write accepted",
		zap.String("serial", device.Serial),
		zap.Float64("target", cmd.TargetTemperature),
		zap.String("mode", string(cmd.Mode)))
	return nil
}

// SetEco encodes the command frame, sends it and validates the echoed
// acknowledgement. Writes to the same unit are serialized so two frames
// never interleave on the wire.
func (c *Client) SetEco(ctx context.Context, device Device, cmd EcoCommand) error {
	if device.Serial == "" {
		return fmt.Errorf("set eco: device %s has no serial", device.ID)
	}
	serial, err := NormalizeSerial(device.Serial)
	if err != nil {
		return err
	}

	var modeByte, speedByte byte
	switch {
	case cmd.Off:
		// mode 0 speed 0 is the documented off frame.
	case cmd.Auto:
		modeByte, err = ModeCommandByte(cmd.Mode)
		if err != nil {
			return err
		}
		speedByte = SpeedByteAuto
	default:
		modeByte, err = ModeCommandByte(cmd.Mode)
		if err != nil {
			return err
		}
		speedByte, err = SpeedCommandByte(cmd.Speed)
		if err != nil {
			return err
		}
	}

	trama, err := EncodeFrameHex(serial, modeByte, speedByte)
	if err != nil {
		return err
	}

	mu := c.lockSerial(serial)
	mu.Lock()
	defer mu.Unlock()

	resp, shape, err := c.authedPost(ctx, "set-eco", staticPath("eco/send/"), map[string]any{"trama": trama})
	if err != nil {
		return err
	}

	gotSerial, _ := resp.firstString(shape.SerialKeys)
	gotTrama, _ := resp.firstString(shape.TramaKeys)
	gotTrama = strings.ToUpper(gotTrama)

	if gotSerial != "" && gotSerial != serial {
		return &WriteAckMismatchError{Serial: serial, ExpectedTrama: trama, GotSerial: gotSerial, GotTrama: gotTrama}
	}
	if !ackEchoMatches(gotTrama, trama) {
		return &WriteAckMismatchError{Serial: serial, ExpectedTrama: trama, GotSerial: gotSerial, GotTrama: gotTrama}
	}

	c.log.Debug("eco write acknowledged",
		zap.String("serial", serial),
		zap.String("trama", trama))
	return nil
}

// ackEchoMatches accepts an exact echo, an echo with an informational
// prefix (the server sometimes prepends tokens like SERVERECO), or an
// empty echo field.
func ackEchoMatches(got, expected string) bool {
	if got == "" {
		return true
	}
	return got == expected || strings.HasSuffix(got, expected)
}
