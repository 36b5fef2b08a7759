package intelliclima

import (
	"encoding/hex"
	"strings"
)

// ECO "trama" command frame, fixed 16-byte layout:
//
//	0A 00 00 <serial:2> 00 0E 2F 00 50 00 00 <mode> <speed> <crc> 0D
//
// The serial bytes are the last four digits of the 8-digit device
// serial read as hex characters. The checksum covers the 14 bytes
// before it.
const (
	frameLen      = 16
	frameStart    = 0x0A
	frameEnd      = 0x0D
	frameSerialAt = 3
	frameModeAt   = 12
	frameSpeedAt  = 13
	frameCRCAt    = 14
)

// Fixed filler observed in every captured frame, meaning unknown.
var frameFiller = [5]byte{0x00, 0x0E, 0x2F, 0x00, 0x50}

// VentilationMode is the closed set of ECO presets.
type VentilationMode string

const (
	ModeOutdoorIntake     VentilationMode = "outdoor_intake"
	ModeIndoorExhaust     VentilationMode = "indoor_exhaust"
	ModeAlternating45s    VentilationMode = "alternating_45s"
	ModeAlternatingSensor VentilationMode = "alternating_sensor"
)

// VentilationModes lists the user-selectable presets in wire order.
var VentilationModes = []VentilationMode{
	ModeOutdoorIntake,
	ModeIndoorExhaust,
	ModeAlternating45s,
	ModeAlternatingSensor,
}

// Raw mode values on the wire. 132 is reported by running units in
// sensor mode but is never valid as a command, so the decode table
// knows it and the encode table does not.
const (
	rawModeOutdoorIntake        = 1
	rawModeIndoorExhaust        = 2
	rawModeAlternating45s       = 3
	rawModeAlternatingSensor    = 4
	rawModeAlternatingSensorRun = 132
)

// Speed command bytes. Levels 1..4 are sleep/vel1/vel2/vel3; 0x10
// requests automatic speed selection.
const (
	SpeedByteOff  byte = 0x00
	SpeedByteAuto byte = 0x10
)

const (
	// MaxSpeedLevel is the top native fan level.
	MaxSpeedLevel = 4

	// Scheduled states report levels shifted into 16..19.
	translatedSpeedMin    = 16
	translatedSpeedMax    = 19
	translatedSpeedOffset = 15
)

// NormalizeSpeed maps a raw speed value to the native 0..4 level.
// Translated schedule values 16..19 map back to 1..4. Anything else is
// an unrecognized state, never a default.
func NormalizeSpeed(raw int) (int, error) {
	switch {
	case raw >= 0 && raw <= MaxSpeedLevel:
		return raw, nil
	case raw >= translatedSpeedMin && raw <= translatedSpeedMax:
		return raw - translatedSpeedOffset, nil
	default:
		return 0, &UnrecognizedStateError{Field: "speed", Value: raw}
	}
}

// NormalizeMode maps a raw mode value to its preset.
func NormalizeMode(raw int) (VentilationMode, error) {
	switch raw {
	case rawModeOutdoorIntake:
		return ModeOutdoorIntake, nil
	case rawModeIndoorExhaust:
		return ModeIndoorExhaust, nil
	case rawModeAlternating45s:
		return ModeAlternating45s, nil
	case rawModeAlternatingSensor, rawModeAlternatingSensorRun:
		return ModeAlternatingSensor, nil
	default:
		return "", &UnrecognizedStateError{Field: "mode", Value: raw}
	}
}

// ModeCommandByte is the inverse of NormalizeMode restricted to values
// a user may send. The 132 runtime variant is intentionally absent.
func ModeCommandByte(mode VentilationMode) (byte, error) {
	switch mode {
	case ModeOutdoorIntake:
		return rawModeOutdoorIntake, nil
	case ModeIndoorExhaust:
		return rawModeIndoorExhaust, nil
	case ModeAlternating45s:
		return rawModeAlternating45s, nil
	case ModeAlternatingSensor:
		return rawModeAlternatingSensor, nil
	default:
		return 0, &UnrecognizedStateError{Field: "mode", Value: -1}
	}
}

// SpeedCommandByte maps a native level to its command byte.
func SpeedCommandByte(level int) (byte, error) {
	if level < 0 || level > MaxSpeedLevel {
		return 0, &UnrecognizedStateError{Field: "speed", Value: level}
	}
	return byte(level), nil
}

// IsOn reports whether a native level means the fan is running.
func IsOn(level int) bool {
	return level > 0
}

// Percentage maps a native level to the 0..1 range.
func Percentage(level int) float64 {
	return float64(level) / float64(MaxSpeedLevel)
}

// crc8ECO is the vendor checksum: CRC-8 with polynomial 0x31, zero
// init and final xor 0xC5. Inferred from captured frames; decodeFrame
// verifies it on every parse.
func crc8ECO(payload []byte) byte {
	var crc byte
	for _, b := range payload {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc ^ 0xC5
}

// EncodeFrame builds the command frame for the given device serial,
// mode byte and speed byte.
func EncodeFrame(serial string, modeByte, speedByte byte) ([]byte, error) {
	normalized, err := NormalizeSerial(serial)
	if err != nil {
		return nil, err
	}
	serialBytes, err := hex.DecodeString(normalized[len(normalized)-4:])
	if err != nil {
		return nil, &MalformedFrameError{Reason: "serial digits out of range: " + normalized}
	}

	frame := make([]byte, frameLen)
	frame[0] = frameStart
	copy(frame[frameSerialAt:], serialBytes)
	copy(frame[frameSerialAt+2:], frameFiller[:])
	frame[frameModeAt] = modeByte
	frame[frameSpeedAt] = speedByte
	frame[frameCRCAt] = crc8ECO(frame[:frameCRCAt])
	frame[frameLen-1] = frameEnd
	return frame, nil
}

// EncodeFrameHex returns the frame as the uppercase 32-char hex string
// the write endpoint expects in its `trama` field.
func EncodeFrameHex(serial string, modeByte, speedByte byte) (string, error) {
	frame, err := EncodeFrame(serial, modeByte, speedByte)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(frame)), nil
}

// Frame is the result of decoding a trama.
type Frame struct {
	// Serial holds the four serial digits carried by the frame.
	Serial string
	Mode   byte
	Speed  byte
}

// DecodeFrame parses and verifies a command frame.
func DecodeFrame(frame []byte) (Frame, error) {
	if len(frame) != frameLen {
		return Frame{}, &MalformedFrameError{Reason: "bad length", Frame: frame}
	}
	if frame[0] != frameStart || frame[frameLen-1] != frameEnd {
		return Frame{}, &MalformedFrameError{Reason: "bad markers", Frame: frame}
	}
	if crc := crc8ECO(frame[:frameCRCAt]); crc != frame[frameCRCAt] {
		return Frame{}, &MalformedFrameError{Reason: "checksum mismatch", Frame: frame}
	}
	return Frame{
		Serial: strings.ToUpper(hex.EncodeToString(frame[frameSerialAt : frameSerialAt+2])),
		Mode:   frame[frameModeAt],
		Speed:  frame[frameSpeedAt],
	}, nil
}

// DecodeFrameHex decodes a trama from its hex representation.
func DecodeFrameHex(trama string) (Frame, error) {
	raw, err := hex.DecodeString(trama)
	if err != nil {
		return Frame{}, &MalformedFrameError{Reason: "not hex: " + trama}
	}
	return DecodeFrame(raw)
}
