package intelliclima

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeFrameHexKnownVectors(t *testing.T) {

	assert := assert.New(t)

	trama, err := EncodeFrameHex("06231964", 0x01, 0x02)
	assert.NoError(err)
	assert.Equal("0A00001964000E2F005000000102880D", trama, "full serial")

	trama, err = EncodeFrameHex("1964", 0x03, SpeedByteAuto)
	assert.NoError(err)
	assert.Equal("0A00001964000E2F005000000310700D", trama, "short serial zero-padded")

	trama, err = EncodeFrameHex("00180674", 0x02, 0x04)
	assert.NoError(err)
	assert.Equal("0A00000674000E2F0050000002046F0D", trama, "padded serial keeps last four digits")

	trama, err = EncodeFrameHex("180674", 0x00, 0x00)
	assert.NoError(err)
	assert.Equal("0A00000674000E2F005000000000720D", trama, "off frame")
}

func TestFrameRoundTrip(t *testing.T) {

	assert := assert.New(t)

	trama, err := EncodeFrameHex("06231964", 0x04, 0x01)
	assert.NoError(err)

	frame, err := DecodeFrameHex(trama)
	assert.NoError(err)
	assert.Equal("1964", frame.Serial)
	assert.Equal(byte(0x04), frame.Mode)
	assert.Equal(byte(0x01), frame.Speed)
}

func TestDecodeFrameRejectsCorruption(t *testing.T) {

	assert := assert.New(t)

	_, err := DecodeFrameHex("0A00001964000E2F005000000102890D")
	var mfe *MalformedFrameError
	assert.ErrorAs(err, &mfe, "checksum mismatch")

	_, err = DecodeFrameHex("0B00001964000E2F005000000102880D")
	assert.ErrorAs(err, &mfe, "bad start marker")

	_, err = DecodeFrameHex("0A0000196400")
	assert.ErrorAs(err, &mfe, "truncated frame")

	_, err = DecodeFrameHex("zz00001964000E2F005000000102880D")
	assert.ErrorAs(err, &mfe, "not hex")
}

func TestNormalizeSerial(t *testing.T) {

	assert := assert.New(t)

	s, err := NormalizeSerial("ECO-0623.1964")
	assert.NoError(err)
	assert.Equal("06231964", s, "non-digits stripped")

	s, err = NormalizeSerial("1964")
	assert.NoError(err)
	assert.Equal("00001964", s, "zero padded to eight digits")

	_, err = NormalizeSerial("")
	assert.Error(err, "empty serial")

	_, err = NormalizeSerial("123456789")
	assert.Error(err, "more than eight digits")
}

func TestNormalizeSpeed(t *testing.T) {

	assert := assert.New(t)

	for raw := 0; raw <= 4; raw++ {
		level, err := NormalizeSpeed(raw)
		assert.NoError(err)
		assert.Equal(raw, level)
	}

	level, err := NormalizeSpeed(17)
	assert.NoError(err)
	assert.Equal(2, level, "translated band maps down by offset")

	_, err = NormalizeSpeed(9)
	var use *UnrecognizedStateError
	assert.ErrorAs(err, &use, "gap between bands is rejected")

	_, err = NormalizeSpeed(-1)
	assert.ErrorAs(err, &use)
}

func TestNormalizeMode(t *testing.T) {

	assert := assert.New(t)

	mode, err := NormalizeMode(1)
	assert.NoError(err)
	assert.Equal(ModeOutdoorIntake, mode)

	mode, err = NormalizeMode(132)
	assert.NoError(err)
	assert.Equal(ModeAlternatingSensor, mode, "sensor-managed alternating is state-only")

	_, err = NormalizeMode(7)
	var use *UnrecognizedStateError
	assert.ErrorAs(err, &use)
}

func TestModeCommandByteAsymmetry(t *testing.T) {

	assert := assert.New(t)

	b, err := ModeCommandByte(ModeAlternatingSensor)
	assert.NoError(err)
	assert.Equal(byte(0x04), b, "preset commands as 4, never as the 132 runtime variant")

	b, err = ModeCommandByte(ModeAlternating45s)
	assert.NoError(err)
	assert.Equal(byte(0x03), b)

	_, err = ModeCommandByte(VentilationMode("boost"))
	var use *UnrecognizedStateError
	assert.ErrorAs(err, &use)
}

func TestSpeedHelpers(t *testing.T) {

	assert := assert.New(t)

	assert.False(IsOn(0))
	assert.True(IsOn(1))
	assert.InDelta(0.5, Percentage(2), 0.001)
	assert.InDelta(1.0, Percentage(4), 0.001)

	b, err := SpeedCommandByte(3)
	assert.NoError(err)
	assert.Equal(byte(0x03), b)

	_, err = SpeedCommandByte(5)
	assert.Error(err)
}
