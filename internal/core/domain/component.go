package domain

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, duration, total_increasing
	DeviceClass       string // temperature, humidity
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type GenericClimate struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Modes    []string
	MinTemp  float64
	MaxTemp  float64
	TempStep float64
	Icon     string
}

type GenericFan struct {
	Device     Device
	Id         string
	Name       string
	UniqueId   string
	Presets    []string
	SpeedRange int
	Icon       string
}
