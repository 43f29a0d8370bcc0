package sink

import (
	"fmt"

	"github.com/aquamon-pt/aquamon/pkg/api/v1/meter"
)

// Home Assistant state classes.
const (
	// StateClassMeasurement is a value at a point in time.
	StateClassMeasurement = "measurement"
	// StateClassTotal is an amount that can reset, like a daily bucket.
	StateClassTotal = "total"
	// StateClassTotalIncreasing is a counter that only grows.
	StateClassTotalIncreasing = "total_increasing"
)

// Sensor describes one published sensor. Field names the key in the state
// payload the consumer should template out.
type Sensor struct {
	Key         string
	Name        string
	Icon        string
	Unit        string
	DeviceClass string
	StateClass  string
	Field       string
}

// Sensors is the fixed set published per meter.
var Sensors = []Sensor{
	{Key: "latest_reading", Name: "Latest Reading", Icon: "mdi:water", Unit: "L", DeviceClass: "water", StateClass: StateClassTotalIncreasing, Field: "latestReading"},
	{Key: "daily_consumption", Name: "Daily Consumption", Icon: "mdi:water", Unit: "L", DeviceClass: "water", StateClass: StateClassTotal, Field: "dailyTotal"},
	{Key: "weekly_consumption", Name: "Weekly Consumption", Icon: "mdi:water-outline", Unit: "L", DeviceClass: "water", StateClass: StateClassTotal, Field: "weeklyTotal"},
	{Key: "monthly_consumption", Name: "Monthly Consumption", Icon: "mdi:water-circle", Unit: "L", DeviceClass: "water", StateClass: StateClassTotal, Field: "monthlyTotal"},
	{Key: "cumulative_total", Name: "Cumulative Total", Icon: "mdi:water-plus", Unit: "L", DeviceClass: "water", StateClass: StateClassTotalIncreasing, Field: "cumulativeTotal"},
}

func StateTopic(prefix, number string) string {
	return fmt.Sprintf("%s/%s/state", prefix, number)
}

func AvailabilityTopic(prefix, number string) string {
	return fmt.Sprintf("%s/%s/availability", prefix, number)
}

func DiscoveryTopic(discoveryPrefix, number, key string) string {
	return fmt.Sprintf("%s/sensor/aquamon_%s/%s/config", discoveryPrefix, number, key)
}

// DiscoveryConfig is the Home Assistant MQTT discovery payload for one
// sensor.
type DiscoveryConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	AvailabilityTopic string `json:"availability_topic"`
	Unit              string `json:"unit_of_measurement"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	ValueTemplate     string `json:"value_template"`
	Icon              string `json:"icon,omitempty"`
	Device            Device `json:"device"`
}

// Device groups the sensors under one device in Home Assistant.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

func Discovery(m *meter.Meter, s Sensor, prefix string) DiscoveryConfig {
	return DiscoveryConfig{
		Name:              s.Name,
		UniqueID:          fmt.Sprintf("aquamon_%s_%s", m.Number, s.Key),
		StateTopic:        StateTopic(prefix, m.Number),
		AvailabilityTopic: AvailabilityTopic(prefix, m.Number),
		Unit:              s.Unit,
		DeviceClass:       s.DeviceClass,
		StateClass:        s.StateClass,
		ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", s.Field),
		Icon:              s.Icon,
		Device: Device{
			Identifiers:  []string{"aquamon_" + m.Number},
			Name:         m.DisplayName(),
			Manufacturer: "Águas de Coimbra",
			Model:        "Water Meter",
		},
	}
}
