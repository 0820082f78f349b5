package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the mirror.
const (
	measurementReadings = "estufa_readings"
	measurementDevices  = "estufa_devices"
)

// WriteReading mirrors one periodic reading row.
//
// Session and crop become tags so dashboards can group by either.
// The write is non-blocking; points are batched and sent asynchronously.
//
// Parameters:
//   - sessionID: Cultivation session the reading belongs to
//   - cropID: Crop grown in that session
//   - temperature, airHumidity, soilHumidity: Merged sensor values
//   - exhaustOn: Whether the exhaust fan was running
//   - at: Time the reading was recorded
//
// Example:
//
//	client.WriteReading(7, 3, 22.0, 55.0, 42.0, false, time.Now())
func (c *Client) WriteReading(sessionID, cropID int64, temperature, airHumidity, soilHumidity float64, exhaustOn bool, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementReadings,
		map[string]string{
			"session_id": strconv.FormatInt(sessionID, 10),
			"crop_id":    strconv.FormatInt(cropID, 10),
		},
		map[string]any{
			"temperature":   temperature,
			"air_humidity":  airHumidity,
			"soil_humidity": soilHumidity,
			"exhaust_on":    exhaustOn,
		},
		at,
	)
	c.writeAPI.WritePoint(point)
}

// WriteDeviceStatus mirrors a reported actuator status.
//
// Parameters:
//   - deviceClass: Stored class name (e.g., "irrigacao")
//   - status: Status text as reported by the controller
//   - sessionID: Optional session; nil is written without the session tag
//   - at: Time the status was recorded
func (c *Client) WriteDeviceStatus(deviceClass, status string, sessionID *int64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{"device_class": deviceClass}
	if sessionID != nil {
		tags["session_id"] = strconv.FormatInt(*sessionID, 10)
	}

	point := write.NewPoint(
		measurementDevices,
		tags,
		map[string]any{"status": status},
		at,
	)
	c.writeAPI.WritePoint(point)
}
