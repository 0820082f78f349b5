// Package influxdb mirrors greenhouse telemetry into InfluxDB v2.
//
// The mirror is optional. SQLite remains the system of record; InfluxDB
// receives a copy of every committed periodic reading and device status for
// dashboards and long-range queries.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without the mirror
//	}
//	defer client.Close()
//
//	client.WriteReading(sessionID, cropID, 22.0, 55.0, 42.0, false, recordedAt)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according to
// batch_size and flush_interval, and failures are reported through the
// SetOnError callback.
package influxdb
