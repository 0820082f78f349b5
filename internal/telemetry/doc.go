// Package telemetry turns greenhouse sensor messages into periodic readings.
//
// Sensors publish one quantity per message: air temperature, air humidity,
// soil humidity for one bed, or a camera frame. A periodic reading row holds
// all of them, so every new row carries the other quantities forward from
// the session's latest reading.
//
// The Ingestor never opens transactions. Each method receives a Store bound
// to the caller's transaction, which lets the bridge commit the reading
// together with the topic health update, or roll both back.
package telemetry
