// Package api implements the HTTP API and WebSocket feed of Estufa Core.
//
// This package provides:
//   - Broker link status and manual device commands
//   - Device status history and current status per class and session
//   - Recent sensor readings and alerts
//   - A WebSocket hub relaying bridge events to live dashboards
//   - Prometheus metrics at /metrics
//
// # Security
//
// Every /api/v1 route except /health requires an HS256 bearer token issued
// by the greenhouse web tier. The token's access level gates each route;
// see auth.HasPermission. Browsers cannot set headers on a WebSocket
// handshake, so /api/v1/ws takes the token from the "token" query parameter.
//
// # Graceful Degradation
//
// The server runs without a broker. Reads and WebSocket connections work;
// commands fail with 503 until the link is up.
//
// Responses keep the envelope used by the web tier: {"success": bool, ...},
// with "message" on failure.
package api
