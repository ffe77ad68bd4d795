// Package api implements the HTTP REST API and WebSocket server for the
// device inventory service.
//
// This package provides:
//   - REST endpoints for device listing, statistics and the issue/return lifecycle
//   - Account registration, login and logout with JWT bearer tokens
//   - WebSocket hub broadcasting device events to connected dashboards
//   - Middleware stack (request ID, logging, metrics, recovery, CORS, rate limiting)
//   - TLS support for production deployments
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// # Errors
//
// Every failure is a JSON body of the form
//
//	{"status":400,"code":"validation_error","message":"invalid device data",
//	 "errors":[{"field":"deviceId","message":"is required"}]}
//
// Domain errors are mapped to status codes at this boundary; the device and
// auth packages know nothing about HTTP.
//
// # Security
//
// Every /api route except health, register, login and the WebSocket upgrade
// requires "Authorization: Bearer <token>". WebSocket connections use
// single-use tickets so tokens never appear in URLs.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
