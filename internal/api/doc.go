// Package api provides the HTTP REST API of netport: scan submission,
// job polling, report export and websocket progress streaming. The
// OpenAPI document is served under /swagger/.
//
// @title netport API
// @version 1.0
// @description Submit TCP connect scans of a single host, poll their progress, stream it over a WebSocket and export the finished reports as JSON or CSV.
// @description Most endpoints require an API key in the X-API-Key header when authentication is enabled. Health and liveness are always public.
//
// @license.name MIT
//
// @host localhost:5000
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication
//
//go:generate swag init -g doc.go -d ./,./handlers,../jobs,../scanning -o ../../docs/swagger --outputTypes go --parseInternal
package api
