// Package api provides the admin HTTP REST API for the infoscreen bridge.
//
// It exposes the device catalogue, history queries, command dispatch and
// customer provisioning management to operator tooling.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// All endpoints except the health check require a Bearer JWT signed with
// the configured secret.
package api
