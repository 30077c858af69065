// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/providers lists providers with their last sync time.
//   - POST /v1/providers/{name}/sync queues a sync; ?wait=true runs it inline
//     and returns the run report.
//   - GET /v1/tasks reports the dispatcher backlog.
package api
