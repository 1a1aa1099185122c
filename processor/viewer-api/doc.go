// Package viewerapi serves an OpenSpec tree to browsers.
//
// The API answers read-only JSON queries from the current storage snapshot
// under /api, streams refresh notifications over a websocket at /ws and as
// server-sent events at /api/events, exposes Prometheus metrics at /metrics
// and serves the frontend build with a single-page-app fallback.
//
// The Service keeps the snapshot current. It performs the initial load,
// turns debounced watcher events into refresh passes and forwards every
// published snapshot to the hub and to external notifiers.
package viewerapi
