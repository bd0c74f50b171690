// Package server implements the core HTTP and WebSocket relay functionality
// for RoomChat: room membership tracking, message fan-out, the bounded
// ingest pipeline, and timeout-guarded history retrieval.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, the message pipelines, routing, and HTTP handlers
// to keep the codebase maintainable and testable as the project grows.
package server
