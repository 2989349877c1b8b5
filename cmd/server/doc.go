// Command server runs the tracer service: span ingestion via in-process
// instrumentation, Prometheus metrics, and the HTTP/WebSocket
// introspection API.
//
// Usage:
//
//	server [-port 8600]
//
// Configuration is read from environment variables (see internal/config);
// the -port flag overrides PORT.
package main
