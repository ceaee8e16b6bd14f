// Package providers holds the protocol adapters for the supported PID
// backends: ezid for EZID's colon-delimited text protocol and handle for the
// Handle.net JSON REST API. devkit carries fakes and conformance checks shared
// by their tests.
package providers
