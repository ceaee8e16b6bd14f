// Package core contains the persistent identifier domain contracts, the
// lifecycle engine (mint, update, delete) and the verification reconciler.
// Protocol adapters and transports depend on this package; core must not
// depend on provider-specific or transport-specific code.
package core
