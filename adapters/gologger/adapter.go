package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// DefaultLoggerName is used when a caller resolves without a name.
const DefaultLoggerName = "pids"

// ReconcileJobLoggerName names the logger handed to reconcile job runners.
const ReconcileJobLoggerName = DefaultLoggerName + ".reconcile.job"

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultLoggerName
	}
	return glog.Resolve(name, provider, logger)
}

// ResolveForJob resolves the glog logger and provider, then returns the
// equivalent go-job bridges so queue workers log through the same sink.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	var jobProvider job.LoggerProvider
	if resolvedProvider != nil {
		jobProvider = job.GoLoggerProvider(resolvedProvider)
	}
	var jobLogger job.Logger
	if resolvedLogger != nil {
		jobLogger = job.GoLogger(resolvedLogger)
	}
	return resolvedProvider, resolvedLogger, jobProvider, jobLogger
}

// ReconcileJobLogger returns the logger for reconcile job runners, taken from
// provider when one is configured.
func ReconcileJobLogger(provider glog.LoggerProvider, logger glog.Logger) glog.Logger {
	_, resolved := Resolve(ReconcileJobLoggerName, provider, logger)
	return glog.Ensure(resolved)
}
