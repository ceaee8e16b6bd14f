package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolvePrecedence(t *testing.T) {
	direct := &recordingLogger{id: "direct"}
	fromProvider := &recordingLogger{id: "provider"}

	cases := []struct {
		name     string
		provider glog.LoggerProvider
		logger   glog.Logger
		want     string
	}{
		{name: "provider wins", provider: &namingProvider{logger: fromProvider}, logger: direct, want: "provider"},
		{name: "logger without provider", logger: direct, want: "direct"},
		{name: "nop fallback", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolvedProvider, resolved := Resolve("pids", tc.provider, tc.logger)
			if resolved == nil {
				t.Fatalf("expected a logger")
			}
			if tc.want != "" && resolvedProvider == nil {
				t.Fatalf("expected a provider alongside %q", tc.want)
			}
			got, _ := resolved.(*recordingLogger)
			switch {
			case tc.want == "" && got != nil:
				t.Fatalf("expected nop logger, got %q", got.id)
			case tc.want != "" && (got == nil || got.id != tc.want):
				t.Fatalf("expected %q logger, got %#v", tc.want, resolved)
			}
		})
	}
}

func TestResolveForJob_BridgesToProviderSink(t *testing.T) {
	sink := &recordingLogger{id: "provider"}
	_, _, jobProvider, jobLogger := ResolveForJob("pids", &namingProvider{logger: sink}, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job bridges, got %v %v", jobProvider, jobLogger)
	}

	jobProvider.GetLogger(ReconcileJobLoggerName).Info("reconcile page advanced", "config_id", "article_ark")
	if len(sink.entries) != 1 {
		t.Fatalf("expected one bridged entry, got %d", len(sink.entries))
	}
	entry := sink.entries[0]
	if entry.msg != "reconcile page advanced" || len(entry.args) != 2 || entry.args[1] != "article_ark" {
		t.Fatalf("unexpected bridged entry %#v", entry)
	}
}

func TestResolveDefaultsName(t *testing.T) {
	provider := &namingProvider{}
	Resolve("  ", provider, nil)
	if provider.last != DefaultLoggerName {
		t.Fatalf("expected default logger name %q, got %q", DefaultLoggerName, provider.last)
	}

	if ReconcileJobLogger(provider, nil) == nil {
		t.Fatalf("expected reconcile job logger")
	}
	if provider.last != ReconcileJobLoggerName {
		t.Fatalf("expected reconcile job logger name %q, got %q", ReconcileJobLoggerName, provider.last)
	}

	if ReconcileJobLogger(nil, nil) == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

type namingProvider struct {
	logger glog.Logger
	last   string
}

func (p *namingProvider) GetLogger(name string) glog.Logger {
	p.last = name
	if p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type logEntry struct {
	msg  string
	args []any
}

type recordingLogger struct {
	id      string
	entries []logEntry
}

func (l *recordingLogger) record(msg string, args []any) {
	l.entries = append(l.entries, logEntry{msg: msg, args: append([]any(nil), args...)})
}

func (l *recordingLogger) Trace(msg string, args ...any)           { l.record(msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any)           { l.record(msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)            { l.record(msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)            { l.record(msg, args) }
func (l *recordingLogger) Error(msg string, args ...any)           { l.record(msg, args) }
func (l *recordingLogger) Fatal(msg string, args ...any)           { l.record(msg, args) }
func (l *recordingLogger) WithContext(context.Context) glog.Logger { return l }

var (
	_ glog.Logger         = (*recordingLogger)(nil)
	_ glog.LoggerProvider = (*namingProvider)(nil)
)
