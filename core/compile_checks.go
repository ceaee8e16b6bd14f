package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ TriggerEvaluator = (*RuleTriggerEvaluator)(nil)
	_ ObjectSource     = (*MemoryObjectSource)(nil)
	_ ConfigSource     = (*MemoryConfigSource)(nil)
	_ FieldSchema      = (*MemoryConfigSource)(nil)
	_ TargetObject     = (*MemoryObject)(nil)
	_ MetricsRecorder  = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
