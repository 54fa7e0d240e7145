package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the daemon.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Plugin attributes
	PluginIDKey   = "plugin.id"
	PluginModeKey = "plugin.mode"

	// Instance attributes
	InstanceIDKey   = "instance.id"
	InstanceNameKey = "instance.name"

	// Schedule attributes
	ScheduleDayKey    = "schedule.day"
	ScheduleHourKey   = "schedule.hour"
	ScheduleOriginKey = "schedule.origin"

	// Render attributes
	RenderOutcomeKey   = "render.outcome"
	RenderDurationKey  = "render.duration_ms"
	RenderFromCacheKey = "render.from_cache"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ExecutionAttributes creates span attributes for a plugin execution.
func ExecutionAttributes(pluginID, mode, instanceID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PluginIDKey, pluginID),
		attribute.String(PluginModeKey, mode),
		attribute.String(InstanceIDKey, instanceID),
	}
}

// ResolutionAttributes creates span attributes for a schedule resolution.
func ResolutionAttributes(day, hour int, origin string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ScheduleDayKey, day),
		attribute.Int(ScheduleHourKey, hour),
		attribute.String(ScheduleOriginKey, origin),
	}
}

// RenderAttributes creates span attributes for a render result.
func RenderAttributes(outcome string, durationMS int64, fromCache bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RenderOutcomeKey, outcome),
		attribute.Int64(RenderDurationKey, durationMS),
		attribute.Bool(RenderFromCacheKey, fromCache),
	}
}

// ErrorAttributes creates span attributes for an error.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errType),
	}
}
