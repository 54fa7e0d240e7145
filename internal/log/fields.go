package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID  = "request_id"
	FieldPluginID   = "plugin_id"
	FieldInstanceID = "instance_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Schedule fields
	FieldDay    = "day"
	FieldHour   = "hour"
	FieldOrigin = "origin"

	// Path fields
	FieldPath = "path"
)
