package logging

// Standard attribute keys shared by the client and the daemon.
const (
	FieldComponent    = "component"
	FieldEventType    = "event_type"
	FieldErrorHint    = "error_hint"
	FieldImpact       = "impact"
	FieldInvocationID = "invocation_id"
	FieldSessionID    = "session_id"
	FieldSocket       = "socket"
	FieldDaemon       = "daemon"
	FieldPID          = "pid"
)
