package log

// Field names shared by the session, the room and the relay.
const (
	FieldService   = "service"
	FieldComponent = "component"

	FieldSessionID   = "session_id"
	FieldUserID      = "user_id"
	FieldCounselorID = "counselor_id"
	FieldSenderType  = "sender_type"

	FieldURL         = "url"
	FieldDriver      = "driver"
	FieldState       = "state"
	FieldDestination = "destination"
	FieldFrame       = "frame"
	FieldRemoteAddr  = "remote_addr"

	// HTTP round trips, both directions.
	FieldMethod  = "method"
	FieldPath    = "path"
	FieldStatus  = "status"
	FieldLatency = "latency_ms"
)
