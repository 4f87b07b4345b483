package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldGroupID   = "group_id"
	FieldCycle     = "upload_cycle"
	FieldFile      = "file"
	FieldDir       = "dir"
	FieldURL       = "url"
	FieldOldState  = "old_state"
	FieldNewState  = "new_state"
	FieldMessageID = "message_id"
)
