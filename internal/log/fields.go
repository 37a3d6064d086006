package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldRunID     = "run_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// QC fields
	FieldReads    = "reads"
	FieldBases    = "bases"
	FieldChannels = "channels"
	FieldBarcodes = "barcodes"

	// Path fields
	FieldPath       = "path"
	FieldSourceGlob = "source_glob"
)
