package errors

// Entity construction and identity.
const (
	CodeLogicalNameOverride = "LOGICAL_NAME_OVERRIDE"
	CodeLogicalNameRequired = "LOGICAL_NAME_REQUIRED"
	CodeIDAlreadySet        = "ENTITY_ID_ALREADY_SET"
)

// Property access. These are reported as diagnostics, not returned, except
// for lookup mismatches.
const (
	CodePropertyNotFound    = "PROPERTY_NOT_FOUND"
	CodePropertyNotReadable = "PROPERTY_NOT_READABLE"
	CodePropertyReadOnly    = "PROPERTY_READ_ONLY"
	CodeLookupTypeMismatch  = "LOOKUP_TYPE_MISMATCH"
)

// Metadata retrieval and parsing.
const (
	CodeMetadataMalformed = "METADATA_MALFORMED"
	CodeMetadataNotFound  = "METADATA_NOT_FOUND"
	CodeMetadataFetch     = "METADATA_FETCH_FAILED"
)

// Validation.
const (
	CodeMandatoryMissing    = "MANDATORY_FIELDS_MISSING"
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
)

// Catalogs.
const (
	CodeOptionSetNotFound = "OPTION_SET_NOT_FOUND"
	CodeKindNotFound      = "KIND_NOT_FOUND"
)

// ErrInvalidRequestFieldf creates a bad request error for an unusable request field.
func ErrInvalidRequestFieldf(fieldName string) *AppError {
	return BadRequest(CodeInvalidRequestField, "request contains invalid field: "+fieldName).
		WithParams(map[string]interface{}{"field": fieldName})
}

// ErrMandatoryMissingf creates a 422 error listing the missing mandatory fields.
func ErrMandatoryMissingf(entity string, fields []FieldError) *AppError {
	return Unprocessable(CodeMandatoryMissing, "mandatory fields missing on "+entity).
		WithParams(map[string]interface{}{"entity": entity}).
		WithFieldErrors(fields)
}
