package adminapi

// ErrorResponse is the standard error envelope returned by every admin
// endpoint on failure.
type ErrorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Retryable    bool   `json:"retryable"`
}

const (
	ErrorTypeInvalidArgument = "invalid_argument"
	ErrorTypeNotFound        = "not_found"
	ErrorTypeInternal        = "internal"
)

// PackageReferenceRequest is the request body for creating or updating a
// package reference.
type PackageReferenceRequest struct {
	Provider      string            `json:"provider"`
	Configuration map[string]string `json:"configuration,omitempty"`
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
