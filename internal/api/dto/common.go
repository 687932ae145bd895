package dto

// DataResponse wraps every successful payload.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse carries messages and, for validation failures, a message
// per JSON field.
type ErrorResponse struct {
	Errors  []string          `json:"errors"`
	Details map[string]string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
