package http

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the envelope every /api endpoint answers with.
type APIResponse struct {
	Status  string `json:"status"`
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	apiStatusOK    = "ok"
	apiStatusError = "error"
)

// APIResponseBuilder assembles a JSON response with a fluent API.
type APIResponseBuilder struct {
	statusCode int
	body       APIResponse
	headers    map[string]string
}

// NewAPIResponse starts a 200 "ok" response.
func NewAPIResponse() *APIResponseBuilder {
	return &APIResponseBuilder{
		statusCode: http.StatusOK,
		body:       APIResponse{Status: apiStatusOK},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *APIResponseBuilder) Status(code int) *APIResponseBuilder {
	b.statusCode = code
	return b
}

// ID records the identifier of the created resource.
func (b *APIResponseBuilder) ID(id int64) *APIResponseBuilder {
	b.body.ID = id
	return b
}

// Error turns the response into an error envelope carrying message.
func (b *APIResponseBuilder) Error(message string) *APIResponseBuilder {
	b.body.Status = apiStatusError
	b.body.Message = message
	return b
}

// Header adds a custom header to the response.
func (b *APIResponseBuilder) Header(name, value string) *APIResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response.
func (b *APIResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// apiError is the common error envelope.
func apiError(statusCode int, message string) *APIResponseBuilder {
	return NewAPIResponse().Status(statusCode).Error(message)
}
