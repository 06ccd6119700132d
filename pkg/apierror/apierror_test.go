package apierror

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToStatusCode(t *testing.T) {
	tests := map[string]int{
		CodeNotFound:        http.StatusNotFound,
		CodeBadRequest:      http.StatusBadRequest,
		CodeUnauthorized:    http.StatusUnauthorized,
		CodeForbidden:       http.StatusForbidden,
		CodePayloadTooLarge: http.StatusRequestEntityTooLarge,
		CodeInternal:        http.StatusInternalServerError,
		"teapot":            http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, ToStatusCode(code), code)
	}
}
