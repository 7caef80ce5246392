package httputils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)

	sr.WriteHeader(http.StatusUnauthorized)
	sr.WriteHeader(http.StatusOK)
	n, err := sr.Write([]byte("denied"))

	assert.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, http.StatusUnauthorized, sr.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 6, sr.BytesWritten)
}

func TestStatusRecorderDefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)

	_, _ = sr.Write([]byte("ok"))

	assert.Equal(t, http.StatusOK, sr.StatusCode)
	assert.Same(t, rec, sr.Unwrap())
}
