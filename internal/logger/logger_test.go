package logger

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel(""))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("verbose"))
}

func TestJSONOutsideLocal(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Environment: "production", Level: "info", Output: &buf})
	log.Component("session").Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "session", line["component"])
}

func TestWithRequestUsesHeaderID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOptions(Options{Environment: "production", Output: &buf})
	r := httptest.NewRequest("GET", "/api/v1/session", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	log.WithRequest(r).Info("req")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "abc-123", line["req_id"])
	assert.Equal(t, "/api/v1/session", line["path"])
}

func TestWithRequestGeneratesID(t *testing.T) {
	log := Discard()
	e := log.WithRequest(httptest.NewRequest("GET", "/", nil))
	id, _ := e.Data["req_id"].(string)
	assert.Len(t, id, 36)
}

func TestWithError(t *testing.T) {
	log := Discard()
	assert.Same(t, log.Entry, log.WithError(nil))
	assert.Equal(t, "boom", log.WithError(errors.New("boom")).Data["error"])
}
