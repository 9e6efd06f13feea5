package sysinfo

import (
	"encoding/json"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	info := Collect()
	require.NotNil(t, info)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Greater(t, info.GoroutineCount, 0)
}

func TestHandler(t *testing.T) {
	w := httptest.NewRecorder()
	Handler(w, httptest.NewRequest("GET", "/api/user/system_info", nil))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var info SystemInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, runtime.GOOS, info.OS)
}
