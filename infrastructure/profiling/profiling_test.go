package profiling_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/insights/infrastructure/profiling"
)

func TestDisabledProfilersAreNil(t *testing.T) {
	t.Parallel()

	var cfg profiling.Config
	cfg.SetDefaults()

	assert.Nil(t, profiling.StartPprof(cfg, logger.NewNop()))

	p, err := profiling.StartPyroscope("insights", "test", cfg, logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, p.Stop())
}

func TestHandler_ServesIndex(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	profiling.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutine")
}

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	var cfg profiling.Config
	cfg.SetDefaults()
	assert.Equal(t, "6060", cfg.PprofPort)
	assert.Equal(t, "http://pyroscope:4040", cfg.PyroscopeURL)
	assert.Equal(t, "development", cfg.Environment)
}
