package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/pkg/requestcontext"
)

func TestWithClock_StampsRequest(t *testing.T) {
	fixed := time.Date(2025, 1, 10, 9, 30, 0, 0, time.FixedZone("SAST", 2*60*60))
	var got time.Time
	var ok bool
	h := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = requestcontext.Now(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok)
	assert.True(t, fixed.Equal(got))
	assert.Equal(t, time.UTC, got.Location())
}
