package metrics

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLocationWrite(t *testing.T) {
	okBefore := testutil.ToFloat64(LocationWrites.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(LocationWrites.WithLabelValues("error"))

	RecordLocationWrite(time.Millisecond, nil)
	RecordLocationWrite(time.Millisecond, errors.New("disk full"))
	RecordLocationWrite(time.Millisecond, errors.New("disk full"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(LocationWrites.WithLabelValues("ok")))
	assert.Equal(t, errBefore+2, testutil.ToFloat64(LocationWrites.WithLabelValues("error")))
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/presence", "200"))

	RecordAPIRequest(http.MethodGet, "/api/presence", http.StatusOK, 3*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/presence", "200")))
}

func TestRecordDropped(t *testing.T) {
	before := testutil.ToFloat64(PresenceMessagesDropped.WithLabelValues("unbound"))
	RecordDropped("unbound")
	assert.Equal(t, before+1, testutil.ToFloat64(PresenceMessagesDropped.WithLabelValues("unbound")))
}
