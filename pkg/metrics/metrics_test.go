package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDispatch(t *testing.T) {
	ok := testutil.ToFloat64(DispatchTotal.WithLabelValues("metrics_test", "success"))
	failed := testutil.ToFloat64(DispatchTotal.WithLabelValues("metrics_test", "error"))

	RecordDispatch("metrics_test", nil)
	RecordDispatch("metrics_test", errors.New("boom"))
	RecordDispatch("metrics_test", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(DispatchTotal.WithLabelValues("metrics_test", "success")))
	assert.Equal(t, failed+2, testutil.ToFloat64(DispatchTotal.WithLabelValues("metrics_test", "error")))
}

func TestRecordIngest(t *testing.T) {
	before := testutil.ToFloat64(IngestEventsTotal.WithLabelValues("metrics_test"))
	RecordIngest("metrics_test", 0.01)
	assert.Equal(t, before+1, testutil.ToFloat64(IngestEventsTotal.WithLabelValues("metrics_test")))
}
