package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CallsActive.Inc()
	m.CallOutcomes.WithLabelValues("promise").Inc()

	if got := testutil.ToFloat64(m.CallsActive); got != 1 {
		t.Errorf("CallsActive = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CallOutcomes.WithLabelValues("promise")); got != 1 {
		t.Errorf("CallOutcomes{promise} = %v, want 1", got)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount() = %d, %v", n, err)
	}
}

func TestRecordServiceCall(t *testing.T) {
	before := testutil.ToFloat64(Default.ServiceErrors.WithLabelValues("stt-test"))
	RecordServiceCall("stt-test", false, 120*time.Millisecond)
	RecordServiceCall("stt-test", true, 80*time.Millisecond)
	if got := testutil.ToFloat64(Default.ServiceErrors.WithLabelValues("stt-test")); got != before+1 {
		t.Errorf("ServiceErrors = %v, want %v", got, before+1)
	}
}

func TestRecordRequest_StatusClass(t *testing.T) {
	RecordRequest("/health", 503)
	if got := testutil.ToFloat64(Default.HTTPRequests.WithLabelValues("/health", "5xx")); got < 1 {
		t.Errorf("HTTPRequests{5xx} = %v", got)
	}
}
