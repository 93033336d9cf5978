package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordAPIRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordAPIRequest("GET", 200, 10*time.Millisecond)
	m.RecordAPIRequest("GET", 200, 20*time.Millisecond)
	m.RecordAPIRequest("PUT", 401, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("GET 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("PUT", "401")); got != 1 {
		t.Errorf("PUT 401 = %v, want 1", got)
	}
}

func TestMetrics_SessionTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSessionTransition("authenticated")
	m.RecordSessionTransition("anonymous")
	m.RecordSessionTransition("anonymous")

	if got := testutil.ToFloat64(m.sessionStates.WithLabelValues("anonymous")); got != 2 {
		t.Errorf("anonymous = %v, want 2", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordAPIRequest("GET", 200, time.Millisecond)
	m.RecordAPIRetry("GET")
	m.RecordSessionTransition("loading")
	m.RecordConsoleError("NOT_FOUND")
}

func TestTokenField_Truncates(t *testing.T) {
	f := TokenField("eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.payload.sig")
	if f.String != "eyJhbGciOiJIUzI1NiIs..." {
		t.Errorf("TokenField = %q", f.String)
	}
	if TokenField("").String != "none" {
		t.Errorf("empty token should log as none")
	}
}
