package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountAndExpose(t *testing.T) {
	m := NewMetrics()
	m.Sessions.WithLabelValues("deployed").Inc()
	m.Sessions.WithLabelValues("deployed").Inc()
	m.Strategies.WithLabelValues("default").Inc()
	m.ObserveStage(StageOracle, time.Now().Add(-10*time.Millisecond))

	if got := testutil.ToFloat64(m.Sessions.WithLabelValues("deployed")); got != 2 {
		t.Errorf("sessions{deployed} = %v, want 2", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`masp_sessions_total{outcome="deployed"} 2`,
		`masp_strategies_total{origin="default"} 1`,
		`masp_stage_duration_seconds_count{stage="oracle"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsRegistriesAreIndependent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.Validations.WithLabelValues("valid").Inc()
	if got := testutil.ToFloat64(b.Validations.WithLabelValues("valid")); got != 0 {
		t.Errorf("second registry saw %v validations", got)
	}
}
