package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveRemoteRequest(t *testing.T) {
	m := New()

	m.ObserveRemoteRequest("GET", "/lists/", 200, 0.05)
	m.ObserveRemoteRequest("GET", "/lists/", 200, 0.07)
	m.ObserveRemoteRequest("POST", "/tasks/", 422, 0.01)

	got := testutil.ToFloat64(m.RemoteRequestsTotal.WithLabelValues("GET", "/lists/", "200"))
	if got != 2 {
		t.Errorf("expected 2 GET /lists/ requests, got %v", got)
	}
	got = testutil.ToFloat64(m.RemoteRequestsTotal.WithLabelValues("POST", "/tasks/", "422"))
	if got != 1 {
		t.Errorf("expected 1 POST /tasks/ request, got %v", got)
	}
}

func TestCountersViaGather(t *testing.T) {
	m := New()
	m.IncAuthFailure("login")
	m.IncStaleDiscard("collection")

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	af, ok := byName["teamtask_auth_failures_total"]
	if !ok {
		t.Fatal("auth failure metric not gathered")
	}
	if v := af.GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("expected 1 auth failure, got %v", v)
	}

	sd, ok := byName["teamtask_stale_responses_discarded_total"]
	if !ok {
		t.Fatal("stale discard metric not gathered")
	}
	if v := sd.GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("expected 1 stale discard, got %v", v)
	}
}

func TestNilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	m.ObserveRemoteRequest("GET", "/lists/", 200, 0.01)
	m.IncAuthFailure("login")
	m.IncStaleDiscard("collection")
	if m.Registry() != nil {
		t.Error("nil metrics should have nil registry")
	}
}
