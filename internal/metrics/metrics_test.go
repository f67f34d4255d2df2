package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSourceFetch(t *testing.T) {
	before := testutil.ToFloat64(sourceFetchTotal.WithLabelValues("metrics-test", "error"))
	RecordSourceFetch("metrics-test", 0, errors.New("boom"))
	RecordSourceFetch("metrics-test", 12, nil)

	if got := testutil.ToFloat64(sourceFetchTotal.WithLabelValues("metrics-test", "error")); got != before+1 {
		t.Fatalf("expected error counter %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(sourceFetchTotal.WithLabelValues("metrics-test", "success")); got < 1 {
		t.Fatalf("expected success counter to be incremented, got %v", got)
	}
}

func TestRecordRunSetsLastSuccess(t *testing.T) {
	RecordRun("succeeded", 1762635600)
	if got := testutil.ToFloat64(lastSuccess); got != 1762635600 {
		t.Fatalf("unexpected last success %v", got)
	}

	RecordRun("exhausted", 1)
	if got := testutil.ToFloat64(lastSuccess); got != 1762635600 {
		t.Fatalf("exhausted run must not move last success, got %v", got)
	}
}

func TestRecordDeliveryModes(t *testing.T) {
	before := testutil.ToFloat64(deliveriesTotal.WithLabelValues("failure", "individual"))
	RecordDelivery(false, true)
	if got := testutil.ToFloat64(deliveriesTotal.WithLabelValues("failure", "individual")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
