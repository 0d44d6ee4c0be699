package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCaptureStageMetricsLabelsStatus(t *testing.T) {
	CaptureStageMetrics("parse", 50*time.Millisecond, nil)
	CaptureStageMetrics("parse", 50*time.Millisecond, errors.New("provider down"))

	//success and failure land in separate children
	assert.GreaterOrEqual(t, testutil.CollectAndCount(stageDuration), 2)
}

func TestCaptureUpstreamMetricsObserves(t *testing.T) {
	CaptureUpstreamMetrics("qdrant", 5*time.Millisecond)
	CaptureUpstreamMetrics("llamaparse", 5*time.Millisecond)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(upstreamLatency), 2)
}
