package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCompletion(t *testing.T) {
	before := testutil.ToFloat64(completionRequests.WithLabelValues("recipe", OutcomeSuccess))
	RecordCompletion("recipe", OutcomeSuccess, time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(completionRequests.WithLabelValues("recipe", OutcomeSuccess)))
}

func TestRecordReaped_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(sessionsReaped)
	RecordReaped(0)
	RecordReaped(3)
	assert.Equal(t, before+3, testutil.ToFloat64(sessionsReaped))
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(queueDepth))
}
