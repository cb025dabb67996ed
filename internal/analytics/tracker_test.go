package analytics

import (
	"testing"

	"Flort/internal/feature"
	"Flort/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrackCountsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New()
	tr := NewTracker(feature.FromFlags(nil), m, zap.New(core))

	assert.True(t, tr.Track(MessageRecorded, map[string]string{"sender": "user"}))
	assert.True(t, tr.Track(ConversationCreated, nil))

	entries := logs.FilterMessage("event tracked").All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "user", entries[0].ContextMap()["sender"])
	}

	n, err := testutil.GatherAndCount(m.Registry(), "flort_analytics_events_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTrackRespectsFlags(t *testing.T) {
	off := NewTracker(feature.FromFlags(map[feature.Flag]bool{feature.AnalyticsEnabled: false}), nil, nil)
	assert.False(t, off.Track(MessageRecorded, nil))
	assert.False(t, off.Track(ConversationCreated, nil))

	noConv := NewTracker(feature.FromFlags(map[feature.Flag]bool{feature.AnalyticsConversations: false}), nil, nil)
	assert.True(t, noConv.Track(MessageRecorded, nil))
	assert.False(t, noConv.Track(ConversationEscalated, nil))
}
