package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerAdapter_RoutesThroughEntry(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	adapter := NewBadgerAdapter(logger.WithField("component", "cache"))
	adapter.Errorf("compaction failed: %s", "disk full")
	adapter.Warningf("slow write: %dms", 250)
	adapter.Infof("value log GC ran")
	adapter.Debugf("level %d tables: %d", 0, 3)

	entries := hook.AllEntries()
	require.Len(t, entries, 4)
	assert.Equal(t, logrus.ErrorLevel, entries[0].Level)
	assert.Equal(t, "compaction failed: disk full", entries[0].Message)
	assert.Equal(t, "cache", entries[0].Data["component"])
	assert.Equal(t, logrus.DebugLevel, entries[3].Level)
}
