package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/testutil"
)

func TestRecordingLogger(t *testing.T) {
	logger := testutil.NewRecordingLogger()
	logger.Info("document loaded", logging.Source("a.txt"))

	entries := logger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0].Level)
	v, ok := entries[0].Field(logging.KeySource)
	assert.True(t, ok)
	assert.Equal(t, "a.txt", v)

	logger.Reset()
	assert.Empty(t, logger.Entries())
}

func TestRecordingLogger_ChildrenShareEntries(t *testing.T) {
	root := testutil.NewRecordingLogger()
	child := root.Named("pipeline").Named("extract").With(logging.RunID("r-1"))
	child.Warn("slow document", logging.Int("ms", 900))

	e, ok := root.Find("warn", "slow document")
	require.True(t, ok)
	assert.Equal(t, "pipeline.extract", e.Logger)
	run, _ := e.Field(logging.KeyRunID)
	assert.Equal(t, "r-1", run)
	assert.False(t, root.Has("info", "slow document"))
}

func TestSampleDocuments(t *testing.T) {
	docs := testutil.SampleDocuments()
	require.Len(t, docs, 3)
	for _, d := range docs {
		assert.NotEmpty(t, d.Source)
		assert.NotNil(t, d.Date)
	}
}

//Personal.AI order the ending
