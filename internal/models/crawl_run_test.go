package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlRun_CompleteOnce(t *testing.T) {
	start := time.Date(2024, 12, 2, 6, 0, 0, 0, time.UTC)
	run := NewCrawlRun("run_1", "tgt_1", CrawlKindDeals, start)
	assert.Equal(t, RunStatusStarted, run.Status)
	assert.False(t, run.IsTerminal())

	end := start.Add(90 * time.Second)
	require.NoError(t, run.Complete(true, CrawlRunStats{ItemsFound: 3}, nil, end))

	assert.Equal(t, RunStatusSuccess, run.Status)
	assert.Equal(t, int64(90000), run.DurationMs)
	require.NotNil(t, run.CompletedAt)
	assert.Nil(t, run.ErrorDetails)

	err := run.Complete(false, CrawlRunStats{}, []string{"late"}, end.Add(time.Second))
	assert.Error(t, err)
	assert.Equal(t, RunStatusSuccess, run.Status)
}

func TestCrawlRun_ErrorDetailsCapped(t *testing.T) {
	start := time.Now()
	run := NewCrawlRun("run_2", "tgt_1", CrawlKindProducts, start)

	errs := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		errs = append(errs, fmt.Sprintf("error %d", i))
	}

	require.NoError(t, run.Complete(false, CrawlRunStats{Errors: len(errs)}, errs, start))
	assert.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorDetails)
	assert.Equal(t, "error 0", run.ErrorDetails.Message)
	assert.Len(t, run.ErrorDetails.FailedURLs, MaxFailedURLs)
	assert.Equal(t, "error 1", run.ErrorDetails.FailedURLs[0])
}

func TestTarget_RecordCrawl(t *testing.T) {
	at := time.Date(2024, 12, 2, 6, 0, 0, 0, time.UTC)
	target := &Target{ID: "tgt_1"}

	target.RecordCrawl(CrawlKindDeals, false, "boom", at)
	assert.Equal(t, CrawlStatusFailed, target.LastCrawl.Status)
	assert.Equal(t, "boom", target.LastCrawl.ErrorMessage)
	require.NotNil(t, target.LastCrawledAt(CrawlKindDeals))
	assert.Nil(t, target.LastCrawledAt(CrawlKindProducts))

	target.RecordCrawl(CrawlKindProducts, true, "", at)
	assert.Equal(t, CrawlStatusSuccess, target.LastCrawl.Status)
	assert.Empty(t, target.LastCrawl.ErrorMessage)
	assert.Equal(t, at, *target.LastCrawledAt(CrawlKindProducts))
}

func TestParseCrawlKind(t *testing.T) {
	kind, err := ParseCrawlKind("deals")
	require.NoError(t, err)
	assert.Equal(t, CrawlKindDeals, kind)

	_, err = ParseCrawlKind("flyers")
	assert.Error(t, err)
}

func TestCrawlConfig_Delay(t *testing.T) {
	assert.Equal(t, 3*time.Second, CrawlConfig{}.Delay(3*time.Second))
	assert.Equal(t, 500*time.Millisecond, CrawlConfig{DelayMs: 500}.Delay(3*time.Second))
}
