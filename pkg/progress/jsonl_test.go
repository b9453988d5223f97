package progress_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/s3xcopy/pkg/copier"
	"github.com/3leaps/s3xcopy/pkg/gateway"
	"github.com/3leaps/s3xcopy/pkg/progress"
)

func TestJSONLObserver_EmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	obs := progress.NewJSONLObserver(&buf, "job-1", 0)

	obs.OnStateChange(copier.StateInit)
	obs.OnProbeComplete(1024, 0, 512)
	obs.OnWindowComplete(0, 4, 100.0, 0.0)
	obs.OnPartComplete(gateway.PartRecord{PartNumber: 1, ETag: "etag-1", Size: 512})

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 4)

	var rec progress.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, progress.TypeState, rec.Type)
	assert.Equal(t, "job-1", rec.JobID)

	require.NoError(t, json.Unmarshal([]byte(lines[3]), &rec))
	assert.Equal(t, progress.TypePart, rec.Type)
	var part progress.PartRecord
	require.NoError(t, json.Unmarshal(rec.Data, &part))
	assert.EqualValues(t, 1, part.PartNumber)
}

func TestJSONLObserver_RateLimitsPartEvents(t *testing.T) {
	var buf bytes.Buffer
	obs := progress.NewJSONLObserver(&buf, "job-1", 1) // 1/sec, burst 2

	for i := int32(1); i <= 10; i++ {
		obs.OnPartComplete(gateway.PartRecord{PartNumber: i, Size: 1})
	}

	scanner := bufio.NewScanner(&buf)
	count := 0
	for scanner.Scan() {
		count++
	}
	assert.Less(t, count, 10, "rate limiter must drop some part events under burst")
}

func TestJSONLObserver_ImplementsCopierObserver(t *testing.T) {
	var _ copier.Observer = progress.NewJSONLObserver(&bytes.Buffer{}, "job-1", 0)
}
