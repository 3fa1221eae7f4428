package capsrv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOkBuildsSuccessEnvelope(t *testing.T) {
	data := []map[string]any{{"id": "acc-001"}, {"id": "acc-002"}}
	res := Ok("sales", data, []string{"id"})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, "sales", res.Source)
	assert.Equal(t, data, res.Data)
	assert.Equal(t, []string{"id"}, res.Columns)
	assert.Equal(t, data, res.SampleRows)
	assert.Empty(t, res.Error)
}

func TestOkTruncatesSampleRows(t *testing.T) {
	data := []map[string]any{{"id": "1"}, {"id": "2"}, {"id": "3"}, {"id": "4"}}
	res := Ok("sales", data, nil)

	assert.Equal(t, 4, res.RowCount)
	require.Len(t, res.SampleRows, maxSampleRows)
	assert.Equal(t, data[:maxSampleRows], res.SampleRows)
}

func TestErrBuildsFailureEnvelope(t *testing.T) {
	res := Err("graph", "SELECT * FROM accounts", "query matches blocked pattern")

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.RowCount)
	assert.Equal(t, "graph", res.Source)
	assert.Equal(t, "SELECT * FROM accounts", res.Query)
	assert.Equal(t, "query matches blocked pattern", res.Error)
	assert.Nil(t, res.Data)
}
