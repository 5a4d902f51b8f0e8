package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestManifest_Encode(t *testing.T) {
	m := NewManifest(EntityModels)
	m.OperationID = "op-1"
	m.Operation = "export-models"
	m.Time = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.Duration = 1540 * time.Millisecond
	m.Stages = "Production"
	m.Record("m1", nil)
	m.Record("m2", errors.New("boom"))
	versions := m.Child(EntityVersions)
	versions.Record("m1/1", nil)

	phase := NewManifest(EntityExperiments)
	phase.Duration = 2 * time.Second
	phase.Record("1", nil)
	m.Phases = []*Manifest{phase}

	data, err := m.Encode()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))

	doc := gjson.ParseBytes(data)
	assert.Equal(t, "op-1", doc.Get("info.operation_id").String())
	assert.Equal(t, "2024-05-01T12:00:00Z", doc.Get("info.export_time").String())
	assert.Equal(t, int64(2), doc.Get("info.total_models").Int())
	assert.Equal(t, int64(1), doc.Get("info.ok_models").Int())
	assert.Equal(t, int64(1), doc.Get("info.failed_models").Int())
	assert.Equal(t, int64(1), doc.Get("info.ok_versions").Int())
	assert.Equal(t, 1.5, doc.Get("info.duration").Float())
	assert.Equal(t, int64(1), doc.Get("info.experiments.ok_experiments").Int())
	assert.Equal(t, "Production", doc.Get("stages").String())
	assert.Equal(t, `["m2"]`, doc.Get("failed_models").Raw)
	assert.Equal(t, `["m1/1"]`, doc.Get("ok_versions").Raw)
	assert.Equal(t, `[]`, doc.Get("failed_versions").Raw)

	var keys []string
	doc.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	assert.Equal(t, []string{"info", "stages", "notebook_formats", "ok_models", "failed_models", "ok_versions", "failed_versions"}, keys)
	assert.True(t, json.Valid(data))
}

func TestManifest_Child(t *testing.T) {
	m := NewManifest(EntityExperiments)
	a := m.Child(EntityRuns)
	b := m.Child(EntityRuns)
	assert.Same(t, a, b)
	assert.Len(t, m.Children, 1)
}
