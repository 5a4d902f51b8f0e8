package services

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"

	"mlflow-migrate/internal/core/domain"
)

// Bulk operation names recorded in manifests.
const (
	OpExportExperiments = "export-experiments"
	OpExportModels      = "export-models"
	OpExportAll         = "export-all"
	OpImportExperiments = "import-experiments"
	OpImportModels      = "import-models"
	OpImportAll         = "import-all"
)

// operation carries the identity and timing of one bulk run.
type operation struct {
	id          string
	name        string
	trackingURI string
	stages      string
	notebooks   string
	start       time.Time
	log         *log.Entry
}

func newOperation(name, trackingURI string) *operation {
	id := uuid.NewString()
	return &operation{
		id:          id,
		name:        name,
		trackingURI: trackingURI,
		start:       time.Now(),
		log:         log.WithFields(log.Fields{"operation_id": id, "operation": name}),
	}
}

// phase starts a manifest for one phase of the operation.
func (o *operation) phase(entity string) *domain.Manifest {
	m := domain.NewManifest(entity)
	m.OperationID = o.id
	m.Operation = o.name
	m.TrackingURI = o.trackingURI
	m.Stages = o.stages
	m.NotebookFormats = o.notebooks
	m.Time = time.Now()
	return m
}

// done stamps the phase duration.
func (o *operation) done(m *domain.Manifest) {
	m.Duration = time.Since(m.Time)
	o.log.WithFields(log.Fields{
		"total_" + m.Entity:  m.Total(),
		"ok_" + m.Entity:     len(m.OK),
		"failed_" + m.Entity: len(m.Failed),
		"duration":           m.DurationSeconds(),
	}).Info("phase finished")
}

// root builds the top-level manifest of a two phase operation from its last
// phase, with earlier phases summarised under info.
func (o *operation) root(last *domain.Manifest, earlier ...*domain.Manifest) *domain.Manifest {
	m := *last
	m.Time = o.start
	m.Duration = time.Since(o.start)
	m.Phases = earlier
	return &m
}

// dedupe drops repeated identifiers and keeps first-seen order.
func dedupe(ids []string) []string {
	seen := sets.New[string]()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen.Has(id) {
			continue
		}
		seen.Insert(id)
		out = append(out, id)
	}
	return out
}
