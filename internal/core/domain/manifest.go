package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

const ManifestFile = "manifest.json"

// Entity names used as manifest key suffixes.
const (
	EntityExperiments = "experiments"
	EntityRuns        = "runs"
	EntityModels      = "models"
	EntityVersions    = "versions"
)

// Outcome partitions the identifiers of one entity kind into ok and failed.
type Outcome struct {
	Entity string
	OK     []string
	Failed []string
}

func (o *Outcome) Record(id string, err error) {
	if err != nil {
		o.Failed = append(o.Failed, id)
		return
	}
	o.OK = append(o.OK, id)
}

func (o *Outcome) Total() int {
	return len(o.OK) + len(o.Failed)
}

// Manifest is the summary record of one bulk operation. It is built once all
// units have finished and is not modified after being written.
type Manifest struct {
	Outcome

	OperationID     string
	Operation       string
	TrackingURI     string
	Time            time.Time
	Duration        time.Duration
	Stages          string
	NotebookFormats string

	// Children records sub-unit outcomes: runs of experiments, versions of models.
	Children []*Outcome
	// Phases summarises earlier phases of the same operation.
	Phases []*Manifest
}

func NewManifest(entity string) *Manifest {
	return &Manifest{Outcome: Outcome{Entity: entity, OK: []string{}, Failed: []string{}}}
}

// Child returns the outcome for a sub-unit entity, creating it on first use.
func (m *Manifest) Child(entity string) *Outcome {
	for _, c := range m.Children {
		if c.Entity == entity {
			return c
		}
	}
	c := &Outcome{Entity: entity, OK: []string{}, Failed: []string{}}
	m.Children = append(m.Children, c)
	return c
}

// DurationSeconds is the wall-clock duration rounded to one decimal.
func (m *Manifest) DurationSeconds() float64 {
	return math.Round(m.Duration.Seconds()*10) / 10
}

func (m *Manifest) info() *orderedObject {
	info := &orderedObject{}
	if m.OperationID != "" {
		info.add("operation_id", m.OperationID)
	}
	if m.Operation != "" {
		info.add("operation", m.Operation)
	}
	if m.TrackingURI != "" {
		info.add("tracking_uri", m.TrackingURI)
	}
	info.add("export_time", m.Time.UTC().Format(time.RFC3339))
	info.add("total_"+m.Entity, m.Total())
	info.add("ok_"+m.Entity, len(m.OK))
	info.add("failed_"+m.Entity, len(m.Failed))
	for _, c := range m.Children {
		info.add("total_"+c.Entity, c.Total())
		info.add("ok_"+c.Entity, len(c.OK))
		info.add("failed_"+c.Entity, len(c.Failed))
	}
	info.add("duration", m.DurationSeconds())
	for _, p := range m.Phases {
		phase := &orderedObject{}
		phase.add("total_"+p.Entity, p.Total())
		phase.add("ok_"+p.Entity, len(p.OK))
		phase.add("failed_"+p.Entity, len(p.Failed))
		phase.add("duration", p.DurationSeconds())
		info.add(p.Entity, phase)
	}
	return info
}

// MarshalJSON renders the manifest with entity specific keys, e.g.
// total_models / ok_models / failed_models.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	obj := &orderedObject{}
	obj.add("info", m.info())
	obj.add("stages", m.Stages)
	obj.add("notebook_formats", m.NotebookFormats)
	obj.add("ok_"+m.Entity, m.OK)
	obj.add("failed_"+m.Entity, m.Failed)
	for _, c := range m.Children {
		obj.add("ok_"+c.Entity, c.OK)
		obj.add("failed_"+c.Entity, c.Failed)
	}
	return obj.MarshalJSON()
}

// Encode renders the manifest as indented JSON with a trailing newline.
func (m *Manifest) Encode() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

type orderedObject struct {
	keys   []string
	values []interface{}
}

func (o *orderedObject) add(key string, value interface{}) {
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
}

func (o *orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
