package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunMapping_RewriteSource(t *testing.T) {
	rm := RunMapping{
		SrcRunID:       "src1",
		DstRunID:       "dst9",
		SrcArtifactURI: "s3://old/1/src1/artifacts",
		DstArtifactURI: "mlflow-artifacts:/4/dst9/artifacts",
	}

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"runs uri", "runs:/src1/model", "runs:/dst9/model"},
		{"artifact uri", "s3://old/1/src1/artifacts/model", "mlflow-artifacts:/4/dst9/artifacts/model"},
		{"unrelated", "s3://elsewhere/model", "s3://elsewhere/model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rm.RewriteSource(tt.source))
		})
	}
}

func TestMergeRunMappings(t *testing.T) {
	m := MergeRunMappings(
		[]RunMapping{{SrcRunID: "a", DstRunID: "A"}},
		nil,
		[]RunMapping{{SrcRunID: "b", DstRunID: "B"}, {SrcRunID: "c", DstRunID: "C"}},
	)
	assert.Len(t, m, 3)
	assert.Equal(t, "B", m["b"].DstRunID)
}

func TestEntityError(t *testing.T) {
	assert.Nil(t, NewEntityError(KindRun, "r1", nil))

	err := NewEntityError(KindVersion, "m1/2", ErrRunMappingMissing)
	assert.ErrorIs(t, err, ErrRunMappingMissing)
	assert.Equal(t, `model version "m1/2": backing run was not imported`, err.Error())

	var ee *EntityError
	assert.True(t, errors.As(err, &ee))
	assert.Equal(t, "m1/2", ee.ID)
	assert.False(t, IsFatal(err))
	assert.True(t, IsFatal(&FatalError{Op: "write manifest", Err: errors.New("disk full")}))
}
