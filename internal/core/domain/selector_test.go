package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in   string
		want Selector
	}{
		{"all", AllSelector()},
		{" ALL ", AllSelector()},
		{"sklearn*", PrefixSelector("sklearn")},
		{"*", PrefixSelector("")},
		{"1,2, my-exp ,", ListSelector("1", "2", "my-exp")},
		{"iris", ListSelector("iris")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSelector(tt.in))
		})
	}
}

func TestSelector_String(t *testing.T) {
	assert.Equal(t, "all", AllSelector().String())
	assert.Equal(t, "p*", PrefixSelector("p").String())
	assert.Equal(t, "a,b", ListSelector("a", "b").String())
}

func TestParseStages(t *testing.T) {
	f, err := ParseStages("production, Staging,,")
	require.NoError(t, err)
	assert.True(t, f.Matches("Production"))
	assert.True(t, f.Matches("staging"))
	assert.False(t, f.Matches("None"))
	assert.False(t, f.Matches("bogus"))
	assert.Equal(t, "Production,Staging", f.String())

	_, err = ParseStages("prod")
	assert.ErrorIs(t, err, ErrInvalidStage)

	empty, err := ParseStages("")
	require.NoError(t, err)
	assert.True(t, empty.Matches("Archived"))
	assert.Equal(t, "", empty.String())
}

func TestSortVersions(t *testing.T) {
	versions := []*ModelVersion{{Version: "10"}, {Version: "2"}, {Version: "1"}}
	SortVersions(versions)
	assert.Equal(t, "1", versions[0].Version)
	assert.Equal(t, "2", versions[1].Version)
	assert.Equal(t, "10", versions[2].Version)
}
