package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIris(t *testing.T) {
	ds, err := LoadIris()
	require.NoError(t, err)

	rows, cols := ds.Shape()
	assert.Equal(t, 150, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, ds.ClassNames)
	assert.Equal(t, []int{50, 50, 50}, ds.ClassCounts())
	assert.Equal(t, "petal_width", ds.FeatureNames[3])

	assert.Equal(t, 5.1, ds.X.At(0, 0))
	assert.Equal(t, 0, ds.Y[0])
	assert.Equal(t, 2, ds.Y[149])
}

func TestLoadIrisIsIndependent(t *testing.T) {
	a, err := LoadIris()
	require.NoError(t, err)

	a.X.Set(0, 0, -1)
	a.Y[0] = 2

	b, err := LoadIris()
	require.NoError(t, err)
	assert.Equal(t, 5.1, b.X.At(0, 0))
	assert.Equal(t, 0, b.Y[0])
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("empty", strings.NewReader("a,label\n"))
	assert.Error(t, err)

	_, err = Parse("bad", strings.NewReader("a,label\nx,yes\n"))
	assert.Error(t, err)

	_, err = Parse("short", strings.NewReader("a,b,label\n1,yes\n"))
	assert.Error(t, err)

	_, err = Parse("nolabel", strings.NewReader("a,label\n1, \n"))
	assert.Error(t, err)
}
