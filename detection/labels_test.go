package detection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLabels(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadClassTable(t *testing.T) {
	t.Parallel()

	table, err := LoadClassTable(writeLabels(t, "person\nbicycle\nsports ball\n\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, "sports ball", table.Name(2))
	assert.Equal(t, "class_7", table.Name(7))

	id, err := table.Lookup("Sports_Ball")
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestClassTable_UnderscoredLabels(t *testing.T) {
	t.Parallel()

	table, err := NewClassTable([]string{"person", "traffic_light"})
	require.NoError(t, err)
	assert.Equal(t, "traffic_light", table.Name(1))

	for _, name := range []string{"traffic_light", "traffic light", "Traffic Light"} {
		id, err := table.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, 1, id, name)
	}
}

func TestLoadClassTable_KeepsInnerBlankLines(t *testing.T) {
	t.Parallel()

	table, err := LoadClassTable(writeLabels(t, "a\n\nc\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	id, err := table.Lookup("c")
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestLoadClassTable_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadClassTable(filepath.Join(t.TempDir(), "nope.txt"))
		assert.Error(t, err)
	})
	t.Run("empty file", func(t *testing.T) {
		_, err := LoadClassTable(writeLabels(t, "\n\n"))
		assert.Error(t, err)
	})
}

func TestClassTable_LookupUnknown(t *testing.T) {
	t.Parallel()

	table, err := NewClassTable([]string{"cup", "bottle"})
	require.NoError(t, err)

	_, err = table.Lookup("unicorn")
	assert.True(t, errors.Is(err, ErrUnknownClass))
}

func TestClassTable_CheckCount(t *testing.T) {
	t.Parallel()

	table, err := NewClassTable([]string{"cup", "bottle"})
	require.NoError(t, err)

	assert.NoError(t, table.CheckCount(2))
	assert.ErrorIs(t, table.CheckCount(80), ErrClassCountMismatch)
}
