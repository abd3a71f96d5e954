package usage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadStats(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Stats
	}{
		{
			name:    "counts",
			content: `{"Button": 5, "Card": 3}`,
			want:    Stats{TotalInstances: 8, UniqueComponents: 2, ComponentUsage: map[string]int{"Button": 5, "Card": 3}},
		},
		{
			name:    "non-numeric values count as zero",
			content: `{"Button": 5, "Card": "n/a", "Grid": {"x": 1}, "Chip": "2"}`,
			want: Stats{TotalInstances: 7, UniqueComponents: 4,
				ComponentUsage: map[string]int{"Button": 5, "Card": 0, "Grid": 0, "Chip": 2}},
		},
		{
			name:    "strings are decimal only",
			content: `{"Button": "010", "Card": "0x10", "Chip": 2.9, "Grid": " 4 ", "Tab": "1e1", "List": "Inf"}`,
			want: Stats{TotalInstances: 27, UniqueComponents: 6,
				ComponentUsage: map[string]int{"Button": 10, "Card": 0, "Chip": 3, "Grid": 4, "Tab": 10, "List": 0}},
		},
		{
			name:    "empty object",
			content: `{}`,
			want:    Stats{ComponentUsage: map[string]int{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "total_stats.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			got, err := ReadStats(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadStats_MissingFile(t *testing.T) {
	got, err := ReadStats(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, Stats{ComponentUsage: map[string]int{}}, got)
	assert.NotNil(t, got.ComponentUsage)
}

func TestReadStats_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "total_stats.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Button": 5,`), 0600))

	_, err := ReadStats(path)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, path, parseErr.Path)
	assert.Contains(t, err.Error(), path)
}

func writeInstances(t *testing.T, root, app, mfe, component, content string) {
	t.Helper()
	dir := filepath.Join(root, perAppDir, app, mfe, component)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, instancesFile), []byte(content), 0600))
}

func TestReader(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, totalStatsFile), []byte(`{"Button": 2}`), 0600))
	writeInstances(t, root, "broker", "console", "Button", `[{"a":"src/a.tsx","c":[{"b":"label","d":"string","e":"Save"}]}]`)
	writeInstances(t, root, "broker", "settings", "Button", `[{"a":"src/b.tsx","c":[]}]`)
	writeInstances(t, root, "cloud", "home", "Card", `[{"a":"src/c.tsx","c":[]}]`)

	r := NewReader(root)
	assert.Equal(t, root, r.ReportRoot())

	t.Run("stats", func(t *testing.T) {
		st, err := r.Stats()
		require.NoError(t, err)
		assert.Equal(t, 2, st.TotalInstances)
		assert.Equal(t, 1, st.UniqueComponents)
	})

	t.Run("local instances", func(t *testing.T) {
		got, err := r.LocalInstances("Button")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "broker", got[0].Application)
		assert.Equal(t, "console", got[0].MFE)
		assert.Equal(t, "src/a.tsx", got[0].Instances[0].FilePath)
		assert.Equal(t, "Save", got[0].Instances[0].Props[0].Value)
		assert.Equal(t, "settings", got[1].MFE)
	})

	t.Run("unused component", func(t *testing.T) {
		got, err := r.LocalInstances("Grid")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "..", "a/b", `a\b`, "*", "C?rd", "[BC]*"} {
			_, err := r.LocalInstances(name)
			assert.Error(t, err, name)
		}
	})

	t.Run("glob characters do not match other components", func(t *testing.T) {
		got, err := r.LocalInstances("C?rd")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Contains(t, err.Error(), "invalid component name")
	})

	t.Run("malformed instances file", func(t *testing.T) {
		writeInstances(t, root, "cloud", "home", "Chip", `[{"a":`)
		_, err := r.LocalInstances("Chip")
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr))
		assert.Contains(t, parseErr.Path, "Chip")
	})

	assert.NoError(t, r.Close())
}

func TestReader_MissingReport(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "absent"))

	st, err := r.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.TotalInstances)

	got, err := r.LocalInstances("Button")
	require.NoError(t, err)
	assert.Empty(t, got)
}
