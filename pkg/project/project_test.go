package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMetadataDir(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		dir := t.TempDir()
		_, ok := FindMetadataDir(dir)
		assert.False(t, ok)
		assert.Equal(t, filepath.Join(dir, ".aidd"), MetadataDir(dir))
	})

	t.Run("legacy only", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".automaker"), 0o750))
		p, ok := FindMetadataDir(dir)
		assert.True(t, ok)
		assert.Equal(t, filepath.Join(dir, ".automaker"), p)
	})

	t.Run("precedence", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".autok"), 0o750))
		require.NoError(t, os.Mkdir(filepath.Join(dir, ".automaker"), 0o750))
		p, _ := FindMetadataDir(dir)
		assert.Equal(t, filepath.Join(dir, ".autok"), p)

		require.NoError(t, os.Mkdir(filepath.Join(dir, ".aidd"), 0o750))
		p, _ = FindMetadataDir(dir)
		assert.Equal(t, filepath.Join(dir, ".aidd"), p)
	})

	t.Run("file is not a directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".aidd"), []byte("x"), 0o600))
		_, ok := FindMetadataDir(dir)
		assert.False(t, ok)
	})
}

func TestEnsureMetadataDir(t *testing.T) {
	dir := t.TempDir()
	p, err := EnsureMetadataDir(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".aidd"), p)
	assert.DirExists(t, p)

	legacy := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(legacy, ".autok"), 0o750))
	p, err = EnsureMetadataDir(legacy)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(legacy, ".autok"), p)
	assert.NoDirExists(t, filepath.Join(legacy, ".aidd"))
}

func TestHasExistingContent(t *testing.T) {
	tests := []struct {
		name  string
		dirs  []string
		files []string
		want  bool
	}{
		{name: "empty", want: false},
		{name: "tracking and tool dirs only", dirs: []string{".aidd", ".git", "node_modules", "__pycache__", ".vscode", ".idea"}, want: false},
		{name: "hidden files only", files: []string{".DS_Store", ".env", ".gitignore"}, want: false},
		{name: "source file", files: []string{"main.go"}, want: true},
		{name: "source dir", dirs: []string{".git", "src"}, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, d := range tc.dirs {
				require.NoError(t, os.Mkdir(filepath.Join(dir, d), 0o750))
			}
			for _, f := range tc.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o600))
			}
			assert.Equal(t, tc.want, HasExistingContent(dir))
		})
	}

	t.Run("missing dir", func(t *testing.T) {
		assert.False(t, HasExistingContent(filepath.Join(t.TempDir(), "nope")))
	})
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	progress, content := Probe(dir)
	assert.False(t, progress)
	assert.False(t, content)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), nil, 0o600))
	progress, content = Probe(dir)
	assert.False(t, progress)
	assert.True(t, content)

	meta, err := EnsureMetadataDir(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(meta, FeatureListFile), []byte("[]"), 0o600))
	progress, _ = Probe(dir)
	assert.True(t, progress)
	assert.True(t, HasPriorProgress(meta))
}

func TestMetadataDir_LegacyLedger(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, ".automaker")
	require.NoError(t, os.Mkdir(legacy, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(legacy, FeatureListFile), []byte("[]"), 0o600))

	assert.Equal(t, legacy, MetadataDir(dir))
	progress, content := Probe(dir)
	assert.True(t, progress, "ledger in a legacy tracking dir counts")
	assert.False(t, content)
}

func TestCopySpec(t *testing.T) {
	t.Run("default spec", func(t *testing.T) {
		meta := t.TempDir()
		copied, err := CopySpec(meta, "")
		require.NoError(t, err)
		assert.True(t, copied)

		data, err := os.ReadFile(filepath.Join(meta, SpecFile))
		require.NoError(t, err)
		assert.Contains(t, string(data), "<project_specification>")
	})

	t.Run("custom spec", func(t *testing.T) {
		meta := t.TempDir()
		src := filepath.Join(t.TempDir(), "my_spec.txt")
		require.NoError(t, os.WriteFile(src, []byte("build a CLI"), 0o600))

		copied, err := CopySpec(meta, src)
		require.NoError(t, err)
		assert.True(t, copied)
		data, err := os.ReadFile(filepath.Join(meta, SpecFile))
		require.NoError(t, err)
		assert.Equal(t, "build a CLI", string(data))
	})

	t.Run("existing spec kept", func(t *testing.T) {
		meta := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(meta, SpecFile), []byte("old"), 0o600))
		copied, err := CopySpec(meta, "")
		require.NoError(t, err)
		assert.False(t, copied)
		data, err := os.ReadFile(filepath.Join(meta, SpecFile))
		require.NoError(t, err)
		assert.Equal(t, "old", string(data))
	})

	t.Run("missing source", func(t *testing.T) {
		_, err := CopySpec(t.TempDir(), "/nonexistent/spec.txt")
		require.Error(t, err)
	})
}
