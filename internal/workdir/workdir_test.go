package workdir_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/alkime/dictate/internal/workdir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrep(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")

	p, err := workdir.Prep(root)
	require.NoError(t, err)

	assert.Equal(t, root, p.Root)
	assert.Equal(t, filepath.Join(root, "dictate.db"), p.DB)
	assert.DirExists(t, p.Sessions)
}

func TestRoot_Default(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root, err := workdir.Root("")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(root, filepath.Join("Documents", "Alkime", "Dictate")), root)
}
