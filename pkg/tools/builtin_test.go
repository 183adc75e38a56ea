package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	r, err := NewRegistry(zerolog.Nop(), Builtin(opts)...)
	require.NoError(t, err)
	return r
}

func TestBuiltin(t *testing.T) {
	r := builtinRegistry(t, Options{})
	assert.Equal(t, 3, r.Len())

	access, ok := r.Lookup("give_access_code")
	require.True(t, ok)
	assert.False(t, access.RequiresPermission)

	list, ok := r.Lookup("list_files")
	require.True(t, ok)
	assert.True(t, list.RequiresPermission)

	read, ok := r.Lookup("read_file")
	require.True(t, ok)
	assert.True(t, read.RequiresPermission)
}

func TestGiveAccessCode(t *testing.T) {
	r := builtinRegistry(t, Options{})
	def, _ := r.Lookup("give_access_code")

	output, ok := r.Invoke(context.Background(), def, json.RawMessage(`{"door_number":3}`))
	assert.True(t, ok)
	assert.Equal(t, "6", output)
}

func TestListFiles(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "sub"), 0755))

	r := builtinRegistry(t, Options{})
	def, _ := r.Lookup("list_files")

	input, _ := json.Marshal(map[string]string{"path": tmpDir})
	output, ok := r.Invoke(context.Background(), def, input)
	require.True(t, ok)
	assert.Contains(t, output, "notes.txt")
	assert.Contains(t, output, "sub/")

	t.Run("missing directory", func(t *testing.T) {
		input, _ := json.Marshal(map[string]string{"path": filepath.Join(tmpDir, "nope")})
		output, ok := r.Invoke(context.Background(), def, input)
		assert.False(t, ok)
		assert.Equal(t, GenericFailure, output)
	})
}

func TestReadFile(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello world"), 0644))

	r := builtinRegistry(t, Options{})
	def, _ := r.Lookup("read_file")

	input, _ := json.Marshal(map[string]string{"path": file})
	output, ok := r.Invoke(context.Background(), def, input)
	require.True(t, ok)
	assert.Equal(t, "hello world", output)

	t.Run("missing file", func(t *testing.T) {
		input, _ := json.Marshal(map[string]string{"path": filepath.Join(tmpDir, "nope.txt")})
		output, ok := r.Invoke(context.Background(), def, input)
		assert.False(t, ok)
		assert.Equal(t, GenericFailure, output)
	})
}

func TestWorkspaceRoot(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "inside.txt"), []byte("ok"), 0644))

	r := builtinRegistry(t, Options{WorkspaceRoot: tmpDir})
	def, _ := r.Lookup("read_file")

	t.Run("relative path resolves inside root", func(t *testing.T) {
		output, ok := r.Invoke(context.Background(), def, json.RawMessage(`{"path":"inside.txt"}`))
		assert.True(t, ok)
		assert.Equal(t, "ok", output)
	})

	t.Run("escape is refused", func(t *testing.T) {
		output, ok := r.Invoke(context.Background(), def, json.RawMessage(`{"path":"../outside.txt"}`))
		assert.False(t, ok)
		assert.Equal(t, GenericFailure, output)
	})
}

func TestResolvePath(t *testing.T) {
	t.Run("unconfined", func(t *testing.T) {
		path, err := resolvePath(Options{}, "/etc/hosts")
		require.NoError(t, err)
		assert.Equal(t, "/etc/hosts", path)
	})

	t.Run("root itself", func(t *testing.T) {
		path, err := resolvePath(Options{WorkspaceRoot: "/work"}, "/work")
		require.NoError(t, err)
		assert.Equal(t, "/work", path)
	})

	t.Run("absolute outside root", func(t *testing.T) {
		_, err := resolvePath(Options{WorkspaceRoot: "/work"}, "/etc/hosts")
		assert.Error(t, err)
	})
}
