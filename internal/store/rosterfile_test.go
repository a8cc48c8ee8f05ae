package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRosterFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRosterFile(t *testing.T) {
	path := writeRosterFile(t, `
entries:
  - name: "José O'Brien"
    role: Auditor
  - name: Jonathan Smith
`)

	entries, err := LoadRosterFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "José O'Brien", entries[0].FullName)
	assert.Equal(t, "jose obrien", entries[0].NameKey)
	assert.Equal(t, "Auditor", entries[0].Role)

	assert.Equal(t, "Jonathan Smith", entries[1].FullName)
	assert.Equal(t, "jonathan smith", entries[1].NameKey)
	assert.Equal(t, "Student", entries[1].Role, "missing role defaults to Student")
}

func TestLoadRosterFileRejectsNamelessEntry(t *testing.T) {
	path := writeRosterFile(t, "entries:\n  - role: Student\n")

	_, err := LoadRosterFile(path)
	require.Error(t, err)
}

func TestLoadRosterFileMissingFile(t *testing.T) {
	_, err := LoadRosterFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadRosterFileBadYAML(t *testing.T) {
	path := writeRosterFile(t, "entries: [not: valid: yaml\n")

	_, err := LoadRosterFile(path)
	require.Error(t, err)
}
