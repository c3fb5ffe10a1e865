package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checks(r *ValidationResult) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.Check)
	}
	return out
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), `app: myapp
cloud_code:
  backend:
    src: backend
    environment: python3.6
  Bad Name:
    src: missing
  plain:
    src: plain
  file:
    src: README
`)
	writeFile(t, filepath.Join(root, "backend", ".skyignore"), "*.pyc\n")
	writeFile(t, filepath.Join(root, "backend", "main.py"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "plain"), 0o755))
	writeFile(t, filepath.Join(root, "README"), "")

	p, err := LoadProject(root)
	require.NoError(t, err)

	r := Validate(p, ".skyignore")

	assert.Equal(t, "myapp", r.App)
	assert.False(t, r.Valid())
	assert.Equal(t, []string{
		"cloud_code.name.format",
		"cloud_code.src.missing",
		"cloud_code.src.not_dir",
		"cloud_code.environment.required",
		"cloud_code.ignore.missing",
	}, checks(r))
	assert.Equal(t, 2, r.Errors)
	assert.Equal(t, 2, r.Warnings)
	assert.Equal(t, 1, r.Infos)
}

func TestValidate_Clean(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), "app: myapp\ncloud_code:\n  backend:\n    src: .\n    environment: node6\n")
	writeFile(t, filepath.Join(root, ".skyignore"), "node_modules\n")

	p, err := LoadProject(root)
	require.NoError(t, err)

	r := Validate(p, ".skyignore")
	assert.True(t, r.Valid())
	assert.Empty(t, r.Findings)
}

func TestValidate_NoProject(t *testing.T) {
	r := Validate(&Project{Dir: t.TempDir()}, ".skyignore")

	assert.False(t, r.Valid())
	assert.Equal(t, []string{"project.file.missing"}, checks(r))
}

func TestValidate_Empty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectFile), "version: 1\n")

	p, err := LoadProject(root)
	require.NoError(t, err)

	r := Validate(p, ".skyignore")
	assert.Equal(t, []string{"project.app.required", "project.cloud_code.empty"}, checks(r))
}
