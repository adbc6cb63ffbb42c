package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/project"
)

// projectExt is the extension project files are saved with. Projects lists
// .yml files too so hand-written definitions are picked up either way.
const projectExt = ".yaml"

// LoadProject reads a single project definition file.
func LoadProject(path string) (project.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return project.Project{}, core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "reading project file "+path)
	}
	return ParseProject(data)
}

// ParseProject decodes a project definition from YAML bytes and validates
// it. A project that parses is safe to run as-is.
func ParseProject(data []byte) (project.Project, error) {
	var p project.Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return project.Project{}, core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "parsing project")
	}
	if err := p.Validate(); err != nil {
		return project.Project{}, err
	}
	return p, nil
}

// SaveProject writes a project definition into dir as <name>.yaml, creating
// the directory if needed, and returns the written path. Invalid projects
// are rejected before anything touches the filesystem.
func SaveProject(dir string, p project.Project) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return "", core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "encoding project "+p.Name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "creating project dir "+dir)
	}

	path := filepath.Join(dir, p.Name+projectExt)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "writing project file "+path)
	}
	return path, nil
}

// Projects lists the names of the project definitions stored in dir, in
// sorted order. A missing directory yields an empty list.
func Projects(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "listing project dir "+dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// DeleteProject removes a named project definition from dir.
func DeleteProject(dir, name string) error {
	if err := os.Remove(filepath.Join(dir, name+projectExt)); err != nil {
		return core.NewErrorWithCause(core.ErrorTypeConfigInvalid, err, "deleting project "+name)
	}
	return nil
}
