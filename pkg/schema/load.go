package schema

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// fileDefinition is the YAML form of a schema.
type fileDefinition struct {
	Name   string            `yaml:"name"`
	Fields []fieldDefinition `yaml:"fields"`
}

type fieldDefinition struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Count     int    `yaml:"count,omitempty"`
	ID        bool   `yaml:"id,omitempty"`
	Relation  bool   `yaml:"relation,omitempty"`
	NonInline bool   `yaml:"noninline,omitempty"`
}

// Parse builds a schema from its YAML definition.
func Parse(data []byte) (*Schema, error) {
	var def fileDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, "failed to parse schema")
	}
	if def.Name == "" {
		return nil, errors.New("schema has no name")
	}

	fields := make([]Field, 0, len(def.Fields))
	for _, fd := range def.Fields {
		typ, err := ParseType(fd.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "schema %s field %s", def.Name, fd.Name)
		}
		fields = append(fields, Field{
			Name:      fd.Name,
			Type:      typ,
			Count:     fd.Count,
			ID:        fd.ID,
			Relation:  fd.Relation,
			NonInline: fd.NonInline,
		})
	}

	return New(def.Name, fields)
}

// LoadFile reads a schema from a YAML file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read schema file")
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return s, nil
}

// LoadDir reads every *.yaml and *.yml schema in dir, keyed by lower-case
// table name.
func LoadDir(dir string) (map[string]*Schema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read schema directory")
	}

	schemas := make(map[string]*Schema)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		s, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(s.Name())
		if _, dup := schemas[key]; dup {
			return nil, errors.Newf("duplicate schema for table %s", s.Name())
		}
		schemas[key] = s
	}
	return schemas, nil
}
