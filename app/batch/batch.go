// Package batch loads job requests from yaml file. Schema for editors is generated from File.
package batch

//go:generate go run ./internal/schema schema.json

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/umputun/jobtail/app/job"
)

// File is the top-level structure of batch yaml
type File struct {
	Jobs []Entry `yaml:"jobs" json:"jobs" jsonschema:"required,minItems=1,description=jobs to start in order"`
}

// Entry is a single job in batch file
type Entry struct {
	Name    string `yaml:"name" json:"name" jsonschema:"required,minLength=1,description=package name"`
	Version string `yaml:"version" json:"version" jsonschema:"required,minLength=1,description=package version"`
}

// Load reads batch file and returns validated requests in file order
func Load(path string) ([]job.Request, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from cli
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file %s: %w", path, err)
	}
	reqs, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("batch file %s: %w", path, err)
	}
	return reqs, nil
}

// Parse decodes batch yaml. Unknown fields rejected to catch typos like "ver".
func Parse(r io.Reader) ([]job.Request, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("at least one job is required")
		}
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if len(f.Jobs) == 0 {
		return nil, errors.New("at least one job is required")
	}

	res := make([]job.Request, 0, len(f.Jobs))
	for i, e := range f.Jobs {
		req := job.Request{Name: e.Name, Version: e.Version}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		res = append(res, req)
	}
	return res, nil
}

// Schema returns JSON schema of the batch file
func Schema() *jsonschema.Schema {
	schema := jsonschema.Reflect(&File{})
	schema.Title = "Jobtail Batch File Schema"
	schema.Description = "Schema for jobtail batch yaml, list of packages to start"
	schema.Version = "1.0.0"
	return schema
}
