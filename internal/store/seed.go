package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/opgraph/internal/ir"
)

// Dataset is a YAML description of projects, runs and their logged data.
//
//	projects:
//	  - name: mnist
//	    runs:
//	      - id: r1
//	        name: baseline
//	        summary: {loss: 0.12}
//	        history:
//	          - {step: 0, loss: 0.9}
//	        files:
//	          - path: notes.txt
//	            content: hello
//	          - path: metrics.json
//	            table:
//	              columns: [step, loss]
//	              data: [[0, 0.9], [1, 0.5]]
type Dataset struct {
	Projects []ProjectData `yaml:"projects"`
}

// ProjectData is one project in a Dataset. ID defaults to Name.
type ProjectData struct {
	ID   string    `yaml:"id,omitempty"`
	Name string    `yaml:"name"`
	Runs []RunData `yaml:"runs"`
}

// RunData is one run in a Dataset.
type RunData struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Summary any        `yaml:"summary,omitempty"`
	History []any      `yaml:"history,omitempty"`
	Files   []FileData `yaml:"files,omitempty"`
}

// FileData is a logged file. Exactly one of Content and Table is set.
type FileData struct {
	Path    string     `yaml:"path"`
	Content string     `yaml:"content,omitempty"`
	Table   *TableData `yaml:"table,omitempty"`
}

// TableData is table file content in column/row-major form.
type TableData struct {
	Columns []string `yaml:"columns"`
	Data    [][]any  `yaml:"data"`
}

// LoadDataset reads a Dataset from a YAML file.
func LoadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset: %w", err)
	}
	return ParseDataset(data)
}

// ParseDataset decodes a Dataset from YAML.
func ParseDataset(data []byte) (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("parse dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, fmt.Errorf("parse dataset: %w", err)
	}
	return ds, nil
}

// Validate checks that every project has a name, every run an id, and no
// file sets both content and a table.
func (ds Dataset) Validate() error {
	for i, p := range ds.Projects {
		if p.Name == "" {
			return fmt.Errorf("project %d has no name", i)
		}
		for j, r := range p.Runs {
			if r.ID == "" {
				return fmt.Errorf("project %s run %d has no id", p.Name, j)
			}
			for _, f := range r.Files {
				if f.Table != nil && f.Content != "" {
					return fmt.Errorf("file %s sets both content and table", f.Path)
				}
			}
		}
	}
	return nil
}

// Encode returns the stored bytes of a file: Content, or the table as
// canonical JSON.
func (f FileData) Encode() ([]byte, error) {
	if f.Table == nil {
		return []byte(f.Content), nil
	}
	cols := make(ir.Array, len(f.Table.Columns))
	for i, c := range f.Table.Columns {
		cols[i] = ir.Str(c)
	}
	rows := make([]any, len(f.Table.Data))
	for i, r := range f.Table.Data {
		rows[i] = r
	}
	data, err := ir.FromGo(rows)
	if err != nil {
		return nil, fmt.Errorf("encode table %s: %w", f.Path, err)
	}
	return ir.MarshalCanonical(ir.Object{"columns": cols, "data": data})
}

// ProjectID returns the stored project id.
func (p ProjectData) ProjectID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Name
}

// Seed writes a Dataset. Seeding is idempotent for projects, runs and
// files; history is appended on every call.
func (s *Store) Seed(ctx context.Context, ds Dataset) error {
	for _, p := range ds.Projects {
		if err := s.PutProject(ctx, p.ProjectID(), p.Name); err != nil {
			return err
		}
		for _, r := range p.Runs {
			if err := s.seedRun(ctx, p.ProjectID(), r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) seedRun(ctx context.Context, projectID string, r RunData) error {
	summary, err := ir.FromGo(r.Summary)
	if err != nil {
		return fmt.Errorf("seed run %s summary: %w", r.ID, err)
	}
	if err := s.PutRun(ctx, Run{ID: r.ID, ProjectID: projectID, Name: r.Name, Summary: summary}); err != nil {
		return err
	}

	rows := make([]ir.Value, len(r.History))
	for i, h := range r.History {
		row, err := ir.FromGo(h)
		if err != nil {
			return fmt.Errorf("seed run %s history %d: %w", r.ID, i, err)
		}
		rows[i] = row
	}
	if err := s.AppendHistory(ctx, r.ID, rows...); err != nil {
		return err
	}

	for _, f := range r.Files {
		content, err := f.Encode()
		if err != nil {
			return err
		}
		if _, err := s.PutFile(ctx, r.ID, f.Path, content); err != nil {
			return err
		}
	}
	return nil
}
