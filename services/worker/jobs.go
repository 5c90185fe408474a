package worker

import (
	"fmt"
	"os"
	"strings"

	"sjsage522/asinharvester/internal/harvest"
	herrors "sjsage522/asinharvester/pkg/errors"

	"gopkg.in/yaml.v3"
)

// DefaultJobPages is the page budget of a job that does not set one
const DefaultJobPages = 5

// Job is one scheduled collection: a search page, how to collect it and where to save the result
type Job struct {
	Name     string                `yaml:"name"`
	URL      string                `yaml:"url"`
	Account  string                `yaml:"account"`
	Category string                `yaml:"category"`
	Mode     harvest.Mode          `yaml:"mode,omitempty"`
	MaxPages int                   `yaml:"maxPages,omitempty"`
	Filter   *harvest.FilterConfig `yaml:"filter,omitempty"`
}

// JobsFile is the layout of the jobs file
type JobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobs reads and validates the jobs file at path
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return nil, herrors.NewConfiguration("read jobs file", err)
	}
	return ParseJobs(data)
}

// ParseJobs decodes and validates a jobs document, filling defaults
func ParseJobs(data []byte) ([]Job, error) {
	var f JobsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, herrors.NewConfiguration("parse jobs file", err)
	}
	for i := range f.Jobs {
		if err := f.Jobs[i].normalize(i); err != nil {
			return nil, err
		}
	}
	return f.Jobs, nil
}

func (j *Job) normalize(index int) error {
	j.URL = strings.TrimSpace(j.URL)
	j.Account = strings.TrimSpace(j.Account)
	j.Category = strings.TrimSpace(j.Category)
	if j.Name == "" {
		j.Name = fmt.Sprintf("job-%d", index+1)
	}
	if !strings.HasPrefix(j.URL, "http://") && !strings.HasPrefix(j.URL, "https://") {
		return herrors.NewConfiguration(fmt.Sprintf("job %s: url must be http(s), got %q", j.Name, j.URL), nil)
	}
	if j.Account == "" || j.Category == "" {
		return herrors.NewConfiguration(fmt.Sprintf("job %s: account and category are required", j.Name), nil)
	}
	if j.MaxPages == 0 {
		j.MaxPages = DefaultJobPages
	}
	if j.MaxPages < 0 {
		return herrors.NewConfiguration(fmt.Sprintf("job %s: maxPages must be positive", j.Name), nil)
	}
	switch j.Mode {
	case "":
		j.Mode = harvest.ModeAll
		if j.Filter != nil {
			j.Mode = harvest.ModeFiltered
		}
	case harvest.ModeAll:
	case harvest.ModeFiltered, harvest.ModeQuick:
		if j.Filter == nil {
			j.Filter = &harvest.FilterConfig{}
		}
	default:
		return herrors.NewConfiguration(fmt.Sprintf("job %s: unknown mode %q", j.Name, j.Mode), nil)
	}
	if j.Filter != nil {
		if err := j.Filter.Validate(); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
	}
	return nil
}
