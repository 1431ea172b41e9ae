package discover

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/colresolve/pkg/dialect"
)

// Frontmatter holds per-file overrides declared in a leading
//
//	/*---
//	dialect: postgres
//	dataset: Finance
//	---*/
//
// block. Unknown keys are rejected; Meta is the extension point.
type Frontmatter struct {
	Report  string         `yaml:"report"`
	Dataset string         `yaml:"dataset"`
	Dialect string         `yaml:"dialect"`
	Skip    bool           `yaml:"skip"`
	Tags    []string       `yaml:"tags"`
	Meta    map[string]any `yaml:"meta"`
}

// FrontmatterResult holds the result of frontmatter extraction.
type FrontmatterResult struct {
	Config  *Frontmatter
	SQL     string // content after the block
	HasYAML bool
}

var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

var knownFields = map[string]bool{
	"report":  true,
	"dataset": true,
	"dialect": true,
	"skip":    true,
	"tags":    true,
	"meta":    true,
}

// ExtractFrontmatter splits a leading frontmatter block from content.
// Content without one is returned unchanged with an empty config.
func ExtractFrontmatter(content string) (*FrontmatterResult, error) {
	result := &FrontmatterResult{Config: &Frontmatter{}, SQL: content}

	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return result, nil
	}
	result.HasYAML = true
	result.SQL = strings.TrimSpace(content[len(matches[0]):])

	config, err := parseFrontmatterYAML(matches[1])
	if err != nil {
		return nil, err
	}
	result.Config = config
	return result, nil
}

func parseFrontmatterYAML(yamlContent string) (*Frontmatter, error) {
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	for field := range rawMap {
		if !knownFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}

	var config Frontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err)}
	}

	if config.Dialect != "" {
		if _, ok := dialect.Get(config.Dialect); !ok {
			return nil, &FrontmatterParseError{
				Message: fmt.Sprintf("unknown dialect %q, must be one of: %s", config.Dialect, strings.Join(dialect.List(), ", ")),
			}
		}
		config.Dialect = dialect.Normalize(config.Dialect)
	}
	return &config, nil
}

// ApplyDefaults fills Report and Dataset from the filename where the
// block left them empty.
func (f *Frontmatter) ApplyDefaults(path string) {
	report, dataset := ParseFilename(path)
	if f.Report == "" {
		f.Report = report
	}
	if f.Dataset == "" {
		f.Dataset = dataset
	}
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter, use \"meta\" field for custom fields", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
