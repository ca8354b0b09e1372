package collect

import (
	"embed"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// SourceConfig is one G2B list endpoint to collect from.
type SourceConfig struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description,omitempty"`
}

// Registry holds the collector configuration.
type Registry struct {
	ListBaseURL  string `yaml:"list_base_url"`
	AwardBaseURL string `yaml:"award_base_url"`
	ServiceKey   string `yaml:"service_key"`

	RowsPerPage int `yaml:"rows_per_page,omitempty"` // Default: 50
	ChunkDays   int `yaml:"chunk_days,omitempty"`    // Default: 3

	// ListKeyword narrows the document-store collection; curated keywords
	// select which notices also go to the grouped store with award data.
	ListKeyword     string         `yaml:"list_keyword,omitempty"`
	Sources         []SourceConfig `yaml:"sources"`
	CuratedKeywords []string       `yaml:"curated_keywords,omitempty"`
}

// LoadRegistry reads the embedded sources.yaml, or a filesystem override
// when path is non-empty.
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, err
	}

	// Expand environment variables within the YAML content (e.g. ${BID_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	if reg.RowsPerPage <= 0 {
		reg.RowsPerPage = 50
	}
	if reg.ChunkDays <= 0 {
		reg.ChunkDays = 3
	}

	return &reg, nil
}
