package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"callouts/internal/extract"
)

// VocabularyFile is the YAML document selected by VOCABULARY_FILE.
//
//	patterns:
//	  - '\b[A-Z]-?\d+\b'
//	words:
//	  material: [concrete, steel]
//	block_confidence: 0.8
type VocabularyFile struct {
	Patterns         []string            `yaml:"patterns"`
	Words            map[string][]string `yaml:"words"`
	BlockConfidence  float64             `yaml:"block_confidence"`
	MaxMergeDistance float64             `yaml:"max_merge_distance"`
	RowTolerance     float64             `yaml:"row_tolerance"`
}

// LoadVocabulary reads and parses a vocabulary file.
func LoadVocabulary(path string) (*VocabularyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary parses YAML vocabulary content. Word buckets must be one of
// the known bucket names.
func ParseVocabulary(data []byte) (*VocabularyFile, error) {
	var v VocabularyFile
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary file: %w", err)
	}

	known := map[string]bool{}
	for _, b := range extract.BucketOrder {
		known[b] = true
	}
	for bucket := range v.Words {
		if !known[bucket] {
			return nil, fmt.Errorf("unknown word bucket %q", bucket)
		}
	}
	if len(v.Patterns) > 0 {
		if _, err := extract.CompilePatterns(v.Patterns); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

// Options converts the file into extractor options. Buckets missing from the
// file keep their built-in words.
func (v *VocabularyFile) Options() extract.Options {
	opts := extract.Options{
		Patterns:         v.Patterns,
		BlockConfidence:  v.BlockConfidence,
		MaxMergeDistance: v.MaxMergeDistance,
		RowTolerance:     v.RowTolerance,
	}
	if len(v.Words) > 0 {
		lists := make(map[string][]string, len(extract.DefaultWordLists))
		for bucket, words := range extract.DefaultWordLists {
			lists[bucket] = words
		}
		for bucket, words := range v.Words {
			lists[bucket] = words
		}
		opts.Vocabulary = extract.NewVocabulary(lists)
	}
	return opts
}

// ExtractorOptions returns extractor options from VOCABULARY_FILE, or the
// defaults when it is unset.
func (c *Config) ExtractorOptions() (extract.Options, error) {
	if c.VocabularyFile == "" {
		return extract.Options{}, nil
	}
	v, err := LoadVocabulary(c.VocabularyFile)
	if err != nil {
		return extract.Options{}, err
	}
	return v.Options(), nil
}
