package wakeword

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfusionTable maps a trigger word to the near-homophones speech models
// commonly transcribe it as. This is configuration data, not logic: ship a
// YAML file next to the config to extend it without a rebuild.
type ConfusionTable map[string][]string

// DefaultConfusionTable covers the trigger words voicegate ships with. The
// entries come from observed whisper mistranscriptions.
func DefaultConfusionTable() ConfusionTable {
	return ConfusionTable{
		"milady": {"melody", "malady", "milandy", "my lady", "mulady", "melady"},
		"hey":    {"hay", "hei", "hej", "they"},
		"okay":   {"ok", "kay"},
		"agent":  {"asian", "agents", "urgent"},
		"listen": {"lesson", "listening"},
	}
}

// LoadConfusionTable reads a YAML confusion table from disk.
func LoadConfusionTable(path string) (ConfusionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read confusion table: %w", err)
	}

	table := ConfusionTable{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse confusion table: %w", err)
	}
	return table, nil
}

// Save writes the table as YAML, preserving a user-editable format.
func (t ConfusionTable) Save(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Confusable reports whether candidate is a known mistranscription of
// target. Comparison is over already-normalized lowercase words.
func (t ConfusionTable) Confusable(target, candidate string) bool {
	for _, alt := range t[target] {
		if alt == candidate {
			return true
		}
	}
	return false
}
