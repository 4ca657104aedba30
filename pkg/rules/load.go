package rules

import (
	"encoding/json"
	"fmt"
	"os"
)

// Load reads a rule table from a JSON file.
func Load(filename string) ([]Rule, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer file.Close()

	var table []Rule
	if err := json.NewDecoder(file).Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return table, nil
}
