package region

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadDatasetFile reads a region reference file: JSON with top-level
// "regions" and "relationships" arrays. Missing optional relationship fields
// default (type "part_of", coverage 100). The dataset is validated for
// referential integrity before it is returned.
func LoadDatasetFile(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("region: read dataset %s: %w", path, err)
	}
	return ParseDataset(data)
}

// ParseDataset decodes and validates a region reference document.
func ParseDataset(data []byte) (Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("region: parse dataset: %w", err)
	}
	for i := range ds.Relationships {
		if ds.Relationships[i].RelationshipType == "" {
			ds.Relationships[i].RelationshipType = "part_of"
		}
		if ds.Relationships[i].Coverage == 0 {
			ds.Relationships[i].Coverage = 100
		}
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}
