package sqlgen

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"benritz/sheetsql/internal/errs"
)

// Partition is one unit of uploaded data, normally one sheet, meant for a single table.
type Partition struct {
	Name string `json:"name"`
	Rows []Row  `json:"rows"`
}

// DecodePartitions reads a JSON array of {"name": ..., "rows": [{column: value}, ...]} objects.
func DecodePartitions(r io.Reader) ([]Partition, error) {
	var partitions []Partition
	if err := json.NewDecoder(r).Decode(&partitions); err != nil {
		return nil, errs.Malformed("unable to parse row partitions", err)
	}
	if partitions == nil {
		return nil, errs.Malformed("row partitions are missing", nil)
	}
	for i, p := range partitions {
		if strings.TrimSpace(p.Name) == "" {
			return nil, errs.Malformed(fmt.Sprintf("partition %d has no name", i), nil)
		}
	}
	return partitions, nil
}
