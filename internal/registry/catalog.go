package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"inferd/internal/common/fsutil"
	"inferd/pkg/types"
)

// catalogFile is the on-disk catalog layout: a flat record set keyed by
// model name.
type catalogFile struct {
	Models map[string]types.ModelDescriptor `json:"models"`
}

// loadCatalog reads the catalog at path. A missing file yields an empty
// catalog. Descriptors persisted mid-load are demoted to registered, since
// residency never survives a restart.
func loadCatalog(path string) (map[string]*types.ModelDescriptor, error) {
	out := make(map[string]*types.ModelDescriptor)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var cf catalogFile
	if err := json.Unmarshal(b, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for name, d := range cf.Models {
		d := d
		d.Name = name
		switch d.Status {
		case types.StatusLoading, types.StatusReady:
			d.Status = types.StatusRegistered
		}
		out[name] = &d
	}
	return out, nil
}

// saveCatalog writes the catalog atomically (temp + rename) so a crash never
// leaves a partially written file.
func saveCatalog(path string, models map[string]*types.ModelDescriptor) error {
	cf := catalogFile{Models: make(map[string]types.ModelDescriptor, len(models))}
	for name, d := range models {
		cf.Models[name] = *d
	}
	b, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("catalog dir: %w", err)
	}
	return fsutil.WriteFileAtomic(path, b, 0o644)
}
