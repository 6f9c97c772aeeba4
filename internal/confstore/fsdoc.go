package confstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

// fsLoader returns a Loader reading JSON from path.
func fsLoader(path string) Loader {
	return func() (map[string]any, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", coreerr.NotFound, path)
			}
			return nil, fmt.Errorf("%w: read %s: %v", coreerr.Internal, path, err)
		}
		var content map[string]any
		if err := json.Unmarshal(data, &content); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", coreerr.Internal, path, err)
		}
		return content, nil
	}
}

// fsSaver returns a Saver writing JSON to path, creating parent
// directories as needed.
func fsSaver(path string) Saver {
	return func(content map[string]any) error {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("%w: mkdir for %s: %v", coreerr.Internal, path, err)
		}
		data, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return fmt.Errorf("%w: marshal %s: %v", coreerr.Internal, path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("%w: write %s: %v", coreerr.Internal, path, err)
		}
		return nil
	}
}

// fsSchemaLoader reads a read-only JSON schema file from path. There
// is no matching Saver — schemas are immutable after init (spec.md §5
// "Static resources (fonts) and schema files are read-only after
// init").
func fsSchemaLoader(path string) Loader {
	return fsLoader(path)
}
