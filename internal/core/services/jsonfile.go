package services

import (
	"encoding/json"
	"fmt"
	"path"

	ports "mlflow-migrate/internal/core/ports/output"
)

func writeJSON(fs ports.Filesystem, p string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path.Base(p), err)
	}
	if err := fs.MkdirAll(path.Dir(p)); err != nil {
		return fmt.Errorf("create directory for %s: %w", p, err)
	}
	if err := fs.WriteFile(p, append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

func readJSON(fs ports.Filesystem, p string, v interface{}) error {
	data, err := fs.ReadFile(p)
	if err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", p, err)
	}
	return nil
}
