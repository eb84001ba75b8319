package render

import (
	"fmt"
	"os"
	"path/filepath"

	"onepager/internal/domain"
)

// writeAtomic writes data to a temp file next to path and renames it into
// place, so path either holds the complete PDF or is left untouched.
func writeAtomic(path string, data []byte) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".onepager-*.pdf.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrWriteOutput, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, fmt.Errorf("%w: %v", domain.ErrWriteOutput, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return 0, fmt.Errorf("%w: %v", domain.ErrWriteOutput, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return 0, fmt.Errorf("%w: %v", domain.ErrWriteOutput, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return 0, fmt.Errorf("%w: %v", domain.ErrWriteOutput, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return 0, fmt.Errorf("%w: %v", domain.ErrWriteOutput, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: PDF file was not created: %v", domain.ErrWriteOutput, err)
	}
	if info.Size() != int64(len(data)) {
		return 0, fmt.Errorf("%w: wrote %d of %d bytes", domain.ErrWriteOutput, info.Size(), len(data))
	}
	return info.Size(), nil
}
