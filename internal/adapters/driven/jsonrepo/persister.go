package jsonrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"schoolboard/internal/core/domain"

	"github.com/goccy/go-json"
)

const defaultFilePermissions = os.FileMode(0644)

// Needs to be exported so we can call in when in tests
type Persister interface {
	Persist(filename string, records []domain.Record) error
}

// FilePersister replaces the document atomically: the collection goes to a temp file in the same
// directory which is then renamed over the old document.
type FilePersister struct{}

func NewFilePersister() *FilePersister {
	return &FilePersister{}
}

func (fp *FilePersister) Persist(filename string, records []domain.Record) (err error) {
	if records == nil {
		records = []domain.Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding JSON for %s: %w", filename, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file for %s: %w", filename, err)
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("error writing JSON for %s: %w", filename, err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("error syncing JSON for %s: %w", filename, err)
	}

	if err = tmp.Chmod(defaultFilePermissions); err != nil {
		return fmt.Errorf("error setting permissions for %s: %w", filename, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file for %s: %w", filename, err)
	}

	if err = os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("error replacing %s: %w", filename, err)
	}

	return nil
}
