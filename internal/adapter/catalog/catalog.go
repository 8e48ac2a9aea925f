// Package catalog reads earthquake catalogs from QuakeML and CSV files.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/seisdb-acquire/internal/domain"
)

// Read loads a catalog, choosing the format by file suffix:
// .xml and .quakeml are QuakeML, .csv is the CSV catalog format.
func Read(path string) ([]domain.Event, error) {
	var decode func([]byte) ([]domain.Event, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".quakeml":
		decode = ParseQuakeML
	case ".csv":
		decode = ParseCSV
	default:
		return nil, fmt.Errorf("%s: %w", path, domain.ErrUnknownCatalogFormat)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	events, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}
