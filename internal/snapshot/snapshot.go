// Package snapshot reads and writes the JSON files exchanged between the
// fetchers and the pipeline: the raw per-source record files and the
// combined ranked output.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Liuhangfung/get-allassets/pkg/models"
)

// LoadEquities reads raw equities/commodities records from path. The
// caller distinguishes a missing file (os.ErrNotExist) from a corrupt one.
func LoadEquities(path string) ([]models.EquityRecord, error) {
	var records []models.EquityRecord
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// LoadCrypto reads raw cryptocurrency records from path.
func LoadCrypto(path string) ([]models.CryptoRecord, error) {
	var records []models.CryptoRecord
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveEquities writes raw equities/commodities records to path.
func SaveEquities(path string, records []models.EquityRecord) error {
	return writeJSON(path, records)
}

// SaveCrypto writes raw cryptocurrency records to path.
func SaveCrypto(path string, records []models.CryptoRecord) error {
	return writeJSON(path, records)
}

// WriteAssets writes the ranked asset list to path as pretty-printed
// UTF-8 JSON. Non-ASCII display names are preserved as-is.
func WriteAssets(path string, assets []*models.Asset) error {
	return writeJSON(path, assets)
}

// ReadAssets reads a previously written ranked asset list.
func ReadAssets(path string) ([]*models.Asset, error) {
	var assets []*models.Asset
	if err := readJSON(path, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func readJSON(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}
