package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	usersFile     = "users.json"
	purchasesFile = "purchases.json"
)

// ErrMissingDataset is returned when a dataset file does not exist.
var ErrMissingDataset = errors.New("dataset not found")

// WriteDataset serializes the dataset into users.json and purchases.json under the provided directory.
func WriteDataset(dataset Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, usersFile), dataset.Users); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, purchasesFile), dataset.Purchases)
}

// LoadDataset reads a dataset written by WriteDataset. A missing purchases
// file yields an empty purchase list.
func LoadDataset(dir string) (Dataset, error) {
	var ds Dataset
	if err := readJSON(filepath.Join(dir, usersFile), &ds.Users); err != nil {
		return Dataset{}, err
	}
	err := readJSON(filepath.Join(dir, purchasesFile), &ds.Purchases)
	if err != nil && !errors.Is(err, ErrMissingDataset) {
		return Dataset{}, err
	}
	return ds, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, target any) error {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissingDataset, path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
