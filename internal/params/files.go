// files.go - Parameter blobs on disk, for the CLI and the demo.

package params

import (
	"fmt"
	"os"
)

// SaveFiles writes the spend and output blobs to disk.
func SaveFiles(spendPath, outputPath string, spend, output []byte) error {
	if err := os.WriteFile(spendPath, spend, 0o644); err != nil {
		return fmt.Errorf("writing spend parameters: %w", err)
	}
	if err := os.WriteFile(outputPath, output, 0o644); err != nil {
		return fmt.Errorf("writing output parameters: %w", err)
	}
	return nil
}

// LoadFiles reads both blobs from disk and loads them.
func LoadFiles(spendPath, outputPath string) error {
	spend, err := os.ReadFile(spendPath)
	if err != nil {
		return fmt.Errorf("reading spend parameters: %w", err)
	}
	output, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("reading output parameters: %w", err)
	}
	return Load(spend, output)
}

// SetupOrLoadFiles loads parameters from disk. If either file is missing it
// runs a fresh setup, saves the result and loads that instead.
func SetupOrLoadFiles(spendPath, outputPath string) error {
	_, spendErr := os.Stat(spendPath)
	_, outputErr := os.Stat(outputPath)
	if spendErr == nil && outputErr == nil {
		return LoadFiles(spendPath, outputPath)
	}
	l := logger()
	l.Warn().Str("spend", spendPath).Str("output", outputPath).Msg("parameter files missing, running setup")
	spend, output, err := Setup()
	if err != nil {
		return err
	}
	if err := SaveFiles(spendPath, outputPath, spend, output); err != nil {
		return err
	}
	return Load(spend, output)
}
