package crawler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/catalog-scraper/pkg/config"
	"github.com/Sriram-PR/catalog-scraper/pkg/models"
	"github.com/Sriram-PR/catalog-scraper/pkg/utils"
)

// OutputManager owns the record file and the optional metadata YAML of a run.
// The record file is written once per run.
type OutputManager struct {
	log     *logrus.Entry
	cfg     *config.AppConfig
	written bool
}

// NewOutputManager creates an OutputManager. Nothing touches the disk until WriteRecords.
func NewOutputManager(log *logrus.Entry, cfg *config.AppConfig) *OutputManager {
	return &OutputManager{log: log, cfg: cfg}
}

// encodeRecords renders records as one indented JSON array with non-ASCII kept as UTF-8.
func encodeRecords(records []models.OutputRecord) ([]byte, error) {
	if records == nil {
		records = []models.OutputRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRecords serializes records to the configured output path and returns it.
// Truncate mode replaces the file atomically. Append mode adds another
// top-level array after any existing content.
func (om *OutputManager) WriteRecords(records []models.OutputRecord) (string, error) {
	outPath := om.cfg.OutputPath()
	if om.written {
		return outPath, fmt.Errorf("%w: records already written to '%s' in this run", utils.ErrFilesystem, outPath)
	}

	data, err := encodeRecords(records)
	if err != nil {
		return outPath, fmt.Errorf("encoding %d records: %w", len(records), err)
	}

	dir, name := filepath.Split(outPath)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return outPath, fmt.Errorf("%w: creating output dir '%s': %w", utils.ErrFilesystem, dir, err)
	}

	if om.cfg.OutputMode == config.OutputModeAppend {
		om.log.Warnf("Append mode: adding another JSON array to %s, the file will not be a single JSON document", outPath)
		file, err := openAppendFile(outPath)
		if err != nil {
			return outPath, err
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			return outPath, fmt.Errorf("%w: appending to '%s': %w", utils.ErrFilesystem, outPath, err)
		}
		if err := file.Close(); err != nil {
			return outPath, fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, outPath, err)
		}
	} else {
		om.log.Infof("Truncating output file: %s", outPath)
		if err := utils.WriteFileAtomic(dir, name, data); err != nil {
			return outPath, err
		}
	}

	om.written = true
	om.log.WithFields(logrus.Fields{"path": outPath, "records": len(records)}).Info("Wrote book records")
	return outPath, nil
}

// openAppendFile opens an output file for appending, creating it if needed.
func openAppendFile(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening output file '%s': %w", utils.ErrFilesystem, path, err)
	}
	return file, nil
}

// WriteMetadataYAML writes run metadata next to the record file when enabled.
func (om *OutputManager) WriteMetadataYAML(meta *models.RunMetadata) error {
	if !om.cfg.EnableMetadataYAML {
		om.log.Debug("Metadata YAML output is disabled.")
		return nil
	}
	metaPath := om.cfg.MetadataPath()

	yamlData, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata to YAML: %w", err)
	}

	dir, name := filepath.Split(metaPath)
	if dir == "" {
		dir = "."
	}
	if err := utils.WriteFileAtomic(dir, name, yamlData); err != nil {
		return err
	}
	om.log.Infof("Wrote run metadata to %s (%d books)", metaPath, len(meta.Books))
	return nil
}
