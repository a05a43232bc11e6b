package memory

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/OCAP2/featurex/pkg/core"
)

// replayName derives a file name from a replay source: the base name with
// compression and format extensions removed.
func replayName(source string) string {
	name := filepath.Base(source)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." {
		return "replay"
	}
	return name
}

func writeDescriptors(path string, descriptors []core.FeatureDescriptor) error {
	data, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode descriptors: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write descriptors: %w", err)
	}
	return nil
}

// createOutput opens path for writing, gzip-compressed when the name ends
// in ".gz". The returned close function flushes the compressor first.
func createOutput(path string) (io.Writer, func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, f.Close, nil
	}
	gzWriter := gzip.NewWriter(f)
	return gzWriter, func() error {
		if err := gzWriter.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

// openInput opens a CSV file written by this package, decompressing it when
// the name ends in ".gz".
func openInput(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, f.Close, nil
	}
	gzReader, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to open gzip stream of %s: %w", path, err)
	}
	return gzReader, func() error {
		gzReader.Close()
		return f.Close()
	}, nil
}

func writeCSV(path string, labels []string, rows []core.Row) (err error) {
	w, closeFn, err := createOutput(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeFn(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	cw := csv.NewWriter(w)
	if err := cw.Write(labels); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(labels))
	for _, row := range rows {
		for i, v := range row {
			record[i] = core.FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
