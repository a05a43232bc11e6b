package memory

import (
	"encoding/csv"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/OCAP2/featurex/pkg/core"
)

// Merge concatenates per-replay CSV files into out, ordered by File, then
// Episode, then Timestep. Every input must carry the same header. It returns
// the number of data rows written.
func Merge(paths []string, out string, compress bool) (int, error) {
	if len(paths) == 0 {
		return 0, fmt.Errorf("no files to merge")
	}
	if compress && !strings.HasSuffix(out, ".gz") {
		out += ".gz"
	}

	var header []string
	var records [][]string
	for _, path := range paths {
		h, rows, err := readCSV(path)
		if err != nil {
			return 0, err
		}
		if header == nil {
			header = h
		} else if !slices.Equal(header, h) {
			return 0, fmt.Errorf("%s: header differs from %s", path, paths[0])
		}
		records = append(records, rows...)
	}

	sortRecords(header, records)

	w, closeFn, err := createOutput(out)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		closeFn()
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		closeFn()
		return 0, fmt.Errorf("failed to write rows: %w", err)
	}
	if err := closeFn(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", out, err)
	}
	return len(records), nil
}

func readCSV(path string) ([]string, [][]string, error) {
	r, closeFn, err := openInput(path)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	all, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("%s: missing header", path)
	}
	return all[0], all[1:], nil
}

// sortRecords orders records by the meta columns present in header. Columns
// that are absent do not take part in the ordering.
func sortRecords(header []string, records [][]string) {
	file := slices.Index(header, core.FileColumn)
	episode := slices.Index(header, core.EpisodeColumn)
	timestep := slices.Index(header, core.TimestepColumn)

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if file >= 0 && a[file] != b[file] {
			return a[file] < b[file]
		}
		for _, col := range []int{episode, timestep} {
			if col < 0 {
				continue
			}
			if x, y := atoi(a[col]), atoi(b[col]); x != y {
				return x < y
			}
		}
		return false
	})
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
