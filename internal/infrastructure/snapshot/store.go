package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/chococrunch/pipeline/internal/domain"
)

// Snapshot file locations relative to the data directory
const (
	RawFile            = "raw/chocolate_products_raw.csv"
	CleanedFile        = "processed/chocolate_products_cleaned.csv"
	CleaningReportFile = "processed/cleaning_report.json"
	EngineeredFile     = "processed/chocolate_products_engineered.csv"
	RunReportFile      = "execution_report.json"
)

// Store keeps one CSV snapshot per stage under a data directory
type Store struct {
	dir string
}

// NewStore creates a snapshot store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute location of a snapshot file
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// Exists reports whether the stage's output snapshot is present
func (s *Store) Exists(stage domain.Stage) bool {
	var name string
	switch stage {
	case domain.StageExtract:
		name = RawFile
	case domain.StageClean:
		name = CleanedFile
	case domain.StageEngineer:
		name = EngineeredFile
	default:
		return false
	}
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// WriteRaw writes the extraction snapshot
func (s *Store) WriteRaw(ds domain.RawDataset) error {
	rows := make([][]string, len(ds.Records))
	for i, r := range ds.Records {
		rows[i] = encodeProduct(r)
	}
	return s.writeCSV(RawFile, productHeader(), rows)
}

// ReadRaw reads the extraction snapshot
func (s *Store) ReadRaw() (domain.RawDataset, error) {
	var ds domain.RawDataset
	err := s.readCSV(RawFile, func(r row) error {
		record, err := decodeProduct(r)
		if err != nil {
			return err
		}
		ds.Records = append(ds.Records, record)
		return nil
	})
	return ds, err
}

// WriteCleaned writes the cleaning snapshot and its report
func (s *Store) WriteCleaned(ds domain.CleanedDataset) error {
	rows := make([][]string, len(ds.Records))
	for i, r := range ds.Records {
		rows[i] = encodeProduct(r)
	}
	if err := s.writeCSV(CleanedFile, productHeader(), rows); err != nil {
		return err
	}
	return s.writeJSON(CleaningReportFile, ds.Report)
}

// ReadCleaned reads the cleaning snapshot. A missing report file leaves Report empty.
func (s *Store) ReadCleaned() (domain.CleanedDataset, error) {
	var ds domain.CleanedDataset
	err := s.readCSV(CleanedFile, func(r row) error {
		record, err := decodeProduct(r)
		if err != nil {
			return err
		}
		ds.Records = append(ds.Records, record)
		return nil
	})
	if err != nil {
		return ds, err
	}

	if err := s.readJSON(CleaningReportFile, &ds.Report); err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		return ds, err
	}
	return ds, nil
}

// WriteEngineered writes the feature snapshot
func (s *Store) WriteEngineered(ds domain.EngineeredDataset) error {
	rows := make([][]string, len(ds.Records))
	for i, r := range ds.Records {
		rows[i] = encodeEngineered(r)
	}
	return s.writeCSV(EngineeredFile, engineeredHeader(), rows)
}

// ReadEngineered reads the feature snapshot
func (s *Store) ReadEngineered() (domain.EngineeredDataset, error) {
	var ds domain.EngineeredDataset
	err := s.readCSV(EngineeredFile, func(r row) error {
		record, err := decodeEngineered(r)
		if err != nil {
			return err
		}
		ds.Records = append(ds.Records, record)
		return nil
	})
	return ds, err
}

// WriteReport writes the execution report
func (s *Store) WriteReport(report domain.RunReport) error {
	return s.writeJSON(RunReportFile, report)
}

// ReadReport reads the last execution report
func (s *Store) ReadReport() (domain.RunReport, error) {
	var report domain.RunReport
	err := s.readJSON(RunReportFile, &report)
	return report, err
}

// writeCSV writes through a temp file and renames it into place, so readers never
// see a partial snapshot
func (s *Store) writeCSV(name string, header []string, rows [][]string) error {
	return s.writeAtomic(name, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
}

func (s *Store) writeJSON(name string, v interface{}) error {
	return s.writeAtomic(name, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func (s *Store) writeAtomic(name string, write func(io.Writer) error) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *Store) open(name string) (*os.File, error) {
	f, err := os.Open(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, s.Path(name))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

func (s *Store) readCSV(name string, each func(row) error) error {
	f, err := s.open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return fmt.Errorf("%s: missing header", name)
	}
	if err != nil {
		return fmt.Errorf("%s: read header: %w", name, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	if _, ok := index[colProductCode]; !ok {
		return fmt.Errorf("%s: missing %s column", name, colProductCode)
	}

	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := each(row{index: index, fields: fields, line: line}); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
}

func (s *Store) readJSON(name string, v interface{}) error {
	f, err := s.open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
