package sheet

import (
	"context"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sink is a row-addressable applicants table. Row numbers are 1-based
// and include the header row, so the first data row is 2. Implementations
// must keep a row's number stable once returned; cached numbers from
// earlier runs are replayed against it.
type Sink interface {
	// EnsureHeader writes the header row if it is missing or stale.
	EnsureHeader(ctx context.Context, columns []string) error
	// AppendRow adds a row after the last used row and returns its number.
	AppendRow(ctx context.Context, values []string) (int, error)
	// UpdateRow overwrites the given row in place.
	UpdateRow(ctx context.Context, row int, values []string) error
}

// XLSXSink keeps the applicants table in a local workbook. Every mutation
// saves the file, so a crash between rows loses at most the row in
// flight.
type XLSXSink struct {
	path      string
	sheetName string

	mu    sync.Mutex
	file  *xlsx.File
	sheet *xlsx.Sheet
}

// NewXLSXSink opens or creates the workbook at path. sheetName defaults
// to "Applicants".
func NewXLSXSink(path, sheetName string) (*XLSXSink, error) {
	if sheetName == "" {
		sheetName = "Applicants"
	}

	s := &XLSXSink{path: path, sheetName: sheetName}

	if _, err := os.Stat(path); err == nil {
		file, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: open workbook %s", path)
		}
		s.file = file
		for _, sh := range file.Sheets {
			if sh.Name == sheetName {
				s.sheet = sh
				break
			}
		}
	} else if os.IsNotExist(err) {
		s.file = xlsx.NewFile()
	} else {
		return nil, eris.Wrapf(err, "sheet: stat workbook %s", path)
	}

	if s.sheet == nil {
		sh, err := s.file.AddSheet(sheetName)
		if err != nil {
			return nil, eris.Wrapf(err, "sheet: add sheet %s", sheetName)
		}
		s.sheet = sh
	}

	return s, nil
}

func (s *XLSXSink) EnsureHeader(_ context.Context, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sheet.Rows) > 0 && rowEquals(s.sheet.Rows[0], columns) {
		return nil
	}

	if len(s.sheet.Rows) == 0 {
		s.sheet.AddRow()
	}
	setRow(s.sheet.Rows[0], columns)

	return s.save()
}

func (s *XLSXSink) AppendRow(_ context.Context, values []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.sheet.AddRow()
	setRow(row, values)

	if err := s.save(); err != nil {
		return 0, err
	}
	return len(s.sheet.Rows), nil
}

func (s *XLSXSink) UpdateRow(_ context.Context, row int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row < 1 || row > len(s.sheet.Rows) {
		return eris.Errorf("sheet: row %d out of range (have %d)", row, len(s.sheet.Rows))
	}

	setRow(s.sheet.Rows[row-1], values)
	return s.save()
}

func (s *XLSXSink) save() error {
	if err := s.file.Save(s.path); err != nil {
		return eris.Wrapf(err, "sheet: save workbook %s", s.path)
	}
	return nil
}

func setRow(row *xlsx.Row, values []string) {
	row.Cells = row.Cells[:0]
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func rowEquals(row *xlsx.Row, values []string) bool {
	if len(row.Cells) != len(values) {
		return false
	}
	for i, cell := range row.Cells {
		if cell.String() != values[i] {
			return false
		}
	}
	return true
}
