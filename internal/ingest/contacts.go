package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/funnel-cli/internal/model"
)

// Header names accepted for each contact column. Batches arrive from both
// Spanish- and English-speaking recruiters.
var (
	nameHeaders  = []string{"nombre", "name"}
	phoneHeaders = []string{"número", "numero", "number", "teléfono", "telefono", "phone"}
	emailHeaders = []string{"email", "correo", "mail"}
)

// ReadContacts parses the first sheet of an XLSX workbook into normalized
// contacts. Rows whose phone does not normalize to a non-empty digit string
// are dropped, then duplicates by phone are removed, first occurrence wins.
func ReadContacts(data []byte) ([]model.Contact, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	idx := headerIndex(rowToStrings(sheet.Rows[0]))

	var contacts []model.Contact
	seen := make(map[string]bool)
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)

		phone := model.NormalizePhone(pick(cells, idx, phoneHeaders))
		if phone == "" {
			continue
		}
		if seen[phone] {
			continue
		}
		seen[phone] = true

		contacts = append(contacts, model.Contact{
			Name:  strings.TrimSpace(pick(cells, idx, nameHeaders)),
			Phone: phone,
			Email: strings.TrimSpace(pick(cells, idx, emailHeaders)),
		})
	}
	return contacts, nil
}

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(cells []string, idx map[string]int, keys []string) string {
	for _, key := range keys {
		if i, ok := idx[key]; ok && i < len(cells) {
			return cells[i]
		}
	}
	return ""
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
