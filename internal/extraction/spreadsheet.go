package extraction

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// maxDocumentChars bounds the text sent to the model; anything beyond this is
// truncated rather than rejected so oversized exports still extract partially.
const maxDocumentChars = 120_000

// FileToText converts an uploaded file to plain text for the extraction
// prompt. Spreadsheets are rendered sheet by sheet as tab-separated rows;
// anything else is treated as UTF-8 text.
func FileToText(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", eris.Errorf("extraction: file %s is empty", filename)
	}

	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm") {
		return spreadsheetToText(data)
	}

	if !utf8.Valid(data) {
		return "", eris.Errorf("extraction: file %s is not a spreadsheet or UTF-8 text", filename)
	}
	return truncate(string(data)), nil
}

func spreadsheetToText(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrap(err, "extraction: open spreadsheet")
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		b.WriteString("=== Sheet: " + sheet.Name + " ===\n")
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			empty := true
			for i, cell := range row.Cells {
				cells[i] = strings.TrimSpace(cell.String())
				if cells[i] != "" {
					empty = false
				}
			}
			if empty {
				continue
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteByte('\n')
			if b.Len() > maxDocumentChars {
				return truncate(b.String()), nil
			}
		}
		b.WriteByte('\n')
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", eris.New("extraction: spreadsheet has no content")
	}
	return truncate(b.String()), nil
}

// truncate cuts s down to maxDocumentChars bytes on a rune boundary, so a
// multibyte character is never split into invalid UTF-8.
func truncate(s string) string {
	if len(s) <= maxDocumentChars {
		return s
	}
	cut := maxDocumentChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
