package extractor

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readWorkbook sniffs the container: OLE2 compound files hold legacy BIFF workbooks,
// everything else goes to excelize as OOXML. A mislabelled .xls that is really .xlsx still opens.
func readWorkbook(data []byte) (table, error) {
	if isCompoundFile(data) {
		return readLegacyExcel(data)
	}
	return readExcel(data)
}

// readExcel loads the first sheet of an OOXML workbook.
func readExcel(data []byte) (table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table{}, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return newTable(rows)
}
