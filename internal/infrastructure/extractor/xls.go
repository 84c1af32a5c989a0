package extractor

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/extrame/xls"
)

var compoundFileMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const compoundHeaderSize = 512

func isCompoundFile(data []byte) bool {
	return bytes.HasPrefix(data, compoundFileMagic)
}

// checkCompoundHeader rejects containers the BIFF reader would misread: it assumes
// little-endian 512-byte sectors with 64-byte mini sectors.
func checkCompoundHeader(data []byte) error {
	if len(data) < compoundHeaderSize {
		return fmt.Errorf("compound file header truncated: %d bytes", len(data))
	}
	if order := binary.LittleEndian.Uint16(data[28:30]); order != 0xFFFE {
		return fmt.Errorf("compound file byte order %#04x not supported", order)
	}
	sectorShift := binary.LittleEndian.Uint16(data[30:32])
	miniShift := binary.LittleEndian.Uint16(data[32:34])
	if sectorShift != 9 || miniShift != 6 {
		return fmt.Errorf("compound file sector size 2^%d/2^%d not supported", sectorShift, miniShift)
	}
	return nil
}

// readLegacyExcel loads the first sheet of a BIFF (.xls) workbook.
func readLegacyExcel(data []byte) (t table, err error) {
	if err := checkCompoundHeader(data); err != nil {
		return table{}, err
	}
	// The BIFF reader indexes records without bounds checks and panics on malformed input.
	defer func() {
		if r := recover(); r != nil {
			t, err = table{}, fmt.Errorf("malformed legacy workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return table{}, fmt.Errorf("open legacy workbook: %w", err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return table{}, fmt.Errorf("workbook has no sheets")
	}

	sheet := wb.GetSheet(0)
	if sheet.MaxRow == 0 {
		return newTable([][]string{firstRow(sheet)})
	}
	// ReadAllCells walks sheets in order and stops once the limit is reached, so a limit of
	// MaxRow+1 keeps it on the first sheet. Rows missing from the sheet come back nil.
	return newTable(wb.ReadAllCells(int(sheet.MaxRow) + 1))
}

// firstRow reads row 0 of a sheet; xls.WorkSheet.Row panics when the sheet never stored it.
func firstRow(sheet *xls.WorkSheet) (cells []string) {
	defer func() {
		if recover() != nil {
			cells = nil
		}
	}()
	row := sheet.Row(0)
	for c := 0; c < row.LastCol(); c++ {
		cells = append(cells, row.Col(c))
	}
	return cells
}
