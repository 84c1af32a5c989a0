package extractor

import (
	"fmt"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

// Normalizer turns uploaded file bytes into plain text, dispatching on the filename suffix.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize returns domain.ErrUnsupportedType for unknown suffixes and a *domain.FileError
// for decoding or parsing failures.
func (n *Normalizer) Normalize(filename string, data []byte) (string, error) {
	switch domain.DetectFileType(filename) {
	case domain.FileTypeExcel:
		table, err := readWorkbook(data)
		if err != nil {
			return "", domain.NewFileError(domain.ErrIngest, filename, err)
		}
		return table.render(domain.FileStem(filename)), nil
	case domain.FileTypeCSV:
		text, err := decodeCSVBytes(data)
		if err != nil {
			return "", domain.NewFileError(domain.ErrDecode, filename, err)
		}
		table, err := readCSV(text)
		if err != nil {
			return "", domain.NewFileError(domain.ErrIngest, filename, err)
		}
		return table.render(domain.FileStem(filename)), nil
	case domain.FileTypePlainText:
		return decodePlainText(data), nil
	default:
		return "", fmt.Errorf("%s: %w", filename, domain.ErrUnsupportedType)
	}
}
