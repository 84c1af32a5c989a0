package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	errQuestionRequired = errors.New("question is required")
	errKTooSmall        = errors.New("k must be >= 1")
)

type FileType string

const (
	FileTypeExcel       FileType = "excel"
	FileTypeCSV         FileType = "csv"
	FileTypePlainText   FileType = "plain_text"
	FileTypeUnsupported FileType = "unsupported"
)

// UploadedFile lives only for the duration of one request.
type UploadedFile struct {
	Filename string
	Data     []byte
}

func (f UploadedFile) Type() FileType {
	return DetectFileType(f.Filename)
}

// DetectFileType dispatches on the filename suffix, case-insensitively.
func DetectFileType(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return FileTypeExcel
	case ".csv":
		return FileTypeCSV
	case ".txt", ".md":
		return FileTypePlainText
	default:
		return FileTypeUnsupported
	}
}

func (t FileType) IsTabular() bool {
	return t == FileTypeExcel || t == FileTypeCSV
}

// FileStem is the base name without its extension.
func FileStem(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
