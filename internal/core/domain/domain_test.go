package domain

import (
	"errors"
	"testing"
)

func TestDetectFileTypeIsCaseInsensitive(t *testing.T) {
	cases := map[string]FileType{
		"orders.xlsx":     FileTypeExcel,
		"LEGACY.XLS":      FileTypeExcel,
		"data.Csv":        FileTypeCSV,
		"notes.txt":       FileTypePlainText,
		"README.MD":       FileTypePlainText,
		"report.pdf":      FileTypeUnsupported,
		"no-extension":    FileTypeUnsupported,
		"archive.csv.zip": FileTypeUnsupported,
	}
	for name, want := range cases {
		if got := DetectFileType(name); got != want {
			t.Fatalf("DetectFileType(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestFileStemStripsDirectoryAndExtension(t *testing.T) {
	cases := map[string]string{
		"orders.xlsx":          "orders",
		"dir/sub/q1.sales.csv": "q1.sales",
		`C:\uploads\stock.xls`: "stock",
		"plain":                "plain",
	}
	for in, want := range cases {
		if got := FileStem(in); got != want {
			t.Fatalf("FileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFallbackJoinsContextWithSeparator(t *testing.T) {
	result := Fallback([]string{"a", "b", "c"}, errors.New("timeout"))
	if !result.UsedFallback() {
		t.Fatalf("expected fallback kind")
	}
	if result.Answer != "a"+FallbackSeparator+"b"+FallbackSeparator+"c" {
		t.Fatalf("unexpected fallback answer %q", result.Answer)
	}
	if result.FallbackReason != "timeout" {
		t.Fatalf("unexpected reason %q", result.FallbackReason)
	}
	if Generated("x").UsedFallback() {
		t.Fatalf("generated result must not be flagged as fallback")
	}
}

func TestFileErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("bad zip")
	err := error(NewFileError(ErrIngest, "orders.xlsx", cause))
	if !IsKind(err, ErrIngest) {
		t.Fatalf("expected ErrIngest kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if IsKind(err, ErrDecode) {
		t.Fatalf("unexpected ErrDecode kind")
	}
	var fileErr *FileError
	if !errors.As(err, &fileErr) || fileErr.Filename != "orders.xlsx" {
		t.Fatalf("expected FileError with filename, got %v", err)
	}
}

func TestRetrievalQueryValidate(t *testing.T) {
	if err := (RetrievalQuery{Question: "q", K: 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (RetrievalQuery{Question: "q", K: 0}).Validate(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for k=0, got %v", err)
	}
	if err := (RetrievalQuery{Question: "  ", K: 3}).Validate(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank question, got %v", err)
	}
}

func TestChatUploadSourceIsTagged(t *testing.T) {
	meta := Metadata{Source: ChatUploadSource("a.csv")}
	if !meta.IsChatUpload() || meta.Source != "chat_upload:a.csv" {
		t.Fatalf("unexpected chat upload metadata %+v", meta)
	}
	if (Metadata{Source: "a.csv"}).IsChatUpload() {
		t.Fatalf("ingested source must not be tagged as chat upload")
	}
}
