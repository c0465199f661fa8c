package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/JRChen0927/SimuAgent/internal/config"
	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
)

const testRegistry = `{
  "models": {
    "default_provider": "ollama",
    "providers": {"ollama": {"models": []}}
  },
  "storage": {
    "supported_formats": ["txt", "json", "md", "html"]
  }
}`

type failingProcessor struct{}

func (failingProcessor) Process(ctx context.Context, file *models.KnowledgeFile) error {
	return errors.New("parser crashed")
}

func newTestService(t *testing.T, processor Processor, maxFileSize int64) (*Service, string) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}

	registryPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(registryPath, []byte(testRegistry), 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	registry := config.NewStore(registryPath)
	if err := registry.Load(); err != nil {
		t.Fatalf("Load registry: %v", err)
	}

	uploadDir := t.TempDir()
	if processor == nil {
		processor = NewStubProcessor()
	}

	return NewService(db, registry, uploadDir, maxFileSize, processor), uploadDir
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

func TestUploadStoresFileUnderGeneratedName(t *testing.T) {
	svc, uploadDir := newTestService(t, nil, 10*1024)

	info, err := svc.Upload("notes.txt", []byte("hello world"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if info.Filename != "notes.txt" {
		t.Errorf("info should carry the original name, got %q", info.Filename)
	}
	if info.Size != 11 || info.Type != "txt" || info.Status != "uploaded" {
		t.Errorf("unexpected info: %+v", info)
	}

	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stored file, got %d", len(entries))
	}
	stored := entries[0].Name()
	if stored == "notes.txt" {
		t.Error("stored name must be generated, not the original")
	}
	if !strings.HasSuffix(stored, ".txt") {
		t.Errorf("stored name should keep the extension, got %q", stored)
	}
}

func TestUploadValidation(t *testing.T) {
	svc, _ := newTestService(t, nil, 1024)

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"unsupported extension", "binary.exe", []byte("x")},
		{"no extension", "README", []byte("x")},
		{"over size limit", "big.txt", make([]byte, 2048)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(tt.filename, tt.content)
			if err == nil {
				t.Fatal("expected validation error")
			}
			assertErrorCode(t, err, apperror.CodeValidation)
		})
	}
}

func TestPreviewTruncation(t *testing.T) {
	svc, _ := newTestService(t, nil, 10*1024)

	long := strings.Repeat("a", 1500)
	info, err := svc.Upload("long.txt", []byte(long))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	preview, err := svc.Preview(info.ID)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(preview.Content) != 1003 || !strings.HasSuffix(preview.Content, "...") {
		t.Errorf("expected 1000 chars plus ellipsis, got %d chars", len(preview.Content))
	}
	if preview.FullSize != 1500 {
		t.Errorf("expected full size 1500, got %d", preview.FullSize)
	}
}

func TestPreviewMultibyteCharacters(t *testing.T) {
	svc, _ := newTestService(t, nil, 10*1024)

	short := strings.Repeat("你", 341)
	info, err := svc.Upload("short.txt", []byte(short))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	preview, err := svc.Preview(info.ID)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Content != short {
		t.Errorf("expected 341-character file returned whole, got %d runes", utf8.RuneCountInString(preview.Content))
	}

	long := strings.Repeat("好", 1200)
	info, err = svc.Upload("long.txt", []byte(long))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	preview, err = svc.Preview(info.ID)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !utf8.ValidString(preview.Content) {
		t.Error("preview must not split a rune")
	}
	if got := utf8.RuneCountInString(preview.Content); got != 1003 {
		t.Errorf("expected 1000 characters plus ellipsis, got %d", got)
	}
	if !strings.HasSuffix(preview.Content, "好...") {
		t.Error("expected truncated content ending at a character boundary")
	}
}

func TestPreviewJSONPrettyPrinted(t *testing.T) {
	svc, _ := newTestService(t, nil, 10*1024)

	info, err := svc.Upload("data.json", []byte(`{"b":1,"a":[2,3]}`))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	preview, err := svc.Preview(info.ID)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !strings.Contains(preview.Content, "\n  ") {
		t.Errorf("json preview should be indented, got %q", preview.Content)
	}
}

func TestPreviewHTMLExtractsText(t *testing.T) {
	svc, _ := newTestService(t, nil, 10*1024)

	html := "<html><body><h1>Title</h1><p>Some body text.</p></body></html>"
	info, err := svc.Upload("page.html", []byte(html))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	preview, err := svc.Preview(info.ID)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if strings.Contains(preview.Content, "<") {
		t.Errorf("html preview should strip tags, got %q", preview.Content)
	}
	if !strings.Contains(preview.Content, "Some body text.") {
		t.Errorf("html preview should keep text, got %q", preview.Content)
	}
}

func TestDeleteRemovesDiskAndRecord(t *testing.T) {
	svc, uploadDir := newTestService(t, nil, 10*1024)

	info, err := svc.Upload("notes.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := svc.Delete(info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("file should be removed from disk, found %d entries", len(entries))
	}

	_, err = svc.Get(info.ID)
	if err == nil {
		t.Fatal("expected not found after delete")
	}
	assertErrorCode(t, err, apperror.CodeNotFound)
}

func TestProcessTransitions(t *testing.T) {
	svc, _ := newTestService(t, nil, 10*1024)

	info, err := svc.Upload("notes.md", []byte("# hi"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	result, err := svc.Process(context.Background(), info.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != "processed" {
		t.Errorf("expected status processed, got %q", result.Status)
	}

	got, err := svc.Get(info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Processed || got.Status != "processed" || got.ProcessedTime == nil {
		t.Errorf("file not marked processed: %+v", got)
	}

	// second run is a no-op
	result, err = svc.Process(context.Background(), info.ID)
	if err != nil {
		t.Fatalf("Process rerun: %v", err)
	}
	if result.Message != "File already processed" {
		t.Errorf("unexpected rerun message: %q", result.Message)
	}
}

func TestProcessFailureRecordsError(t *testing.T) {
	svc, _ := newTestService(t, failingProcessor{}, 10*1024)

	info, err := svc.Upload("notes.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	_, err = svc.Process(context.Background(), info.ID)
	if err == nil {
		t.Fatal("expected processing error")
	}

	got, getErr := svc.Get(info.ID)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if got.Status != "error" || got.Processed {
		t.Errorf("expected error status, got %+v", got)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "parser crashed" {
		t.Errorf("error message not recorded: %v", got.ErrorMessage)
	}
}
