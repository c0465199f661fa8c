package files

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/internal/config"
	"github.com/JRChen0927/SimuAgent/internal/storage/models"
	"github.com/JRChen0927/SimuAgent/internal/storage/sqlite"
	"github.com/JRChen0927/SimuAgent/pkg/apperror"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

const previewLimit = 1000

type FileInfo struct {
	ID            int64      `json:"id"`
	Filename      string     `json:"filename"`
	Size          int64      `json:"size"`
	Type          string     `json:"type"`
	UploadTime    time.Time  `json:"upload_time"`
	ProcessedTime *time.Time `json:"processed_time,omitempty"`
	Status        string     `json:"status"`
	Processed     bool       `json:"processed"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
}

type PreviewResult struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	FullSize int64  `json:"full_size"`
}

type ProcessResult struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type Service struct {
	db          *sqlite.Client
	registry    *config.Store
	uploadDir   string
	maxFileSize int64
	processor   Processor
}

func NewService(db *sqlite.Client, registry *config.Store, uploadDir string, maxFileSize int64, processor Processor) *Service {
	return &Service{
		db:          db,
		registry:    registry,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
		processor:   processor,
	}
}

// Upload validates the file against the registry's allowed formats and the
// size limit, writes it to disk under a generated name, and records it. The
// file is removed again if the database insert fails.
func (s *Service) Upload(originalFilename string, content []byte) (*FileInfo, error) {
	ext := extension(originalFilename)
	formats := s.registry.SupportedFormats()
	if !contains(formats, ext) {
		return nil, apperror.Validation(
			"Unsupported file format: %s. Supported formats: %s", ext, strings.Join(formats, ", "))
	}

	size := int64(len(content))
	if size > s.maxFileSize {
		return nil, apperror.Validation(
			"File size exceeds limit: %d bytes. Maximum allowed: %d bytes", size, s.maxFileSize)
	}

	filename := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	path := filepath.Join(s.uploadDir, filename)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, apperror.Internal("Failed to store file", err)
	}

	file := &models.KnowledgeFile{
		Filename:         filename,
		OriginalFilename: originalFilename,
		FilePath:         path,
		FileSize:         size,
		FileType:         ext,
		UploadTime:       time.Now().UTC(),
		Status:           "uploaded",
	}

	id, err := s.db.InsertKnowledgeFile(file)
	if err != nil {
		os.Remove(path)
		return nil, apperror.Internal("Failed to record file", err)
	}
	file.ID = id

	logger.Info("File uploaded",
		zap.Int64("file_id", id),
		zap.String("filename", originalFilename),
		zap.Int64("size", size),
	)

	return fileInfo(file), nil
}

func (s *Service) List() ([]FileInfo, error) {
	records, err := s.db.ListKnowledgeFiles()
	if err != nil {
		return nil, apperror.Internal("Failed to list files", err)
	}

	infos := make([]FileInfo, 0, len(records))
	for i := range records {
		infos = append(infos, *fileInfo(&records[i]))
	}
	return infos, nil
}

func (s *Service) Get(id int64) (*FileInfo, error) {
	file, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return fileInfo(file), nil
}

// Preview returns the first part of the file's content. JSON is re-indented
// before truncation and HTML is reduced to its text.
func (s *Service) Preview(id int64) (*PreviewResult, error) {
	file, err := s.get(id)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(file.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NotFound("File no longer exists on disk")
		}
		return nil, apperror.Internal("Failed to read file", err)
	}

	var content string
	switch file.FileType {
	case "txt", "md", "csv":
		content = truncateWithEllipsis(string(raw))
	case "json":
		var data interface{}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, apperror.Internal("Failed to parse JSON file", err)
		}
		pretty, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return nil, apperror.Internal("Failed to format JSON file", err)
		}
		content = truncate(string(pretty))
	case "html":
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
		if err != nil {
			return nil, apperror.Internal("Failed to parse HTML file", err)
		}
		content = truncateWithEllipsis(strings.TrimSpace(doc.Text()))
	default:
		content = fmt.Sprintf("Preview not supported for file type %s", file.FileType)
	}

	return &PreviewResult{
		Filename: file.OriginalFilename,
		Content:  content,
		FullSize: file.FileSize,
	}, nil
}

// Delete removes the file from disk and then its record. A file already gone
// from disk does not block deleting the record.
func (s *Service) Delete(id int64) error {
	file, err := s.get(id)
	if err != nil {
		return err
	}

	if err := os.Remove(file.FilePath); err != nil && !os.IsNotExist(err) {
		return apperror.Internal("Failed to remove file", err)
	}

	if _, err := s.db.DeleteKnowledgeFile(id); err != nil {
		return apperror.Internal("Failed to delete file record", err)
	}

	logger.Info("File deleted", zap.Int64("file_id", id))
	return nil
}

// Process runs the configured processor over the file, tracking status
// through processing to processed or error. An already processed file is a
// no-op.
func (s *Service) Process(ctx context.Context, id int64) (*ProcessResult, error) {
	file, err := s.get(id)
	if err != nil {
		return nil, err
	}

	if file.Processed {
		return &ProcessResult{Message: "File already processed", Status: "processed"}, nil
	}

	if err := s.db.SetKnowledgeFileStatus(id, "processing"); err != nil {
		return nil, apperror.Internal("Failed to update file status", err)
	}

	if err := s.processor.Process(ctx, file); err != nil {
		if markErr := s.db.MarkKnowledgeFileError(id, err.Error()); markErr != nil {
			logger.Error("Failed to record processing error",
				zap.Int64("file_id", id),
				zap.Error(markErr),
			)
		}
		return nil, apperror.Internal("File processing failed", err)
	}

	if err := s.db.MarkKnowledgeFileProcessed(id, time.Now().UTC()); err != nil {
		return nil, apperror.Internal("Failed to update file status", err)
	}

	logger.Info("File processed", zap.Int64("file_id", id))

	return &ProcessResult{Message: "File processed successfully", Status: "processed"}, nil
}

func (s *Service) get(id int64) (*models.KnowledgeFile, error) {
	file, err := s.db.GetKnowledgeFile(id)
	if err != nil {
		return nil, apperror.Internal("Failed to load file", err)
	}
	if file == nil {
		return nil, apperror.NotFound("File not found")
	}
	return file, nil
}

func fileInfo(file *models.KnowledgeFile) *FileInfo {
	return &FileInfo{
		ID:            file.ID,
		Filename:      file.OriginalFilename,
		Size:          file.FileSize,
		Type:          file.FileType,
		UploadTime:    file.UploadTime,
		ProcessedTime: file.ProcessedTime,
		Status:        file.Status,
		Processed:     file.Processed,
		ErrorMessage:  file.ErrorMessage,
	}
}

func extension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// truncate keeps the first previewLimit characters, not bytes, so multibyte
// content is never cut inside a rune.
func truncate(s string) string {
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:previewLimit])
}

func truncateWithEllipsis(s string) string {
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	return truncate(s) + "..."
}
