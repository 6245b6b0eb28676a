package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"mcq_tutor_backend/internal/model"
	"mcq_tutor_backend/internal/repository"
	"mcq_tutor_backend/internal/util"
	"mcq_tutor_backend/pkg/logger"

	"go.uber.org/zap"
)

const minLectureChars = 50

// DocumentService 讲义上传与切分
type DocumentService struct {
	lectureRepo *repository.LectureRepository
	storage     *StorageService
}

func NewDocumentService(lectureRepo *repository.LectureRepository, storage *StorageService) *DocumentService {
	return &DocumentService{
		lectureRepo: lectureRepo,
		storage:     storage,
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeWhitespace 折叠连续空白并去除首尾空白
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// ChunkIntoSections 按空行把讲义切成段落小节，没有空行时整篇作为单节
func ChunkIntoSections(text string) []string {
	var sections []string
	for _, p := range strings.Split(text, "\n\n") {
		if s := strings.TrimSpace(p); s != "" {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		return []string{text}
	}
	return sections
}

// ProcessUpload 校验并入库一篇讲义，原始文件归档到对象存储。
// 归档失败只记日志，讲义本身照常入库。
func (s *DocumentService) ProcessUpload(ctx context.Context, filename string, content []byte) (*model.Lecture, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: must be UTF-8", util.ErrInvalidUpload)
	}

	rawText := string(content)
	if strings.TrimSpace(rawText) == "" {
		return nil, util.ErrInvalidUpload
	}

	cleanText := NormalizeWhitespace(rawText)
	if len(cleanText) < minLectureChars {
		return nil, util.ErrLectureTooShort
	}

	fileURL := ""
	objectName := fmt.Sprintf("lectures/%s%s", model.GenerateUUID(), filepath.Ext(filename))
	url, err := s.storage.Upload(ctx, objectName, bytes.NewReader(content), int64(len(content)), "text/plain; charset=utf-8")
	if err != nil {
		logger.Log.Warn("failed to archive lecture file",
			zap.String("filename", filename),
			zap.Error(err))
	} else {
		fileURL = url
	}

	lecture := &model.Lecture{
		Title:     filename,
		RawText:   rawText,
		CleanText: cleanText,
		FileURL:   fileURL,
		IsActive:  true,
	}

	sectionTexts := ChunkIntoSections(strings.TrimSpace(rawText))
	sections := make([]model.Section, 0, len(sectionTexts))
	for i, text := range sectionTexts {
		sections = append(sections, model.Section{
			Heading:    fmt.Sprintf("Section %d", i+1),
			Content:    text,
			OrderIndex: i + 1,
		})
	}

	if err := s.lectureRepo.CreateWithSections(lecture, sections); err != nil {
		return nil, err
	}
	return lecture, nil
}

func (s *DocumentService) ListLectures() ([]model.Lecture, error) {
	return s.lectureRepo.ListActive()
}

func (s *DocumentService) GetLecture(id uint) (*model.Lecture, error) {
	return s.lectureRepo.FindByID(id)
}

func (s *DocumentService) DeleteLecture(id uint) error {
	return s.lectureRepo.SoftDelete(id)
}
