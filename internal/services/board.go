package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const boardImagePrefix = "board/"

// BoardStore persists board posts
type BoardStore interface {
	Create(ctx context.Context, board *models.Board) error
	GetByID(ctx context.Context, id int64) (*models.Board, error)
	List(ctx context.Context) ([]*models.Board, error)
	Update(ctx context.Context, id int64, title, content *string) error
	Delete(ctx context.Context, id int64) ([]string, error)
}

// BlobStore stores image objects
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// BoardService handles bulletin board posts
type BoardService struct {
	boards       BoardStore
	blobs        BlobStore
	maxImageSide int
}

// NewBoardService creates a new board service
func NewBoardService(boards BoardStore, blobs BlobStore, maxImageSide int) *BoardService {
	return &BoardService{
		boards:       boards,
		blobs:        blobs,
		maxImageSide: maxImageSide,
	}
}

// ImageUpload is one image attached to a new post
type ImageUpload struct {
	Filename string
	Data     []byte
}

// CreateBoard stores the images, then the post. Uploaded images are removed again if the post cannot be saved.
func (s *BoardService) CreateBoard(ctx context.Context, title, content string, images []ImageUpload) (*models.Board, error) {
	board := &models.Board{
		Title:   strings.TrimSpace(title),
		Content: content,
		Images:  make([]string, 0, len(images)),
	}

	var keys []string
	for _, image := range images {
		data, err := s.normalizeImage(image.Data)
		if err != nil {
			s.deleteKeys(ctx, keys)
			return nil, fmt.Errorf("%w: %s: %v", models.ErrInvalidImage, image.Filename, err)
		}

		key := boardImagePrefix + uuid.New().String() + ".jpg"
		url, err := s.blobs.Put(ctx, key, data, "image/jpeg")
		if err != nil {
			s.deleteKeys(ctx, keys)
			return nil, err
		}
		keys = append(keys, key)
		board.Images = append(board.Images, url)
	}

	if err := s.boards.Create(ctx, board); err != nil {
		s.deleteKeys(ctx, keys)
		return nil, err
	}

	return board, nil
}

// GetBoard returns a post with its images
func (s *BoardService) GetBoard(ctx context.Context, id int64) (*models.Board, error) {
	return s.boards.GetByID(ctx, id)
}

// ListBoards returns every post, newest first
func (s *BoardService) ListBoards(ctx context.Context) ([]*models.Board, error) {
	return s.boards.List(ctx)
}

// UpdateBoard changes the title and/or content of a post
func (s *BoardService) UpdateBoard(ctx context.Context, id int64, title, content *string) (*models.Board, error) {
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		title = &trimmed
	}

	if title != nil || content != nil {
		if err := s.boards.Update(ctx, id, title, content); err != nil {
			return nil, err
		}
	}

	return s.boards.GetByID(ctx, id)
}

// DeleteBoard deletes a post and then its image objects
func (s *BoardService) DeleteBoard(ctx context.Context, id int64) error {
	urls, err := s.boards.Delete(ctx, id)
	if err != nil {
		return err
	}

	var keys []string
	for _, url := range urls {
		if key, ok := s.blobs.KeyFromURL(url); ok {
			keys = append(keys, key)
		}
	}
	s.deleteKeys(ctx, keys)
	return nil
}

// normalizeImage applies EXIF orientation, bounds the longer side and re-encodes as JPEG
func (s *BoardService) normalizeImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() > s.maxImageSide || bounds.Dy() > s.maxImageSide {
		img = imaging.Fit(img, s.maxImageSide, s.maxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deleteKeys removes objects; failures are logged, the database stays the source of truth
func (s *BoardService) deleteKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to delete board image")
		}
	}
}
