package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/KNU-SingalProject/back/internal/services"

	"github.com/rs/zerolog/log"
)

// CreateBoardRequest holds the text fields of a multipart board post
type CreateBoardRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=100"`
	Content string `json:"content" validate:"max=5000"`
}

// UpdateBoardRequest is the body of PATCH /board/{board_id}
type UpdateBoardRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=100"`
	Content *string `json:"content" validate:"omitempty,max=5000"`
}

// BoardHandler handles bulletin board requests
type BoardHandler struct {
	boardService   *services.BoardService
	maxUploadBytes int64
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(boardService *services.BoardService, maxUploadBytes int64) *BoardHandler {
	return &BoardHandler{
		boardService:   boardService,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateBoard handles POST /api/v1/board (multipart: title, content, images)
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondError(w, "Invalid multipart form", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := CreateBoardRequest{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
	}
	if !validateRequest(w, &req) {
		return
	}

	var files []*multipart.FileHeader
	files = append(files, r.MultipartForm.File["images"]...)
	files = append(files, r.MultipartForm.File["images[]"]...)

	images := make([]services.ImageUpload, 0, len(files))
	for _, file := range files {
		data, err := readFormFile(file)
		if err != nil {
			log.Error().Err(err).Str("filename", file.Filename).Msg("Failed to read uploaded image")
			respondError(w, "Failed to read "+file.Filename, "INVALID_REQUEST", http.StatusBadRequest)
			return
		}
		images = append(images, services.ImageUpload{Filename: file.Filename, Data: data})
	}

	board, err := h.boardService.CreateBoard(r.Context(), req.Title, req.Content, images)
	if err != nil {
		log.Error().
			Err(err).
			Int("images", len(images)).
			Msg("Failed to create board")
		respondServiceError(w, err)
		return
	}

	log.Info().
		Int64("board_id", board.ID).
		Int("images", len(board.Images)).
		Msg("Board created")

	respondJSON(w, http.StatusCreated, board)
}

// ListBoards handles GET /api/v1/board
func (h *BoardHandler) ListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.boardService.ListBoards(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list boards")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"boards": boards,
		"total":  len(boards),
	})
}

// GetBoard handles GET /api/v1/board/{board_id}
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "board_id")
	if !ok {
		return
	}

	board, err := h.boardService.GetBoard(r.Context(), boardID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, board)
}

// UpdateBoard handles PATCH /api/v1/board/{board_id}
func (h *BoardHandler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "board_id")
	if !ok {
		return
	}

	var req UpdateBoardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	board, err := h.boardService.UpdateBoard(r.Context(), boardID, req.Title, req.Content)
	if err != nil {
		log.Error().Err(err).Int64("board_id", boardID).Msg("Failed to update board")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, board)
}

// DeleteBoard handles DELETE /api/v1/board/{board_id}
func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(w, r, "board_id")
	if !ok {
		return
	}

	if err := h.boardService.DeleteBoard(r.Context(), boardID); err != nil {
		log.Error().Err(err).Int64("board_id", boardID).Msg("Failed to delete board")
		respondServiceError(w, err)
		return
	}

	log.Info().Int64("board_id", boardID).Msg("Board deleted")
	w.WriteHeader(http.StatusNoContent)
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	return io.ReadAll(file)
}
