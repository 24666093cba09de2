package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/KNU-SingalProject/back/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BoardRepository handles database operations for board posts and their images
type BoardRepository struct {
	pool *pgxpool.Pool
	db   DBTX
}

// NewBoardRepository creates a new board repository
func NewBoardRepository(pool *pgxpool.Pool) *BoardRepository {
	return &BoardRepository{pool: pool, db: pool}
}

// Create inserts a post and its image URLs in one transaction
func (r *BoardRepository) Create(ctx context.Context, board *models.Board) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO boards (title, content) VALUES ($1, $2) RETURNING id, created_at`,
			board.Title, board.Content,
		).Scan(&board.ID, &board.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create board: %w", err)
		}

		for _, url := range board.Images {
			if _, err := tx.Exec(ctx,
				`INSERT INTO board_images (board_id, image_url) VALUES ($1, $2)`,
				board.ID, url,
			); err != nil {
				return fmt.Errorf("failed to add board image: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a post with its images
func (r *BoardRepository) GetByID(ctx context.Context, id int64) (*models.Board, error) {
	var board models.Board
	err := r.db.QueryRow(ctx,
		`SELECT id, title, content, created_at FROM boards WHERE id = $1`, id,
	).Scan(&board.ID, &board.Title, &board.Content, &board.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to get board: %w", err)
	}

	images, err := r.imagesByBoard(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	board.Images = images[id]
	if board.Images == nil {
		board.Images = []string{}
	}

	return &board, nil
}

// List returns every post, newest first
func (r *BoardRepository) List(ctx context.Context) ([]*models.Board, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, title, content, created_at FROM boards ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	boards := make([]*models.Board, 0)
	var ids []int64
	for rows.Next() {
		var board models.Board
		if err := rows.Scan(&board.ID, &board.Title, &board.Content, &board.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, &board)
		ids = append(ids, board.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}

	if len(ids) == 0 {
		return boards, nil
	}

	images, err := r.imagesByBoard(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, board := range boards {
		board.Images = images[board.ID]
		if board.Images == nil {
			board.Images = []string{}
		}
	}

	return boards, nil
}

// Update changes the title and/or content of a post; nil fields are left as they are
func (r *BoardRepository) Update(ctx context.Context, id int64, title, content *string) error {
	query := `
		UPDATE boards
		SET title = COALESCE($2, title), content = COALESCE($3, content)
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query, id, title, content)
	if err != nil {
		return fmt.Errorf("failed to update board: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrBoardNotFound
	}
	return nil
}

// Delete deletes a post and returns the URLs of the images it owned
func (r *BoardRepository) Delete(ctx context.Context, id int64) ([]string, error) {
	var urls []string
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT image_url FROM board_images WHERE board_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to get board images: %w", err)
		}
		urls, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("failed to scan board images: %w", err)
		}

		result, err := tx.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete board: %w", err)
		}
		if result.RowsAffected() == 0 {
			return models.ErrBoardNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

func (r *BoardRepository) imagesByBoard(ctx context.Context, ids []int64) (map[int64][]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT board_id, image_url FROM board_images WHERE board_id = ANY($1) ORDER BY id`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get board images: %w", err)
	}
	defer rows.Close()

	images := make(map[int64][]string, len(ids))
	for rows.Next() {
		var (
			boardID int64
			url     string
		)
		if err := rows.Scan(&boardID, &url); err != nil {
			return nil, fmt.Errorf("failed to scan board image: %w", err)
		}
		images[boardID] = append(images[boardID], url)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating board images: %w", err)
	}

	return images, nil
}
