package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/collection"
	"github.com/temcen/vocabimg/pkg/models"
)

//go:embed schema.sql
var schema string

// DBTX is the subset of pgxpool.Pool used by the store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PostgresStore keeps progress and image decisions in PostgreSQL.
type PostgresStore struct {
	db     DBTX
	logger *logrus.Logger
}

func NewPostgresStore(db DBTX, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info("Database schema applied")
	return nil
}

const progressColumns = `item_id, category_id, letter, item_name, status, target_count,
	collected_count, approved_count, rejected_count, manual_review_count, sources,
	search_attempts, average_quality_score, best_quality_score, scored_count,
	last_attempt, next_attempt, completed_at, errors, updated_at`

func (s *PostgresStore) GetProgress(ctx context.Context, itemID string) (*models.CollectionProgress, error) {
	row := s.db.QueryRow(ctx, `SELECT `+progressColumns+` FROM collection_progress WHERE item_id = $1`, itemID)
	p, err := scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, collection.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress %s: %w", itemID, err)
	}
	return p, nil
}

func (s *PostgresStore) SaveProgress(ctx context.Context, p models.CollectionProgress) error {
	sources, err := json.Marshal(p.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}
	progressErrors, err := json.Marshal(p.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}

	query := `
		INSERT INTO collection_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (item_id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			letter = EXCLUDED.letter,
			item_name = EXCLUDED.item_name,
			status = EXCLUDED.status,
			target_count = EXCLUDED.target_count,
			collected_count = EXCLUDED.collected_count,
			approved_count = EXCLUDED.approved_count,
			rejected_count = EXCLUDED.rejected_count,
			manual_review_count = EXCLUDED.manual_review_count,
			sources = EXCLUDED.sources,
			search_attempts = EXCLUDED.search_attempts,
			average_quality_score = EXCLUDED.average_quality_score,
			best_quality_score = EXCLUDED.best_quality_score,
			scored_count = EXCLUDED.scored_count,
			last_attempt = EXCLUDED.last_attempt,
			next_attempt = EXCLUDED.next_attempt,
			completed_at = EXCLUDED.completed_at,
			errors = EXCLUDED.errors,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(ctx, query,
		p.ItemID, p.CategoryID, p.Letter, p.ItemName, string(p.Status), p.TargetCount,
		p.CollectedCount, p.ApprovedCount, p.RejectedCount, p.ManualReviewCount, sources,
		p.SearchAttempts, p.AverageQualityScore, p.BestQualityScore, p.ScoredCount,
		p.LastAttempt, p.NextAttempt, p.CompletedAt, progressErrors, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save progress %s: %w", p.ItemID, err)
	}
	return nil
}

// DueItems returns records the scheduler may pick up. The final decision is
// made by collection.Due against the category strategy.
func (s *PostgresStore) DueItems(ctx context.Context, now time.Time, limit int) ([]models.CollectionProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM collection_progress
		WHERE status = 'pending'
		   OR (status IN ('collecting', 'failed') AND (next_attempt IS NULL OR next_attempt <= $1))
		   OR (status = 'completed' AND approved_count < target_count)
		ORDER BY updated_at ASC
		LIMIT $2`
	return s.queryProgress(ctx, query, now, limit)
}

func (s *PostgresStore) ListProgress(ctx context.Context, categoryID string) ([]models.CollectionProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM collection_progress
		WHERE category_id = $1
		ORDER BY letter, item_name`
	return s.queryProgress(ctx, query, categoryID)
}

func (s *PostgresStore) queryProgress(ctx context.Context, query string, args ...interface{}) ([]models.CollectionProgress, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var out []models.CollectionProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read progress rows: %w", err)
	}
	return out, nil
}

func scanProgress(row pgx.Row) (*models.CollectionProgress, error) {
	var (
		p              models.CollectionProgress
		status         string
		sources        []byte
		progressErrors []byte
	)
	err := row.Scan(
		&p.ItemID, &p.CategoryID, &p.Letter, &p.ItemName, &status, &p.TargetCount,
		&p.CollectedCount, &p.ApprovedCount, &p.RejectedCount, &p.ManualReviewCount, &sources,
		&p.SearchAttempts, &p.AverageQualityScore, &p.BestQualityScore, &p.ScoredCount,
		&p.LastAttempt, &p.NextAttempt, &p.CompletedAt, &progressErrors, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.ProgressStatus(status)
	p.Sources = map[string]models.SourceProgress{}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &p.Sources); err != nil {
			return nil, fmt.Errorf("invalid sources column: %w", err)
		}
	}
	if len(progressErrors) > 0 {
		if err := json.Unmarshal(progressErrors, &p.Errors); err != nil {
			return nil, fmt.Errorf("invalid errors column: %w", err)
		}
	}
	return &p, nil
}

// SaveImage upserts on (item_id, source, source_id) so a retried pass does
// not duplicate a decision.
func (s *PostgresStore) SaveImage(ctx context.Context, img models.StoredImage) error {
	license, err := json.Marshal(img.License)
	if err != nil {
		return fmt.Errorf("failed to encode license: %w", err)
	}
	author, err := json.Marshal(img.Author)
	if err != nil {
		return fmt.Errorf("failed to encode author: %w", err)
	}
	variants, err := json.Marshal(img.Variants)
	if err != nil {
		return fmt.Errorf("failed to encode variants: %w", err)
	}
	metadata, err := json.Marshal(img.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	qualityScore, err := json.Marshal(img.Quality)
	if err != nil {
		return fmt.Errorf("failed to encode quality: %w", err)
	}

	query := `
		INSERT INTO stored_images (id, item_id, category_id, source, source_id, source_url,
			license, author, file_path, variants, metadata, quality, overall_score,
			status, is_primary, created_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (item_id, source, source_id) DO UPDATE SET
			file_path = EXCLUDED.file_path,
			variants = EXCLUDED.variants,
			metadata = EXCLUDED.metadata,
			quality = EXCLUDED.quality,
			overall_score = EXCLUDED.overall_score,
			status = EXCLUDED.status,
			is_primary = stored_images.is_primary OR EXCLUDED.is_primary`

	_, err = s.db.Exec(ctx, query,
		img.ID, img.ItemID, img.CategoryID, img.Source, img.SourceID, img.SourceURL,
		license, author, img.FilePath, variants, metadata, qualityScore, img.Quality.Overall,
		string(img.Status), img.IsPrimary, img.CreatedAt, img.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save image %s: %w", img.ID, err)
	}
	return nil
}

func (s *PostgresStore) HasPrimary(ctx context.Context, itemID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stored_images WHERE item_id = $1 AND is_primary)`,
		itemID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check primary image for %s: %w", itemID, err)
	}
	return exists, nil
}

func (s *PostgresStore) HasImage(ctx context.Context, itemID, source, sourceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stored_images WHERE item_id = $1 AND source = $2 AND source_id = $3)`,
		itemID, source, sourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check image %s:%s: %w", source, sourceID, err)
	}
	return exists, nil
}

// ListImages returns every decision recorded for an item, best first.
func (s *PostgresStore) ListImages(ctx context.Context, itemID string) ([]models.StoredImage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, item_id, category_id, source, source_id, source_url, license, author,
			file_path, variants, metadata, quality, status, is_primary, created_at, reviewed_at
		FROM stored_images
		WHERE item_id = $1
		ORDER BY is_primary DESC, overall_score DESC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images for %s: %w", itemID, err)
	}
	defer rows.Close()

	var out []models.StoredImage
	for rows.Next() {
		var (
			img                                 models.StoredImage
			status                              string
			license, author, variants, metadata []byte
			qualityScore                        []byte
		)
		if err := rows.Scan(
			&img.ID, &img.ItemID, &img.CategoryID, &img.Source, &img.SourceID, &img.SourceURL,
			&license, &author, &img.FilePath, &variants, &metadata, &qualityScore,
			&status, &img.IsPrimary, &img.CreatedAt, &img.ReviewedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.Status = models.ImageStatus(status)

		for _, col := range []struct {
			data []byte
			into interface{}
		}{
			{license, &img.License},
			{author, &img.Author},
			{variants, &img.Variants},
			{metadata, &img.Metadata},
			{qualityScore, &img.Quality},
		} {
			if len(col.data) == 0 {
				continue
			}
			if err := json.Unmarshal(col.data, col.into); err != nil {
				return nil, fmt.Errorf("invalid image column: %w", err)
			}
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read image rows: %w", err)
	}
	return out, nil
}
