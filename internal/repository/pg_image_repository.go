package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"staging-server/internal/models"
)

// Compile-time check to ensure pgImageRepository implements the interface
var _ ImageRepository = (*pgImageRepository)(nil)

// pgImageRepository реализует ImageRepository для PostgreSQL.
// Принимает пул (а не DBTX): CreateNextVersion открывает транзакцию.
type pgImageRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgImageRepository создает новый экземпляр pgImageRepository.
func NewPgImageRepository(pool *pgxpool.Pool, logger *zap.Logger) ImageRepository {
	return &pgImageRepository{
		pool:   pool,
		logger: logger.Named("PgImageRepo"),
	}
}

const imageColumns = `
	id, workspace_id, user_id, project_id,
	original_image_url, result_image_url, prompt,
	status, error_message, version, parent_id, metadata,
	created_at, updated_at`

// Create вставляет корневую запись цепочки (version 1, parent_id NULL).
func (r *pgImageRepository) Create(ctx context.Context, rec *models.ImageRecord) error {
	query := `
        INSERT INTO image_generations
            (id, workspace_id, user_id, project_id, original_image_url, result_image_url,
             prompt, status, error_message, version, parent_id, metadata, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NULL, $10, NOW(), NOW())
    `
	logFields := []zap.Field{zap.String("imageID", rec.ID.String()), zap.String("projectID", rec.ProjectID.String())}
	r.logger.Debug("Creating root image record", logFields...)

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.WorkspaceID,
		rec.UserID,
		rec.ProjectID,
		rec.OriginalImageURL,
		rec.ResultImageURL,
		rec.Prompt,
		rec.Status,
		rec.ErrorMessage,
		rec.Metadata,
	)
	if err != nil {
		r.logger.Error("Failed to create image record", append(logFields, zap.Error(err))...)
		return fmt.Errorf("database error creating image record: %w", err)
	}
	return nil
}

// GetByID возвращает запись по id.
func (r *pgImageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error) {
	query := `SELECT ` + imageColumns + ` FROM image_generations WHERE id = $1`

	var rec models.ImageRecord
	err := pgxscan.Get(ctx, r.pool, &rec, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Image record not found", zap.String("imageID", id.String()))
			return nil, fmt.Errorf("%w: image '%s'", models.ErrImageNotFound, id)
		}
		r.logger.Error("Error querying image record", zap.String("imageID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("database error querying image '%s': %w", id, err)
	}
	return &rec, nil
}

// ListChain корень + дочерние версии, по возрастанию version.
func (r *pgImageRepository) ListChain(ctx context.Context, rootID uuid.UUID) ([]models.ImageRecord, error) {
	query := `SELECT ` + imageColumns + `
        FROM image_generations
        WHERE id = $1 OR parent_id = $1
        ORDER BY version ASC`

	var records []models.ImageRecord
	if err := pgxscan.Select(ctx, r.pool, &records, query, rootID); err != nil {
		r.logger.Error("Failed to list version chain", zap.String("rootID", rootID.String()), zap.Error(err))
		return nil, fmt.Errorf("database error listing version chain for '%s': %w", rootID, err)
	}
	return records, nil
}

// LatestVersion max(version) цепочки, 0 для неизвестного root.
func (r *pgImageRepository) LatestVersion(ctx context.Context, rootID uuid.UUID) (int, error) {
	query := `SELECT COALESCE(MAX(version), 0) FROM image_generations WHERE id = $1 OR parent_id = $1`

	var latest int
	if err := r.pool.QueryRow(ctx, query, rootID).Scan(&latest); err != nil {
		r.logger.Error("Failed to query latest version", zap.String("rootID", rootID.String()), zap.Error(err))
		return 0, fmt.Errorf("database error querying latest version for '%s': %w", rootID, err)
	}
	return latest, nil
}

// CreateNextVersion атомарная вставка следующей версии. Шаг
// "вычислить max(version)+1 и вставить" выполняется одним INSERT..SELECT
// в транзакции и защищен уникальным индексом по (корень, version):
// две гонящихся вставки на одну цепочку не получат одинаковую версию.
func (r *pgImageRepository) CreateNextVersion(ctx context.Context, rootID uuid.UUID, truncateAfter *int, rec *models.ImageRecord) (*models.ImageRecord, []models.ImageRecord, error) {
	logFields := []zap.Field{zap.String("rootID", rootID.String()), zap.String("imageID", rec.ID.String())}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback после commit безвреден

	var truncated []models.ImageRecord
	if truncateAfter != nil {
		truncated, err = r.truncateAfterTx(ctx, tx, rootID, *truncateAfter)
		if err != nil {
			r.logger.Error("Failed to truncate chain before insert", append(logFields, zap.Error(err))...)
			return nil, nil, err
		}
		r.logger.Info("Truncated newer versions before re-edit",
			append(logFields, zap.Int("after_version", *truncateAfter), zap.Int("deleted", len(truncated)))...)
	}

	insertQuery := `
        INSERT INTO image_generations
            (id, workspace_id, user_id, project_id, original_image_url, result_image_url,
             prompt, status, error_message, version, parent_id, metadata, created_at, updated_at)
        SELECT
            $1, $2, $3, $4, $5, NULL,
            $6, $7, NULL, COALESCE(MAX(version), 0) + 1, $8, $9, NOW(), NOW()
        FROM image_generations
        WHERE id = $8 OR parent_id = $8
        RETURNING version, created_at, updated_at
    `
	created := *rec
	created.ParentID = &rootID
	err = tx.QueryRow(ctx, insertQuery,
		created.ID,
		created.WorkspaceID,
		created.UserID,
		created.ProjectID,
		created.OriginalImageURL,
		created.Prompt,
		created.Status,
		rootID,
		created.Metadata,
	).Scan(&created.Version, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert next version", append(logFields, zap.Error(err))...)
		return nil, nil, fmt.Errorf("database error inserting next version for '%s': %w", rootID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit next version insert: %w", err)
	}

	r.logger.Debug("Next version created", append(logFields, zap.Int("version", created.Version))...)
	return &created, truncated, nil
}

// TruncateAfter удаление без сопутствующей вставки (отдельная операция менеджера цепочек).
func (r *pgImageRepository) TruncateAfter(ctx context.Context, rootID uuid.UUID, afterVersion int) ([]models.ImageRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	truncated, err := r.truncateAfterTx(ctx, tx, rootID, afterVersion)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit truncation: %w", err)
	}
	return truncated, nil
}

// truncateAfterTx выбирает и удаляет записи цепочки с version > afterVersion.
func (r *pgImageRepository) truncateAfterTx(ctx context.Context, tx pgx.Tx, rootID uuid.UUID, afterVersion int) ([]models.ImageRecord, error) {
	selectQuery := `SELECT ` + imageColumns + `
        FROM image_generations
        WHERE (id = $1 OR parent_id = $1) AND version > $2
        ORDER BY version ASC`

	var victims []models.ImageRecord
	if err := pgxscan.Select(ctx, tx, &victims, selectQuery, rootID, afterVersion); err != nil {
		return nil, fmt.Errorf("database error selecting versions to truncate for '%s': %w", rootID, err)
	}
	if len(victims) == 0 {
		// Неизвестный root или нечего удалять — no-op
		return nil, nil
	}

	ids := make([]string, len(victims))
	for i, v := range victims {
		ids[i] = v.ID.String()
	}

	deleteQuery := `DELETE FROM image_generations WHERE id = ANY($1::uuid[])`
	cmdTag, err := tx.Exec(ctx, deleteQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("database error truncating chain '%s': %w", rootID, err)
	}
	if cmdTag.RowsAffected() != int64(len(victims)) {
		r.logger.Warn("Truncation affected unexpected row count",
			zap.String("rootID", rootID.String()),
			zap.Int("expected", len(victims)),
			zap.Int64("affected", cmdTag.RowsAffected()))
	}

	return victims, nil
}

// UpdateStatus переводит запись в новый статус. Result URL и текст ошибки
// затираются только явно переданными значениями.
func (r *pgImageRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ImageStatus, resultURL, errorMessage *string) (*models.ImageRecord, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid image status %q", models.ErrInvalidInput, status)
	}

	query := `
        UPDATE image_generations SET
            status = $2,
            result_image_url = COALESCE($3, result_image_url),
            error_message = $4,
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + imageColumns

	var rec models.ImageRecord
	err := pgxscan.Get(ctx, r.pool, &rec, query, id, status, resultURL, errorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: image '%s'", models.ErrImageNotFound, id)
		}
		r.logger.Error("Failed to update image status",
			zap.String("imageID", id.String()), zap.String("status", string(status)), zap.Error(err))
		return nil, fmt.Errorf("database error updating status of image '%s': %w", id, err)
	}

	r.logger.Debug("Image status updated",
		zap.String("imageID", id.String()), zap.String("status", string(status)))
	return &rec, nil
}

// RecountProject пересчитывает денормализованные счетчики и статус проекта
// по фактическим статусам его изображений.
func (r *pgImageRepository) RecountProject(ctx context.Context, projectID uuid.UUID) error {
	query := `
        UPDATE projects p SET
            image_count = c.total,
            completed_count = c.completed,
            status = CASE
                WHEN c.total > 0 AND c.completed = c.total THEN 'completed'
                WHEN c.completed > 0 OR c.processing > 0 OR c.pending > 0 THEN 'processing'
                WHEN c.failed > 0 THEN 'failed'
                ELSE 'pending'
            END,
            updated_at = NOW()
        FROM (
            SELECT
                COUNT(*) AS total,
                COUNT(*) FILTER (WHERE status = 'completed')  AS completed,
                COUNT(*) FILTER (WHERE status = 'processing') AS processing,
                COUNT(*) FILTER (WHERE status = 'pending')    AS pending,
                COUNT(*) FILTER (WHERE status = 'failed')     AS failed
            FROM image_generations
            WHERE project_id = $1
        ) c
        WHERE p.id = $1
    `
	if _, err := r.pool.Exec(ctx, query, projectID); err != nil {
		r.logger.Error("Failed to recount project", zap.String("projectID", projectID.String()), zap.Error(err))
		return fmt.Errorf("database error recounting project '%s': %w", projectID, err)
	}
	return nil
}

// SetProjectThumbnailIfEmpty выставляет миниатюру только если она еще не задана.
func (r *pgImageRepository) SetProjectThumbnailIfEmpty(ctx context.Context, projectID uuid.UUID, url string) error {
	query := `UPDATE projects SET thumbnail_url = $2, updated_at = NOW()
        WHERE id = $1 AND (thumbnail_url IS NULL OR thumbnail_url = '')`

	cmdTag, err := r.pool.Exec(ctx, query, projectID, url)
	if err != nil {
		r.logger.Error("Failed to set project thumbnail", zap.String("projectID", projectID.String()), zap.Error(err))
		return fmt.Errorf("database error setting thumbnail for project '%s': %w", projectID, err)
	}
	if cmdTag.RowsAffected() > 0 {
		r.logger.Debug("Project thumbnail set", zap.String("projectID", projectID.String()), zap.String("url", url))
	}
	return nil
}
