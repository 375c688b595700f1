package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"staging-server/internal/models"
)

// DBTX абстракция над *pgxpool.Pool или pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ImageRepository доступ к записям изображений и денормализованным
// счетчикам проектов.
type ImageRepository interface {
	// Create вставляет корневую запись (version 1, без parent_id).
	Create(ctx context.Context, rec *models.ImageRecord) error

	// GetByID возвращает запись или models.ErrImageNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error)

	// ListChain возвращает корень и все дочерние версии цепочки,
	// отсортированные по version по возрастанию. Неизвестный root —
	// пустой срез, не ошибка.
	ListChain(ctx context.Context, rootID uuid.UUID) ([]models.ImageRecord, error)

	// LatestVersion возвращает max(version) цепочки; 0 для неизвестного root.
	LatestVersion(ctx context.Context, rootID uuid.UUID) (int, error)

	// CreateNextVersion атомарно вставляет новую версию цепочки с
	// version = max(version)+1. Если truncateAfter не nil, в той же
	// транзакции сначала удаляются все записи с version > *truncateAfter;
	// удаленные записи возвращаются для очистки хранилища.
	// Поле Version в rec игнорируется и заполняется из БД.
	CreateNextVersion(ctx context.Context, rootID uuid.UUID, truncateAfter *int, rec *models.ImageRecord) (*models.ImageRecord, []models.ImageRecord, error)

	// TruncateAfter удаляет записи цепочки с version > afterVersion.
	// Возвращает удаленные записи. Неизвестный root — no-op.
	TruncateAfter(ctx context.Context, rootID uuid.UUID, afterVersion int) ([]models.ImageRecord, error)

	// UpdateStatus переводит запись в новый статус, опционально записывая
	// result URL и текст ошибки.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ImageStatus, resultURL, errorMessage *string) (*models.ImageRecord, error)

	// RecountProject пересчитывает image_count/completed_count и статус проекта.
	RecountProject(ctx context.Context, projectID uuid.UUID) error

	// SetProjectThumbnailIfEmpty выставляет миниатюру проекта, если она пуста.
	SetProjectThumbnailIfEmpty(ctx context.Context, projectID uuid.UUID, url string) error
}

// EditJobStore транзиентное хранилище активных задач редактирования
// (корреляция taskID -> создаваемая версия изображения).
type EditJobStore interface {
	SaveJob(ctx context.Context, job *models.EditJob, ttl time.Duration) error
	GetJob(ctx context.Context, taskID string) (*models.EditJob, error)
	DeleteJob(ctx context.Context, taskID string) error
}
