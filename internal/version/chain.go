// Package version управляет цепочками версий изображений: принадлежность
// цепочке, порядок версий, деструктивное усечение ветки при повторном
// редактировании старой версии.
package version

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"staging-server/internal/models"
	"staging-server/internal/repository"
)

// ChainManager обслуживает цепочки версий поверх репозитория.
type ChainManager struct {
	repo   repository.ImageRepository
	logger *zap.Logger
}

// NewChainManager создает новый ChainManager.
func NewChainManager(repo repository.ImageRepository, logger *zap.Logger) *ChainManager {
	return &ChainManager{
		repo:   repo,
		logger: logger.Named("ChainManager"),
	}
}

// ResolveRoot возвращает id корня цепочки для записи: ParentID ?? ID.
func ResolveRoot(rec *models.ImageRecord) uuid.UUID {
	return rec.RootID()
}

// ListVersions возвращает корень и все версии цепочки по возрастанию version.
// Неизвестный root — пустой список, не ошибка.
func (m *ChainManager) ListVersions(ctx context.Context, rootID uuid.UUID) ([]models.ImageRecord, error) {
	return m.repo.ListChain(ctx, rootID)
}

// LatestVersion возвращает max(version) цепочки; для существующего корня
// минимум 1 (корень считается даже без дочерних версий), для неизвестного
// root — 0 ("нечего делать").
func (m *ChainManager) LatestVersion(ctx context.Context, rootID uuid.UUID) (int, error) {
	return m.repo.LatestVersion(ctx, rootID)
}

// IsLatest проверяет, является ли запись последней версией своей цепочки.
func (m *ChainManager) IsLatest(ctx context.Context, rec *models.ImageRecord) (bool, error) {
	latest, err := m.repo.LatestVersion(ctx, rec.RootID())
	if err != nil {
		return false, err
	}
	return rec.Version >= latest, nil
}

// TruncateAfter удаляет все записи цепочки с version > afterVersion.
// Необратимо; вызывается только после явного подтверждения пользователем
// замены более новых версий. Возвращает удаленные записи (для очистки
// хранилища). Неизвестный root — no-op.
//
// Инвариант после вызова: LatestVersion(rootID) == afterVersion.
func (m *ChainManager) TruncateAfter(ctx context.Context, rootID uuid.UUID, afterVersion int) ([]models.ImageRecord, error) {
	if afterVersion < 1 {
		return nil, fmt.Errorf("%w: afterVersion must be >= 1, got %d", models.ErrInvalidInput, afterVersion)
	}

	truncated, err := m.repo.TruncateAfter(ctx, rootID, afterVersion)
	if err != nil {
		return nil, err
	}
	if len(truncated) > 0 {
		m.logger.Info("Version chain truncated",
			zap.String("rootID", rootID.String()),
			zap.Int("after_version", afterVersion),
			zap.Int("deleted_count", len(truncated)))
	}
	return truncated, nil
}
