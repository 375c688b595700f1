// Package intent синтезирует natural-language инструкцию для внешней
// модели редактирования из пользовательского описания и режима.
// Все функции чистые и детерминированные: одинаковый вход — побайтно
// одинаковая инструкция.
package intent

import (
	"fmt"
	"strings"

	"staging-server/internal/models"
)

// ObjectSize размер добавляемого объекта.
type ObjectSize string

const (
	SizeSmall  ObjectSize = "small"
	SizeMedium ObjectSize = "medium"
	SizeLarge  ObjectSize = "large"
)

// IsValid проверяет принадлежность закрытому набору размеров.
func (s ObjectSize) IsValid() bool {
	return s == SizeSmall || s == SizeMedium || s == SizeLarge
}

// ObjectSpec описание добавляемого объекта для режима add.
// Name обязателен, Style и Color опциональны.
type ObjectSpec struct {
	Name  string     `json:"name"`
	Size  ObjectSize `json:"size"`
	Style string     `json:"style,omitempty"`
	Color string     `json:"color,omitempty"`
}

// Intent синтезированное намерение редактирования.
type Intent struct {
	Mode models.EditMode `json:"mode"`
	// Только для режима remove
	Description string `json:"description,omitempty"`
	// Только для режима add
	Object *ObjectSpec `json:"object,omitempty"`
}

// BuildInstruction рендерит инструкцию для модели из намерения.
// Пустое/пробельное описание (remove) или пустое имя объекта (add)
// отклоняются с ErrValidation: вызывающий обязан перезапросить ввод,
// а не отправлять задачу.
func BuildInstruction(it Intent) (string, error) {
	switch it.Mode {
	case models.EditModeRemove:
		return buildRemoveInstruction(it.Description)
	case models.EditModeAdd:
		if it.Object == nil {
			return "", fmt.Errorf("%w: object spec is required for add mode", models.ErrValidation)
		}
		return buildAddInstruction(*it.Object)
	default:
		return "", fmt.Errorf("%w: unknown edit mode %q", models.ErrValidation, it.Mode)
	}
}

// buildRemoveInstruction инструкция удаления маскированных объектов.
func buildRemoveInstruction(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("%w: object description is required for remove mode", models.ErrValidation)
	}
	return fmt.Sprintf("Remove the %s and realistically fill in the background.", description), nil
}

// buildAddInstruction инструкция добавления объекта. Опциональные части
// (стиль, цвет) опускаются целиком, если не заданы — никаких пустых
// фрагментов вида "in  style" в выводе.
func buildAddInstruction(obj ObjectSpec) (string, error) {
	name := strings.TrimSpace(obj.Name)
	if name == "" {
		return "", fmt.Errorf("%w: object name is required for add mode", models.ErrValidation)
	}
	if !obj.Size.IsValid() {
		return "", fmt.Errorf("%w: invalid object size %q", models.ErrValidation, obj.Size)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Add a %s %s", obj.Size, name))

	if style := strings.TrimSpace(obj.Style); style != "" {
		sb.WriteString(fmt.Sprintf(" in %s style", style))
	}
	if color := strings.TrimSpace(obj.Color); color != "" {
		sb.WriteString(fmt.Sprintf(" with %s color", color))
	}

	sb.WriteString(" that matches the room's aesthetic, lighting, and perspective.")
	sb.WriteString(" Keep the existing furniture, walls, and layout exactly the same.")
	sb.WriteString(fmt.Sprintf(" The %s should blend seamlessly with the existing decor and appear naturally integrated into the scene.", name))

	return sb.String(), nil
}
