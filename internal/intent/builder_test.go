package intent_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"staging-server/internal/intent"
	"staging-server/internal/models"
)

func TestBuildInstruction_Remove(t *testing.T) {
	t.Run("Renders exact remove template", func(t *testing.T) {
		got, err := intent.BuildInstruction(intent.Intent{
			Mode:        models.EditModeRemove,
			Description: "old sofa near the window",
		})
		assert.NoError(t, err)
		assert.Equal(t, "Remove the old sofa near the window and realistically fill in the background.", got)
	})

	t.Run("Same input produces identical output", func(t *testing.T) {
		it := intent.Intent{Mode: models.EditModeRemove, Description: "ceiling fan"}
		first, err := intent.BuildInstruction(it)
		assert.NoError(t, err)
		second, err := intent.BuildInstruction(it)
		assert.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Rejects blank description", func(t *testing.T) {
		for _, desc := range []string{"", "   ", "\t\n"} {
			_, err := intent.BuildInstruction(intent.Intent{
				Mode:        models.EditModeRemove,
				Description: desc,
			})
			assert.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrValidation))
		}
	})
}

func TestBuildInstruction_Add(t *testing.T) {
	t.Run("Full object spec renders all optional clauses", func(t *testing.T) {
		got, err := intent.BuildInstruction(intent.Intent{
			Mode: models.EditModeAdd,
			Object: &intent.ObjectSpec{
				Name:  "armchair",
				Size:  intent.SizeLarge,
				Style: "mid-century modern",
				Color: "emerald green",
			},
		})
		assert.NoError(t, err)
		assert.Equal(t,
			"Add a large armchair in mid-century modern style with emerald green color "+
				"that matches the room's aesthetic, lighting, and perspective. "+
				"Keep the existing furniture, walls, and layout exactly the same. "+
				"The armchair should blend seamlessly with the existing decor and appear naturally integrated into the scene.",
			got)
	})

	t.Run("Omitted style and color drop their clauses entirely", func(t *testing.T) {
		got, err := intent.BuildInstruction(intent.Intent{
			Mode: models.EditModeAdd,
			Object: &intent.ObjectSpec{
				Name: "floor lamp",
				Size: intent.SizeSmall,
			},
		})
		assert.NoError(t, err)
		assert.Equal(t,
			"Add a small floor lamp "+
				"that matches the room's aesthetic, lighting, and perspective. "+
				"Keep the existing furniture, walls, and layout exactly the same. "+
				"The floor lamp should blend seamlessly with the existing decor and appear naturally integrated into the scene.",
			got)
		assert.NotContains(t, got, "in  style")
		assert.NotContains(t, got, "with  color")
	})

	t.Run("Style without color", func(t *testing.T) {
		got, err := intent.BuildInstruction(intent.Intent{
			Mode: models.EditModeAdd,
			Object: &intent.ObjectSpec{
				Name:  "rug",
				Size:  intent.SizeMedium,
				Style: "scandinavian",
			},
		})
		assert.NoError(t, err)
		assert.Contains(t, got, "Add a medium rug in scandinavian style that matches")
		assert.NotContains(t, got, "color")
	})

	t.Run("Rejects missing object name", func(t *testing.T) {
		_, err := intent.BuildInstruction(intent.Intent{
			Mode:   models.EditModeAdd,
			Object: &intent.ObjectSpec{Size: intent.SizeMedium},
		})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("Rejects nil object spec", func(t *testing.T) {
		_, err := intent.BuildInstruction(intent.Intent{Mode: models.EditModeAdd})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("Rejects invalid size", func(t *testing.T) {
		_, err := intent.BuildInstruction(intent.Intent{
			Mode:   models.EditModeAdd,
			Object: &intent.ObjectSpec{Name: "plant", Size: "gigantic"},
		})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}

func TestBuildInstruction_UnknownMode(t *testing.T) {
	_, err := intent.BuildInstruction(intent.Intent{Mode: "restyle"})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}
