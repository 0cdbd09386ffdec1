package registry

import (
	"context"
	"testing"

	"nasmon/internal/models"
	"nasmon/internal/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClass(name string) *AlertClass {
	return &AlertClass{
		Name:     name,
		Category: "Storage",
		Level:    models.LevelWarning,
		Products: []string{models.ProductCore},
		Title:    name + " title",
		Text:     "text",
	}
}

func TestClassRegistryRejectsDuplicates(t *testing.T) {
	r := NewClassRegistry()
	require.NoError(t, r.Register(testClass("VolumeUsage")))
	assert.Error(t, r.Register(testClass("VolumeUsage")))
	assert.Error(t, r.Register(testClass("")))
}

func TestClassRegistryOneShotNeedsHooks(t *testing.T) {
	r := NewClassRegistry()

	c := testClass("TaskFailed")
	c.OneShot = &OneShot{}
	assert.Error(t, r.Register(c), "one-shot without create/delete")

	c.OneShot.Create = func(args map[string]interface{}) (*models.Alert, error) { return nil, nil }
	c.OneShot.Delete = func(related []models.Alert, query map[string]interface{}) []models.Alert { return related }
	assert.NoError(t, r.Register(c))
}

func TestCategoriesHidesExcludedAndOtherProducts(t *testing.T) {
	r := NewClassRegistry()
	require.NoError(t, r.Register(testClass("VolumeUsage")))

	hidden := testClass("Internal")
	hidden.ExcludeFromList = true
	require.NoError(t, r.Register(hidden))

	enterprise := testClass("Replication")
	enterprise.Category = "HA"
	enterprise.Products = []string{models.ProductEnterprise}
	require.NoError(t, r.Register(enterprise))

	cats := r.Categories(models.ProductCore)
	require.Len(t, cats, 1)
	assert.Equal(t, "Storage", cats[0].Category)
	require.Len(t, cats[0].Classes, 1)
	assert.Equal(t, "VolumeUsage", cats[0].Classes[0].Name)

	cats = r.Categories(models.ProductEnterprise)
	require.Len(t, cats, 1)
	assert.Equal(t, "HA", cats[0].Category)
}

func TestSourceRegistryRejectsDuplicates(t *testing.T) {
	r := NewSourceRegistry()
	src := &Source{
		Name:     "volume_usage",
		Products: []string{models.ProductCore},
		Schedule: schedule.EveryMinutes(5),
		Check: func(ctx context.Context) ([]models.Alert, error) {
			return nil, nil
		},
	}
	require.NoError(t, r.Register(src))
	assert.Error(t, r.Register(src))

	got, ok := r.Get("volume_usage")
	require.True(t, ok)
	assert.Equal(t, src, got)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}
