package classes

import (
	"testing"

	"nasmon/internal/models"
	"nasmon/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBuiltins(t *testing.T) {
	r := registry.NewClassRegistry()
	require.NoError(t, Register(r))

	for _, name := range []string{
		Test, SourceRunFailed, SourceRunFailedOnBackupNode,
		AutomaticAlertFailed, VolumeUsage, VolumeUsageCritical,
		SwapUsage, CloudSyncTaskFailed,
	} {
		_, ok := r.Get(name)
		assert.True(t, ok, "missing class %s", name)
	}

	// Registering twice must trip the duplicate check.
	assert.Error(t, Register(r))
}

func TestCloudSyncCreateKeysOnTaskID(t *testing.T) {
	r := registry.NewClassRegistry()
	require.NoError(t, Register(r))
	class, _ := r.Get(CloudSyncTaskFailed)
	require.True(t, class.IsOneShot())

	a1, err := class.OneShot.Create(map[string]interface{}{"task_id": "42", "attempt": 1})
	require.NoError(t, err)
	a2, err := class.OneShot.Create(map[string]interface{}{"task_id": "42", "attempt": 2})
	require.NoError(t, err)
	assert.Equal(t, a1.Key, a2.Key, "key depends only on task_id")

	a3, err := class.OneShot.Create(map[string]interface{}{"task_id": "43"})
	require.NoError(t, err)
	assert.NotEqual(t, a1.Key, a3.Key)

	_, err = class.OneShot.Create(map[string]interface{}{"attempt": 1})
	verr, ok := models.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "args.task_id", verr.Field)
}

func TestOneShotDeleteByQuery(t *testing.T) {
	r := registry.NewClassRegistry()
	require.NoError(t, Register(r))
	class, _ := r.Get(CloudSyncTaskFailed)

	related := []models.Alert{
		{Key: "a", Args: map[string]interface{}{"task_id": "42"}},
		{Key: "b", Args: map[string]interface{}{"task_id": "43"}},
	}

	kept := class.OneShot.Delete(related, map[string]interface{}{"task_id": "42"})
	require.Len(t, kept, 1)
	assert.Equal(t, "b", kept[0].Key)

	// Numbers compare through their rendering, so JSON decoding of the
	// query does not matter.
	related[0].Args["task_id"] = 42
	kept = class.OneShot.Delete(related, map[string]interface{}{"task_id": "42"})
	require.Len(t, kept, 1)

	// An empty query wipes the class.
	kept = class.OneShot.Delete(related, nil)
	assert.Empty(t, kept)
}

func TestCatalogShape(t *testing.T) {
	r := registry.NewClassRegistry()
	require.NoError(t, Register(r))

	failed, _ := r.Get(SourceRunFailed)
	assert.True(t, failed.ExcludeFromList)
	assert.Equal(t, models.LevelCritical, failed.Level)

	critical, _ := r.Get(VolumeUsageCritical)
	assert.True(t, critical.ProactiveSupport)
	assert.True(t, critical.ProactiveSupportNotifyGone)

	auto, _ := r.Get(AutomaticAlertFailed)
	require.True(t, auto.IsOneShot())
	assert.False(t, auto.OneShot.DeletedAutomatically)
	assert.Equal(t, []string{models.ProductEnterprise}, auto.Products)
}
