package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/storage"
	"github.com/vigil-fl/vigil/pkg/storage/testutil"
)

func newMemoryRepositories(t *testing.T) *storage.Repositories {
	t.Helper()

	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)
	require.Nil(t, repos.Closer)

	return repos
}

func TestNewRepositoriesUnsupportedType(t *testing.T) {
	_, err := storage.NewRepositories(storage.Config{Type: "etcd"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestPatientRepository(t *testing.T) {
	repos := newMemoryRepositories(t)
	ctx := context.Background()

	p := testutil.TestPatient(uuid.NewString())

	created, err := repos.Patients.Create(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, created.ID)

	_, err = repos.Patients.Create(ctx, p)
	assert.ErrorIs(t, err, pkgerrors.ErrEntityExists)

	got, err := repos.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, "typical", got.Category)

	p.Category = "athletic"
	require.NoError(t, repos.Patients.Update(ctx, p))
	got, err = repos.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "athletic", got.Category)

	patients, total, err := repos.Patients.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.Len(t, patients, 1)

	require.NoError(t, repos.Patients.Delete(ctx, p.ID))
	_, err = repos.Patients.Get(ctx, p.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestAgentRepository(t *testing.T) {
	repos := newMemoryRepositories(t)
	ctx := context.Background()

	a := testutil.TestAgent(uuid.NewString())

	require.NoError(t, repos.Agents.Create(ctx, a))

	got, err := repos.Agents.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
	assert.True(t, got.Alive)
	assert.Len(t, got.AliveHistory, 2)

	a.UpdateCount = 7
	require.NoError(t, repos.Agents.Update(ctx, a))
	got, err = repos.Agents.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.UpdateCount)

	agents, total, err := repos.Agents.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.Len(t, agents, 1)

	require.NoError(t, repos.Agents.Delete(ctx, a.ID))
	_, _, err = repos.Agents.List(ctx, 0, 10)
	require.NoError(t, err)
}

func TestRoundRepositoryOrdering(t *testing.T) {
	repos := newMemoryRepositories(t)
	ctx := context.Background()

	for _, n := range []uint64{1, 2, 3, 4, 5} {
		require.NoError(t, repos.Rounds.Create(ctx, testutil.TestRound(n)))
	}

	records, total, err := repos.Rounds.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), total)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, uint64(i+1), rec.Round)
	}

	records, total, err = repos.Rounds.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), total)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(3), records[0].Round)
	assert.Equal(t, uint64(4), records[1].Round)

	latest, err := repos.Rounds.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(5), latest[0].Round)
	assert.Equal(t, uint64(4), latest[1].Round)

	latest, err = repos.Rounds.Latest(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, latest, 5)
}

func TestSwapRepositoryListByPatient(t *testing.T) {
	repos := newMemoryRepositories(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := testutil.TestSwap("patient-a", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repos.Swaps.Create(ctx, rec))
	}
	require.NoError(t, repos.Swaps.Create(ctx, testutil.TestSwap("patient-b", base)))

	records, total, err := repos.Swaps.ListByPatient(ctx, "patient-a", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, records, 3)
	assert.True(t, records[0].At.After(records[1].At))
	assert.True(t, records[1].At.After(records[2].At))

	records, total, err = repos.Swaps.ListByPatient(ctx, "patient-a", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, records, 1)
	assert.Equal(t, base.Add(time.Minute).UnixNano(), records[0].At.UnixNano())

	records, total, err = repos.Swaps.ListByPatient(ctx, "patient-c", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)
	assert.Empty(t, records)
}

func TestAlertRepository(t *testing.T) {
	repos := newMemoryRepositories(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	ids := make([]string, 3)
	for i := 0; i < 3; i++ {
		ids[i] = uuid.NewString()
		a := testutil.TestAlert(ids[i], base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repos.Alerts.Create(ctx, a))
	}

	alerts, total, err := repos.Alerts.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, alerts, 3)
	assert.Equal(t, ids[2], alerts[0].ID)
	assert.Equal(t, ids[0], alerts[2].ID)

	alerts, _, err = repos.Alerts.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, ids[1], alerts[0].ID)
}

func TestAlertRepositoryDeleteOlderThan(t *testing.T) {
	repos := newMemoryRepositories(t)
	ctx := context.Background()

	stale := testutil.TestAlert(uuid.NewString(), time.Now().Add(-40*24*time.Hour))
	fresh := testutil.TestAlert(uuid.NewString(), time.Now())
	require.NoError(t, repos.Alerts.Create(ctx, stale))
	require.NoError(t, repos.Alerts.Create(ctx, fresh))

	removed, err := repos.Alerts.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), removed)

	alerts, total, err := repos.Alerts.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, fresh.ID, alerts[0].ID)
}
