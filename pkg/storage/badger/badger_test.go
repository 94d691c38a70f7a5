package badger_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/storage/badger"
	"github.com/vigil-fl/vigil/pkg/storage/testutil"
)

var (
	testDB    *badger.Database
	invalidID = "invalid-id-that-does-not-exist"
)

func TestMain(m *testing.M) {
	tmpDir := os.TempDir()
	dbPath := filepath.Join(tmpDir, "badger_test_"+uuid.NewString())

	var err error
	testDB, err = badger.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.RemoveAll(dbPath)

	os.Exit(code)
}

func TestPatientRepository_Create(t *testing.T) {
	repo := badger.NewPatientRepository(testDB)

	cases := []struct {
		desc    string
		patient patient.Patient
		err     error
	}{
		{
			desc:    "create new patient successfully",
			patient: testutil.TestPatient(uuid.NewString()),
			err:     nil,
		},
		{
			desc: "create patient with empty name",
			patient: func() patient.Patient {
				p := testutil.TestPatient(uuid.NewString())
				p.Name = ""
				return p
			}(),
			err: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ctx := context.Background()
			created, err := repo.Create(ctx, tc.patient)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
			if err == nil {
				assert.Equal(t, tc.patient.ID, created.ID)
				assert.Equal(t, tc.patient.Category, created.Category)

				repo.Delete(ctx, tc.patient.ID)
			}
		})
	}
}

func TestPatientRepository_Get(t *testing.T) {
	repo := badger.NewPatientRepository(testDB)
	ctx := context.Background()

	testPatient := testutil.TestPatient(uuid.NewString())
	_, err := repo.Create(ctx, testPatient)
	require.Nil(t, err)
	defer repo.Delete(ctx, testPatient.ID)

	cases := []struct {
		desc      string
		patientID string
		err       error
	}{
		{
			desc:      "get existing patient",
			patientID: testPatient.ID,
			err:       nil,
		},
		{
			desc:      "get non-existing patient",
			patientID: invalidID,
			err:       badger.ErrPatientNotFound,
		},
		{
			desc:      "get with empty ID",
			patientID: "",
			err:       badger.ErrPatientNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			retrieved, err := repo.Get(ctx, tc.patientID)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
			if err == nil {
				assert.Equal(t, testPatient.ID, retrieved.ID)
				assert.Equal(t, testPatient.Name, retrieved.Name)
				assert.Equal(t, testPatient.ActiveModel, retrieved.ActiveModel)
			}
		})
	}
}

func TestPatientRepository_Update(t *testing.T) {
	repo := badger.NewPatientRepository(testDB)
	ctx := context.Background()

	testPatient := testutil.TestPatient(uuid.NewString())
	_, err := repo.Create(ctx, testPatient)
	require.Nil(t, err)
	defer repo.Delete(ctx, testPatient.ID)

	testPatient.Category = "elderly"
	testPatient.ActiveModel = "elderly"

	err = repo.Update(ctx, testPatient)
	require.Nil(t, err)

	retrieved, err := repo.Get(ctx, testPatient.ID)
	require.Nil(t, err)
	assert.Equal(t, "elderly", retrieved.Category)
	assert.Equal(t, "elderly", retrieved.ActiveModel)
}

func TestPatientRepository_List(t *testing.T) {
	repo := badger.NewPatientRepository(testDB)
	ctx := context.Background()

	numPatients := 5
	patientIDs := make([]string, numPatients)
	for i := 0; i < numPatients; i++ {
		p := testutil.TestPatient(uuid.NewString())
		patientIDs[i] = p.ID
		_, err := repo.Create(ctx, p)
		require.Nil(t, err)
	}
	defer func() {
		for _, id := range patientIDs {
			repo.Delete(ctx, id)
		}
	}()

	cases := []struct {
		desc        string
		offset      uint64
		limit       uint64
		minExpected int
	}{
		{
			desc:        "list all patients",
			offset:      0,
			limit:       10,
			minExpected: numPatients,
		},
		{
			desc:        "list with limit",
			offset:      0,
			limit:       3,
			minExpected: 3,
		},
		{
			desc:        "list with offset",
			offset:      2,
			limit:       10,
			minExpected: 3,
		},
		{
			desc:        "list with large offset",
			offset:      100,
			limit:       10,
			minExpected: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			patients, total, err := repo.List(ctx, tc.offset, tc.limit)
			assert.Nil(t, err)
			assert.GreaterOrEqual(t, int(total), numPatients)
			assert.GreaterOrEqual(t, len(patients), tc.minExpected)
			if tc.limit > 0 {
				assert.LessOrEqual(t, len(patients), int(tc.limit))
			}
		})
	}
}

func TestPatientRepository_Delete(t *testing.T) {
	repo := badger.NewPatientRepository(testDB)
	ctx := context.Background()

	testPatient := testutil.TestPatient(uuid.NewString())
	_, err := repo.Create(ctx, testPatient)
	require.Nil(t, err)

	err = repo.Delete(ctx, testPatient.ID)
	require.Nil(t, err)

	_, err = repo.Get(ctx, testPatient.ID)
	assert.Equal(t, badger.ErrPatientNotFound, err)

	// Badger doesn't return error for non-existing deletes.
	err = repo.Delete(ctx, invalidID)
	assert.Nil(t, err)
}

func TestAgentRepository(t *testing.T) {
	repo := badger.NewAgentRepository(testDB)
	ctx := context.Background()

	testAgent := testutil.TestAgent(uuid.NewString())

	err := repo.Create(ctx, testAgent)
	require.Nil(t, err)
	defer repo.Delete(ctx, testAgent.ID)

	retrieved, err := repo.Get(ctx, testAgent.ID)
	require.Nil(t, err)
	assert.Equal(t, testAgent.Name, retrieved.Name)
	assert.True(t, retrieved.Alive)
	assert.Len(t, retrieved.AliveHistory, 2)

	retrieved.Alive = false
	retrieved.UpdateCount = 12
	err = repo.Update(ctx, retrieved)
	require.Nil(t, err)

	updated, err := repo.Get(ctx, testAgent.ID)
	require.Nil(t, err)
	assert.False(t, updated.Alive)
	assert.Equal(t, uint64(12), updated.UpdateCount)

	_, err = repo.Get(ctx, invalidID)
	assert.Equal(t, badger.ErrAgentNotFound, err)

	agents, total, err := repo.List(ctx, 0, 10)
	require.Nil(t, err)
	assert.GreaterOrEqual(t, int(total), 1)
	assert.GreaterOrEqual(t, len(agents), 1)
}

func TestRoundRepository(t *testing.T) {
	repo := badger.NewRoundRepository(testDB)
	ctx := context.Background()

	for _, n := range []uint64{1, 2, 3, 4, 5} {
		err := repo.Create(ctx, testutil.TestRound(n))
		require.Nil(t, err)
	}

	records, total, err := repo.List(ctx, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(5), total)
	require.Len(t, records, 5)
	assert.Equal(t, uint64(1), records[0].Round)
	assert.Equal(t, uint64(5), records[4].Round)

	records, total, err = repo.List(ctx, 2, 2)
	require.Nil(t, err)
	assert.Equal(t, uint64(5), total)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(3), records[0].Round)
	assert.Equal(t, uint64(4), records[1].Round)

	latest, err := repo.Latest(ctx, 2)
	require.Nil(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(5), latest[0].Round)
	assert.Equal(t, uint64(4), latest[1].Round)

	latest, err = repo.Latest(ctx, 100)
	require.Nil(t, err)
	assert.Len(t, latest, 5)
}

func TestSwapRepository(t *testing.T) {
	repo := badger.NewSwapRepository(testDB)
	ctx := context.Background()

	patientID := uuid.NewString()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := testutil.TestSwap(patientID, base.Add(time.Duration(i)*time.Minute))
		err := repo.Create(ctx, rec)
		require.Nil(t, err)
	}
	err := repo.Create(ctx, testutil.TestSwap(uuid.NewString(), base))
	require.Nil(t, err)

	records, total, err := repo.ListByPatient(ctx, patientID, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, records, 3)
	assert.Equal(t, base.Add(2*time.Minute).Unix(), records[0].At.Unix())
	assert.Equal(t, base.Unix(), records[2].At.Unix())

	records, total, err = repo.ListByPatient(ctx, patientID, 1, 1)
	require.Nil(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, records, 1)
	assert.Equal(t, base.Add(time.Minute).Unix(), records[0].At.Unix())

	records, total, err = repo.ListByPatient(ctx, invalidID, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), total)
	assert.Empty(t, records)
}

func TestAlertRepository(t *testing.T) {
	repo := badger.NewAlertRepository(testDB)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	ids := make([]string, 3)
	for i := 0; i < 3; i++ {
		ids[i] = uuid.NewString()
		a := testutil.TestAlert(ids[i], base.Add(time.Duration(i)*time.Minute))
		err := repo.Create(ctx, a)
		require.Nil(t, err)
	}

	alerts, total, err := repo.List(ctx, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, alerts, 3)
	assert.Equal(t, ids[2], alerts[0].ID)
	assert.Equal(t, ids[0], alerts[2].ID)

	alerts, total, err = repo.List(ctx, 1, 1)
	require.Nil(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, ids[1], alerts[0].ID)

	removed, err := repo.DeleteOlderThan(ctx, base.Add(90*time.Second))
	require.Nil(t, err)
	assert.Equal(t, uint64(2), removed)

	alerts, total, err = repo.List(ctx, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, ids[2], alerts[0].ID)

	removed, err = repo.DeleteOlderThan(ctx, time.Now())
	require.Nil(t, err)
	assert.Equal(t, uint64(1), removed)
}
