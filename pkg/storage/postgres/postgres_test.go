package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/storage/postgres"
	"github.com/vigil-fl/vigil/pkg/storage/testutil"
)

var (
	testDB    *postgres.Database
	invalidID = "invalid-id-that-does-not-exist"
)

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16.2-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start container: %s", err)
	}

	port := container.GetPort("5432/tcp")

	pool.MaxWait = 120 * time.Second
	if err := pool.Retry(func() error {
		url := fmt.Sprintf("host=localhost port=%s user=test dbname=test password=test sslmode=disable", port)
		db, err := sql.Open("pgx", url)
		if err != nil {
			return err
		}
		return db.Ping()
	}); err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	testDB, err = postgres.NewDatabase("localhost", port, "test", "test", "test", "disable")
	if err != nil {
		log.Fatalf("Could not setup test DB connection: %s", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pool.Purge(container); err != nil {
		log.Fatalf("Could not purge container: %s", err)
	}

	os.Exit(code)
}

func TestPatientRepository_Create(t *testing.T) {
	repo := postgres.NewPatientRepository(testDB)

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

				repo.Delete(ctx, tc.patient.ID)
			}
		})
	}
}

func TestPatientRepository_Get(t *testing.T) {
	repo := postgres.NewPatientRepository(testDB)
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
			err:       postgres.ErrPatientNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			retrieved, err := repo.Get(ctx, tc.patientID)
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected error %v, got %v", tc.desc, tc.err, err))
			if err == nil {
				assert.Equal(t, testPatient.Name, retrieved.Name)
				assert.Equal(t, testPatient.Category, retrieved.Category)
				assert.Equal(t, testPatient.ActiveModel, retrieved.ActiveModel)
			}
		})
	}
}

func TestPatientRepository_Update(t *testing.T) {
	repo := postgres.NewPatientRepository(testDB)
	ctx := context.Background()

	testPatient := testutil.TestPatient(uuid.NewString())
	_, err := repo.Create(ctx, testPatient)
	require.Nil(t, err)
	defer repo.Delete(ctx, testPatient.ID)

	testPatient.Category = "diabetic"
	testPatient.ActiveModel = "diabetic"
	testPatient.UpdatedAt = time.Now()

	err = repo.Update(ctx, testPatient)
	require.Nil(t, err)

	retrieved, err := repo.Get(ctx, testPatient.ID)
	require.Nil(t, err)
	assert.Equal(t, "diabetic", retrieved.Category)
	assert.Equal(t, "diabetic", retrieved.ActiveModel)
}

func TestPatientRepository_List(t *testing.T) {
	repo := postgres.NewPatientRepository(testDB)
	ctx := context.Background()

	testDB.ExecContext(ctx, "DELETE FROM patients")

	numPatients := 5
	for i := 0; i < numPatients; i++ {
		p := testutil.TestPatient(uuid.NewString())
		_, err := repo.Create(ctx, p)
		require.Nil(t, err)
	}

	cases := []struct {
		desc        string
		offset      uint64
		limit       uint64
		expectedLen int
	}{
		{
			desc:        "list all patients",
			offset:      0,
			limit:       10,
			expectedLen: numPatients,
		},
		{
			desc:        "list with limit",
			offset:      0,
			limit:       3,
			expectedLen: 3,
		},
		{
			desc:        "list with offset",
			offset:      2,
			limit:       10,
			expectedLen: 3,
		},
		{
			desc:        "list with offset out of range",
			offset:      100,
			limit:       10,
			expectedLen: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			patients, total, err := repo.List(ctx, tc.offset, tc.limit)
			assert.Nil(t, err)
			assert.Equal(t, uint64(numPatients), total)
			assert.Equal(t, tc.expectedLen, len(patients))
		})
	}

	testDB.ExecContext(ctx, "DELETE FROM patients")
}

func TestAgentRepository(t *testing.T) {
	repo := postgres.NewAgentRepository(testDB)
	ctx := context.Background()

	testAgent := testutil.TestAgent(uuid.NewString())

	err := repo.Create(ctx, testAgent)
	require.Nil(t, err)
	defer testDB.ExecContext(ctx, "DELETE FROM agents WHERE id = $1", testAgent.ID)

	retrieved, err := repo.Get(ctx, testAgent.ID)
	require.Nil(t, err)
	assert.Equal(t, testAgent.Name, retrieved.Name)
	assert.True(t, retrieved.Alive)
	assert.Len(t, retrieved.AliveHistory, 2)
	assert.Equal(t, testAgent.UpdateCount, retrieved.UpdateCount)

	retrieved.Alive = false
	retrieved.UpdateCount = 4
	err = repo.Update(ctx, retrieved)
	require.Nil(t, err)

	updated, err := repo.Get(ctx, testAgent.ID)
	require.Nil(t, err)
	assert.False(t, updated.Alive)
	assert.Equal(t, uint64(4), updated.UpdateCount)

	_, err = repo.Get(ctx, invalidID)
	assert.Equal(t, postgres.ErrAgentNotFound, err)
}

func TestRoundRepository(t *testing.T) {
	repo := postgres.NewRoundRepository(testDB)
	ctx := context.Background()

	testDB.ExecContext(ctx, "DELETE FROM rounds")

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
	assert.Equal(t, []string{"agent-1", "agent-2", "agent-3"}, records[0].ClientIDs)

	latest, err := repo.Latest(ctx, 2)
	require.Nil(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, uint64(5), latest[0].Round)
	assert.Equal(t, uint64(4), latest[1].Round)

	testDB.ExecContext(ctx, "DELETE FROM rounds")
}

func TestSwapRepository(t *testing.T) {
	repo := postgres.NewSwapRepository(testDB)
	ctx := context.Background()

	testDB.ExecContext(ctx, "DELETE FROM swaps")

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		rec := testutil.TestSwap("patient-a", base.Add(time.Duration(i)*time.Minute))
		err := repo.Create(ctx, rec)
		require.Nil(t, err)
	}
	err := repo.Create(ctx, testutil.TestSwap("patient-b", base))
	require.Nil(t, err)

	records, total, err := repo.ListByPatient(ctx, "patient-a", 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, records, 3)
	assert.Equal(t, base.Add(2*time.Minute).Unix(), records[0].At.Unix())
	assert.Equal(t, "federated", records[0].Previous)
	assert.Equal(t, "athletic", records[0].New)

	records, total, err = repo.ListByPatient(ctx, "patient-c", 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), total)
	assert.Empty(t, records)

	testDB.ExecContext(ctx, "DELETE FROM swaps")
}

func TestAlertRepository(t *testing.T) {
	repo := postgres.NewAlertRepository(testDB)
	ctx := context.Background()

	testDB.ExecContext(ctx, "DELETE FROM alerts")

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
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
	assert.Equal(t, "patient-1", alerts[0].PatientID)
	assert.Equal(t, 0.92, alerts[0].Details["confidence"])

	removed, err := repo.DeleteOlderThan(ctx, base.Add(90*time.Second))
	require.Nil(t, err)
	assert.Equal(t, uint64(2), removed)

	alerts, total, err = repo.List(ctx, 0, 10)
	require.Nil(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, alerts, 1)
	assert.Equal(t, ids[2], alerts[0].ID)

	testDB.ExecContext(ctx, "DELETE FROM alerts")
}
