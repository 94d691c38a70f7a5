package coordinator_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/aggregate"
	"github.com/vigil-fl/vigil/pkg/drift"
	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/models"
	mqttmocks "github.com/vigil-fl/vigil/pkg/mqtt/mocks"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/pkg/storage"
	"github.com/vigil-fl/vigil/round"
)

type fixture struct {
	svc    coordinator.Service
	repos  *storage.Repositories
	pubsub *mqttmocks.MockPubSub
}

func newFixture(t *testing.T, cfg coordinator.Config) *fixture {
	t.Helper()

	agg, err := aggregate.New(aggregate.DefaultConfig(), nil)
	require.NoError(t, err)

	detector := drift.New(drift.DefaultConfig(), nil)

	registry, err := models.NewRegistry(models.Config{ArtifactDir: t.TempDir()}, nil)
	require.NoError(t, err)

	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)

	swaps := models.NewSwapState(registry, repos.Swaps, nil, nil)

	pubsub := new(mqttmocks.MockPubSub)
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	pubsub.On("Disconnect", mock.Anything).Return(nil)

	svc, err := coordinator.NewService(cfg, agg, detector, registry, swaps, repos, nil, pubsub, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Shutdown(context.Background())
	})

	return &fixture{svc: svc, repos: repos, pubsub: pubsub}
}

func defConfig() coordinator.Config {
	cfg := coordinator.DefaultConfig()
	cfg.SnapshotEvery = 0

	return cfg
}

func update(id string, samples int, vals ...float64) round.Update {
	return round.Update{
		ClientID:    id,
		Weights:     params.Map{"layer": vals},
		SampleCount: samples,
		Accuracy:    0.9,
		Loss:        0.2,
	}
}

func TestRegisterUpdateValidation(t *testing.T) {
	f := newFixture(t, defConfig())

	cases := []struct {
		desc   string
		update round.Update
		err    error
	}{
		{
			desc:   "missing client id",
			update: update("", 10, 1.0),
			err:    vigilerrors.ErrEmptyKey,
		},
		{
			desc:   "zero sample count",
			update: update("c1", 0, 1.0),
			err:    vigilerrors.ErrInvalidData,
		},
		{
			desc:   "empty weights",
			update: round.Update{ClientID: "c1", SampleCount: 10},
			err:    vigilerrors.ErrInvalidData,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := f.svc.RegisterUpdate(context.Background(), tc.update)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestRegisterUpdateBelowQuorumWaits(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	ack, err := f.svc.RegisterUpdate(ctx, update("c1", 10, 1.0))
	require.NoError(t, err)
	assert.Equal(t, round.StatusWaiting, ack.Status)
	assert.Equal(t, 1, ack.Received)
	assert.Equal(t, 3, ack.Needed)
	assert.Equal(t, uint64(0), ack.Round)

	ack, err = f.svc.RegisterUpdate(ctx, update("c2", 10, 2.0))
	require.NoError(t, err)
	assert.Equal(t, round.StatusWaiting, ack.Status)
	assert.Equal(t, 2, ack.Received)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), status.Round)
	assert.Equal(t, round.Collecting, status.State)
	assert.ElementsMatch(t, []string{"c1", "c2"}, status.PendingClients)
}

func TestRegisterUpdateResubmissionOverwrites(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ack, err := f.svc.RegisterUpdate(ctx, update("c1", 10, float64(i)))
		require.NoError(t, err)
		assert.Equal(t, round.StatusWaiting, ack.Status)
		assert.Equal(t, 1, ack.Received)
	}

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), status.Round)
	assert.Equal(t, []string{"c1"}, status.PendingClients)
}

func TestQuorumTriggersAggregation(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	_, err := f.svc.RegisterUpdate(ctx, update("c1", 100, 1.0))
	require.NoError(t, err)
	_, err = f.svc.RegisterUpdate(ctx, update("c2", 100, 2.0))
	require.NoError(t, err)

	ack, err := f.svc.RegisterUpdate(ctx, update("c3", 200, 4.0))
	require.NoError(t, err)
	assert.Equal(t, round.StatusAggregated, ack.Status)
	assert.Equal(t, uint64(1), ack.Round)
	require.NotNil(t, ack.Record)
	assert.Equal(t, 3, ack.Record.ClientCount)
	assert.Equal(t, int64(400), ack.Record.TotalSamples)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, ack.Record.ClientIDs)

	// FedAvg with samples [100,100,200]: 0.25*1 + 0.25*2 + 0.5*4.
	model, err := f.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Round)
	assert.InDelta(t, 2.75, model.Weights["layer"][0], 1e-12)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, round.Idle, status.State)
	assert.Empty(t, status.PendingClients)

	page, err := f.svc.ListRounds(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)
}

func TestAggregateInsufficientClients(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	_, err := f.svc.Aggregate(ctx)
	assert.ErrorIs(t, err, vigilerrors.ErrInsufficientClients)

	_, err = f.svc.RegisterUpdate(ctx, update("c1", 10, 1.0))
	require.NoError(t, err)

	_, err = f.svc.Aggregate(ctx)
	assert.ErrorIs(t, err, vigilerrors.ErrInsufficientClients)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), status.Round)
}

func TestSchemaMismatchKeepsBuffer(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	_, err := f.svc.RegisterUpdate(ctx, update("c1", 10, 1.0))
	require.NoError(t, err)
	_, err = f.svc.RegisterUpdate(ctx, update("c2", 10, 2.0))
	require.NoError(t, err)

	mismatched := round.Update{
		ClientID:    "c3",
		Weights:     params.Map{"other": {3.0}},
		SampleCount: 10,
	}
	_, err = f.svc.RegisterUpdate(ctx, mismatched)
	assert.ErrorIs(t, err, vigilerrors.ErrSchemaMismatch)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), status.Round)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, status.PendingClients)

	// Excluding the mismatched client lets the round proceed.
	require.NoError(t, f.svc.ResetRound(ctx))
	_, err = f.svc.RegisterUpdate(ctx, update("c1", 10, 1.0))
	require.NoError(t, err)
	_, err = f.svc.RegisterUpdate(ctx, update("c2", 10, 2.0))
	require.NoError(t, err)
	ack, err := f.svc.RegisterUpdate(ctx, update("c4", 10, 3.0))
	require.NoError(t, err)
	assert.Equal(t, round.StatusAggregated, ack.Status)
}

func TestResetRoundDropsPending(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	_, err := f.svc.RegisterUpdate(ctx, update("c1", 10, 1.0))
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetRound(ctx))

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, round.Idle, status.State)
	assert.Empty(t, status.PendingClients)
}

func TestGlobalModelRoundTrip(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	_, err := f.svc.GetGlobalModel(ctx)
	assert.ErrorIs(t, err, vigilerrors.ErrNotFound)

	weights := params.Map{"layer": {0.5, 0.5}}
	set, err := f.svc.SetGlobalModel(ctx, weights)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), set.Round)

	got, err := f.svc.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, weights, got.Weights)

	_, err = f.svc.SetGlobalModel(ctx, params.Map{})
	assert.ErrorIs(t, err, vigilerrors.ErrInvalidData)
}

func TestSnapshotRestoresAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	archive, err := coordinator.NewArchive(dir, nil)
	require.NoError(t, err)

	agg, err := aggregate.New(aggregate.DefaultConfig(), nil)
	require.NoError(t, err)
	registry, err := models.NewRegistry(models.Config{ArtifactDir: t.TempDir()}, nil)
	require.NoError(t, err)
	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)

	pubsub := new(mqttmocks.MockPubSub)
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	pubsub.On("Disconnect", mock.Anything).Return(nil)

	cfg := coordinator.DefaultConfig()
	cfg.SnapshotEvery = 1
	cfg.SnapshotDir = dir

	swaps := models.NewSwapState(registry, repos.Swaps, nil, nil)
	svc, err := coordinator.NewService(cfg, agg, drift.New(drift.DefaultConfig(), nil), registry, swaps, repos, archive, pubsub, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.RegisterUpdate(ctx, update("c1", 10, 1.0))
	require.NoError(t, err)
	_, err = svc.RegisterUpdate(ctx, update("c2", 10, 2.0))
	require.NoError(t, err)
	_, err = svc.RegisterUpdate(ctx, update("c3", 10, 3.0))
	require.NoError(t, err)

	// Shutdown drains the snapshot writer before the archive is read back.
	require.NoError(t, svc.Shutdown(ctx))

	snap, err := archive.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Round)

	svc2, err := coordinator.NewService(cfg, agg, drift.New(drift.DefaultConfig(), nil), registry, swaps, repos, archive, pubsub, nil)
	require.NoError(t, err)
	defer func() { _ = svc2.Shutdown(ctx) }()

	model, err := svc2.GetGlobalModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), model.Round)
	assert.InDelta(t, 2.0, model.Weights["layer"][0], 1e-12)
}

func TestCreatePatientDefaults(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, patient.Patient{Name: "pat-0"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "typical", p.Category)
	assert.Equal(t, "federated", p.ActiveModel)

	got, err := f.svc.GetPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	page, err := f.svc.ListPatients(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)
}

func TestAgentLifecycle(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	a, err := f.svc.CreateAgent(ctx, agent.Agent{Name: "edge-0"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.True(t, a.Alive)

	got, err := f.svc.GetAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, got.Alive)

	page, err := f.svc.ListAgents(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)

	require.NoError(t, f.svc.DeleteAgent(ctx, a.ID))
	_, err = f.svc.GetAgent(ctx, a.ID)
	assert.ErrorIs(t, err, vigilerrors.ErrNotFound)
}

func TestManualSwapUpdatesAssignment(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	p, err := f.svc.CreatePatient(ctx, patient.Patient{ID: "e1", Name: "pat-1"})
	require.NoError(t, err)

	rec, err := f.svc.SwapModel(ctx, p.ID, "athletic", 0.8)
	require.NoError(t, err)
	assert.True(t, rec.Swapped)
	assert.Equal(t, "federated", rec.Previous)
	assert.Equal(t, "athletic", rec.New)
	assert.InDelta(t, 0.8, rec.Confidence, 1e-12)

	assignment, err := f.svc.ActiveModel(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "athletic", assignment.ModelType)

	// The patient row follows the in-memory assignment.
	got, err := f.svc.GetPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "athletic", got.ActiveModel)

	swaps, err := f.svc.ListSwaps(ctx, p.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), swaps.Total)
}

func TestSwapUnknownDriftTypeRoutesToTypical(t *testing.T) {
	f := newFixture(t, defConfig())

	rec, err := f.svc.SwapModel(context.Background(), "e2", "martian", 0.9)
	require.NoError(t, err)
	assert.Equal(t, "typical", rec.New)
}

func TestSwapValidation(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	_, err := f.svc.SwapModel(ctx, "", "athletic", 0.8)
	assert.ErrorIs(t, err, vigilerrors.ErrEmptyKey)

	_, err = f.svc.SwapModel(ctx, "e1", "", 0.8)
	assert.ErrorIs(t, err, vigilerrors.ErrEmptyKey)
}

func TestObserveAndDriftStatus(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	err := f.svc.Observe(ctx, "", []float64{1, 2, 3}, 0)
	assert.ErrorIs(t, err, vigilerrors.ErrEmptyKey)

	err = f.svc.Observe(ctx, "e1", nil, 0)
	assert.ErrorIs(t, err, vigilerrors.ErrInvalidData)

	for i := 0; i < 10; i++ {
		require.NoError(t, f.svc.Observe(ctx, "e1", []float64{1, 2, 3}, 0.5))
	}

	status, err := f.svc.DriftStatus(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", status.PatientID)
	assert.Equal(t, 10, status.DataPoints)
	assert.Equal(t, "typical", status.Category)
}

func TestDetectDriftBelowWindowNeverDetects(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		report, err := f.svc.DetectDrift(ctx, "e1", []float64{float64(i), 1, 2}, 0.5, drift.MethodAuto)
		require.NoError(t, err)
		assert.False(t, report.Detected)
		assert.Zero(t, report.Confidence)
		assert.Nil(t, report.Swap)
	}
}

func TestDetectDriftFullWindowSwapsModel(t *testing.T) {
	driftCfg := drift.DefaultConfig()
	driftCfg.WindowSize = 20
	driftCfg.MinClusterPoints = 20

	agg, err := aggregate.New(aggregate.DefaultConfig(), nil)
	require.NoError(t, err)
	registry, err := models.NewRegistry(models.Config{ArtifactDir: t.TempDir()}, nil)
	require.NoError(t, err)
	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)
	swaps := models.NewSwapState(registry, repos.Swaps, nil, nil)

	pubsub := new(mqttmocks.MockPubSub)
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	pubsub.On("Disconnect", mock.Anything).Return(nil)

	svc, err := coordinator.NewService(defConfig(), agg, drift.New(driftCfg, nil), registry, swaps, repos, nil, pubsub, nil)
	require.NoError(t, err)
	defer func() { _ = svc.Shutdown(context.Background()) }()

	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, patient.Patient{Name: "pat-drift"})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	sample := func(shift float64) []float64 {
		features := make([]float64, 13)
		for i := range features {
			features[i] = rng.Float64()
		}
		features[3] = 100 + rng.Float64()*20 + shift
		features[4] = 180 + rng.Float64()*40 + shift
		features[7] = 70 + rng.Float64()*20 + shift

		return features
	}

	// Two full windows of baseline telemetry give the statistical and
	// distribution tests a reference to compare against; fewer points
	// would cap the ensemble at two of four votes.
	for i := 0; i < 2*driftCfg.WindowSize; i++ {
		require.NoError(t, svc.Observe(ctx, p.ID, sample(0), rng.Float64()))
	}

	var report coordinator.DriftReport
	for i := 0; i < driftCfg.WindowSize; i++ {
		report, err = svc.DetectDrift(ctx, p.ID, sample(60), rng.Float64(), drift.MethodAuto)
		require.NoError(t, err)
		if report.Detected && report.Swap != nil {
			break
		}
	}

	require.True(t, report.Detected)
	assert.Greater(t, report.ConsensusRatio, 0.5)
	require.NotNil(t, report.Swap)
	assert.True(t, report.Swap.Swapped)

	assignment, err := svc.ActiveModel(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Swap.New, assignment.ModelType)
}

func TestDriftHistoryPaging(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx := context.Background()

	// Detections only enter history once the window is full.
	for i := 0; i < 99; i++ {
		require.NoError(t, f.svc.Observe(ctx, "e1", []float64{1, 2, 3}, 0.5))
	}
	for i := 0; i < 5; i++ {
		_, err := f.svc.DetectDrift(ctx, "e1", []float64{1, 2, 3}, 0.5, drift.MethodStatistical)
		require.NoError(t, err)
	}

	page, err := f.svc.DriftHistory(ctx, "e1", 0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), page.Total)
	assert.Len(t, page.Results, 3)

	page, err = f.svc.DriftHistory(ctx, "e1", 4, 3)
	require.NoError(t, err)
	assert.Len(t, page.Results, 1)

	page, err = f.svc.DriftHistory(ctx, "e1", 10, 3)
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Equal(t, uint64(5), page.Total)
}

func TestPredictWithoutArtifactFails(t *testing.T) {
	f := newFixture(t, defConfig())

	_, err := f.svc.Predict(context.Background(), "e1", []float64{1, 2, 3})
	assert.ErrorIs(t, err, vigilerrors.ErrModelUnavailable)
}

func TestMonitorStatusBeforeStart(t *testing.T) {
	f := newFixture(t, defConfig())

	status, err := f.svc.MonitorStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Contains(t, status.Checks, "drift_patterns")
	assert.Zero(t, status.AlertCount)
}

func TestMonitorStartStop(t *testing.T) {
	f := newFixture(t, defConfig())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, f.svc.StartMonitor(ctx))

	status, err := f.svc.MonitorStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.False(t, status.LastSweep.IsZero())

	cancel()
	require.Eventually(t, func() bool {
		status, err := f.svc.MonitorStatus(context.Background())

		return err == nil && !status.Running
	}, time.Second, 10*time.Millisecond)
}

func TestAlertsEmpty(t *testing.T) {
	f := newFixture(t, defConfig())

	page, err := f.svc.Alerts(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
