package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/aggregate"
	"github.com/vigil-fl/vigil/pkg/drift"
	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/mqtt"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/pkg/ring"
	"github.com/vigil-fl/vigil/pkg/storage"
	"github.com/vigil-fl/vigil/round"
)

const (
	defMinClients = 3

	roundHistoryCap  = 100
	snapshotQueueCap = 16
	maxAlertLimit    = 1000
)

type coordinatorService struct {
	cfg        Config
	aggregator *aggregate.Aggregator
	detector   *drift.Detector
	registry   *models.Registry
	swaps      *models.SwapState
	patients   storage.PatientRepository
	agents     storage.AgentRepository
	rounds     storage.RoundRepository
	swapLog    storage.SwapRepository
	alertsDB   storage.AlertRepository
	archive    *Archive
	pubsub     mqtt.PubSub
	monitor    *monitor
	logger     *slog.Logger

	// mu guards the pending buffer, round counter, state and global
	// map. Registration, quorum checks and the clear-and-replace in
	// aggregation all run under it, so an update is never lost or
	// consumed twice.
	mu        sync.Mutex
	state     round.State
	round     uint64
	global    params.Map
	globalAt  time.Time
	pending   map[string]round.Update
	lastAgg   time.Time
	history   *ring.Ring[round.Record]
	startedAt time.Time

	snapshots    chan Snapshot
	snapshotDone chan struct{}
}

// NewService wires the aggregation engine, drift detector, model
// registry and repositories into one coordinator. When the snapshot
// archive holds an earlier global model it is restored, so restarts
// resume from the last persisted round. Alert hooks are invoked for
// every alert the background monitor raises.
func NewService(cfg Config, aggregator *aggregate.Aggregator, detector *drift.Detector, registry *models.Registry, swaps *models.SwapState, repos *storage.Repositories, archive *Archive, pubsub mqtt.PubSub, logger *slog.Logger, alertHooks ...func(alert.Alert)) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinClients < 1 {
		cfg.MinClients = defMinClients
	}

	svc := &coordinatorService{
		cfg:          cfg,
		aggregator:   aggregator,
		detector:     detector,
		registry:     registry,
		swaps:        swaps,
		patients:     repos.Patients,
		agents:       repos.Agents,
		rounds:       repos.Rounds,
		swapLog:      repos.Swaps,
		alertsDB:     repos.Alerts,
		archive:      archive,
		pubsub:       pubsub,
		logger:       logger,
		state:        round.Idle,
		pending:      make(map[string]round.Update),
		history:      ring.New[round.Record](roundHistoryCap),
		startedAt:    time.Now(),
		snapshots:    make(chan Snapshot, snapshotQueueCap),
		snapshotDone: make(chan struct{}),
	}

	if archive != nil {
		snap, err := archive.LoadLatest()
		switch {
		case err == nil:
			svc.round = snap.Round
			svc.global = snap.Weights
			svc.globalAt = snap.TakenAt
			logger.Info("restored global model from snapshot",
				slog.Uint64("round", snap.Round),
				slog.Time("taken_at", snap.TakenAt),
			)
		case !errors.Is(err, pkgerrors.ErrNotFound):
			logger.Warn("failed to restore global model snapshot", slog.Any("error", err))
		}
	}

	mon, err := newMonitor(cfg, detector, repos.Patients, repos.Alerts, pubsub, svc.recentRounds, logger, alertHooks...)
	if err != nil {
		return nil, err
	}
	svc.monitor = mon

	go svc.snapshotLoop()

	return svc, nil
}

func (svc *coordinatorService) RegisterUpdate(ctx context.Context, u round.Update) (round.Ack, error) {
	if u.ClientID == "" {
		return round.Ack{}, fmt.Errorf("%w: client id", pkgerrors.ErrEmptyKey)
	}
	if u.SampleCount < 1 {
		return round.Ack{}, fmt.Errorf("%w: sample count must be positive", pkgerrors.ErrInvalidData)
	}
	if len(u.Weights) == 0 {
		return round.Ack{}, fmt.Errorf("%w: update carries no weights", pkgerrors.ErrInvalidData)
	}
	u.ReceivedAt = time.Now()

	svc.mu.Lock()
	svc.pending[u.ClientID] = u
	svc.state = round.Collecting
	received := len(svc.pending)

	if received < svc.cfg.MinClients {
		currentRound := svc.round
		svc.mu.Unlock()

		svc.recordClientUpdate(ctx, u)

		return round.Ack{
			Status:   round.StatusWaiting,
			Round:    currentRound,
			Received: received,
			Needed:   svc.cfg.MinClients,
		}, nil
	}

	rec, snap, err := svc.aggregateLocked()
	svc.mu.Unlock()
	if err != nil {
		return round.Ack{}, err
	}

	svc.recordClientUpdate(ctx, u)
	svc.finishRound(ctx, rec, snap)

	return round.Ack{
		Status:   round.StatusAggregated,
		Round:    rec.Round,
		Received: rec.ClientCount,
		Needed:   svc.cfg.MinClients,
		Record:   &rec,
	}, nil
}

func (svc *coordinatorService) Aggregate(ctx context.Context) (round.Record, error) {
	svc.mu.Lock()
	rec, snap, err := svc.aggregateLocked()
	svc.mu.Unlock()
	if err != nil {
		return round.Record{}, err
	}

	svc.finishRound(ctx, rec, snap)

	return rec, nil
}

// aggregateLocked runs one aggregation round. The caller holds mu. On
// any strategy error the round counter is untouched and the pending
// buffer retained, so the offending update can be inspected or the
// round reset.
func (svc *coordinatorService) aggregateLocked() (round.Record, *Snapshot, error) {
	if len(svc.pending) < svc.cfg.MinClients {
		return round.Record{}, nil, fmt.Errorf("%w: have %d, need %d", pkgerrors.ErrInsufficientClients, len(svc.pending), svc.cfg.MinClients)
	}

	svc.state = round.Aggregating

	updates := make([]round.Update, 0, len(svc.pending))
	for _, u := range svc.pending {
		updates = append(updates, u)
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].ClientID < updates[j].ClientID
	})

	global, err := svc.aggregator.Aggregate(updates, svc.global)
	if err != nil {
		svc.state = round.Collecting

		return round.Record{}, nil, err
	}

	svc.round++
	svc.global = global
	svc.globalAt = time.Now()

	rec := round.Record{
		Round:       svc.round,
		Method:      svc.aggregator.Method().String(),
		ClientCount: len(updates),
		ClientIDs:   make([]string, 0, len(updates)),
		Timestamp:   svc.globalAt,
	}
	var accSum, lossSum float64
	for _, u := range updates {
		rec.TotalSamples += int64(u.SampleCount)
		accSum += u.Accuracy
		lossSum += u.Loss
		rec.ClientIDs = append(rec.ClientIDs, u.ClientID)
	}
	rec.AvgAccuracy = accSum / float64(len(updates))
	rec.AvgLoss = lossSum / float64(len(updates))

	svc.history.Push(rec)
	svc.pending = make(map[string]round.Update)
	svc.state = round.Idle
	svc.lastAgg = rec.Timestamp

	var snap *Snapshot
	if svc.cfg.SnapshotEvery > 0 && rec.Round%svc.cfg.SnapshotEvery == 0 {
		snap = &Snapshot{
			Round:   rec.Round,
			Method:  rec.Method,
			Weights: global.Clone(),
			TakenAt: rec.Timestamp,
		}
	}

	return rec, snap, nil
}

// finishRound persists and announces a completed round. The round is
// already committed; failures here are logged and never unwind it.
func (svc *coordinatorService) finishRound(ctx context.Context, rec round.Record, snap *Snapshot) {
	if err := svc.rounds.Create(ctx, rec); err != nil {
		svc.logger.Warn("failed to persist round record",
			slog.Uint64("round", rec.Round),
			slog.Any("error", err),
		)
	}

	if err := svc.pubsub.Publish(ctx, svc.topics().Rounds(), rec); err != nil {
		svc.logger.Warn("failed to publish round event",
			slog.Uint64("round", rec.Round),
			slog.Any("error", err),
		)
	}

	if snap != nil {
		select {
		case svc.snapshots <- *snap:
		default:
			svc.logger.Warn("snapshot queue full, skipping snapshot",
				slog.Uint64("round", snap.Round),
			)
		}
	}
}

func (svc *coordinatorService) snapshotLoop() {
	defer close(svc.snapshotDone)

	for snap := range svc.snapshots {
		if svc.archive == nil {
			continue
		}
		if err := svc.archive.Save(snap); err != nil {
			svc.logger.Warn("failed to write model snapshot",
				slog.Uint64("round", snap.Round),
				slog.Any("error", err),
			)

			continue
		}
		svc.logger.Info("model snapshot written", slog.Uint64("round", snap.Round))
	}
}

// recordClientUpdate bumps the fleet row for a known agent. Updates
// from clients outside the fleet registry are still aggregated.
func (svc *coordinatorService) recordClientUpdate(ctx context.Context, u round.Update) {
	a, err := svc.agents.Get(ctx, u.ClientID)
	if err != nil {
		return
	}

	a.UpdateCount++
	a.LastUpdateAt = u.ReceivedAt
	if err := svc.agents.Update(ctx, a); err != nil {
		svc.logger.Warn("failed to record client update on agent",
			slog.String("agent_id", u.ClientID),
			slog.Any("error", err),
		)
	}
}

func (svc *coordinatorService) recentRounds() []round.Record {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.history.Tail(2)
}

func (svc *coordinatorService) GetGlobalModel(ctx context.Context) (GlobalModel, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.global == nil {
		return GlobalModel{}, fmt.Errorf("global model: %w", pkgerrors.ErrNotFound)
	}

	return GlobalModel{
		Round:     svc.round,
		Weights:   svc.global.Clone(),
		UpdatedAt: svc.globalAt,
	}, nil
}

func (svc *coordinatorService) SetGlobalModel(ctx context.Context, weights params.Map) (GlobalModel, error) {
	if len(weights) == 0 {
		return GlobalModel{}, fmt.Errorf("%w: model carries no weights", pkgerrors.ErrInvalidData)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.global = weights.Clone()
	svc.globalAt = time.Now()

	return GlobalModel{
		Round:     svc.round,
		Weights:   svc.global.Clone(),
		UpdatedAt: svc.globalAt,
	}, nil
}

func (svc *coordinatorService) ResetRound(ctx context.Context) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.pending = make(map[string]round.Update)
	svc.state = round.Idle

	return nil
}

func (svc *coordinatorService) Status(ctx context.Context) (Status, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	clients := make([]string, 0, len(svc.pending))
	for id := range svc.pending {
		clients = append(clients, id)
	}
	sort.Strings(clients)

	return Status{
		State:           svc.state,
		Round:           svc.round,
		PendingClients:  clients,
		MinClients:      svc.cfg.MinClients,
		Method:          svc.aggregator.Method().String(),
		LastAggregation: svc.lastAgg,
		Uptime:          time.Since(svc.startedAt).Round(time.Second).String(),
	}, nil
}

func (svc *coordinatorService) ListRounds(ctx context.Context, offset, limit uint64) (round.RecordPage, error) {
	records, total, err := svc.rounds.List(ctx, offset, limit)
	if err != nil {
		return round.RecordPage{}, err
	}

	return round.RecordPage{
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Records: records,
	}, nil
}

func (svc *coordinatorService) CreateAgent(ctx context.Context, a agent.Agent) (agent.Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.RecordAlive(time.Now())

	if err := svc.agents.Create(ctx, a); err != nil {
		return agent.Agent{}, err
	}

	return a, nil
}

func (svc *coordinatorService) GetAgent(ctx context.Context, agentID string) (agent.Agent, error) {
	a, err := svc.agents.Get(ctx, agentID)
	if err != nil {
		return agent.Agent{}, err
	}
	a.SetAlive()

	return a, nil
}

func (svc *coordinatorService) ListAgents(ctx context.Context, offset, limit uint64) (agent.AgentPage, error) {
	agents, total, err := svc.agents.List(ctx, offset, limit)
	if err != nil {
		return agent.AgentPage{}, err
	}
	for i := range agents {
		agents[i].SetAlive()
	}

	return agent.AgentPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Agents: agents,
	}, nil
}

func (svc *coordinatorService) DeleteAgent(ctx context.Context, agentID string) error {
	return svc.agents.Delete(ctx, agentID)
}

func (svc *coordinatorService) CreatePatient(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Category == "" {
		p.Category = patient.DefaultCategory
	}
	if p.ActiveModel == "" {
		p.ActiveModel = models.DefaultModel
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	return svc.patients.Create(ctx, p)
}

func (svc *coordinatorService) GetPatient(ctx context.Context, patientID string) (patient.Patient, error) {
	return svc.patients.Get(ctx, patientID)
}

func (svc *coordinatorService) ListPatients(ctx context.Context, offset, limit uint64) (patient.PatientPage, error) {
	patients, total, err := svc.patients.List(ctx, offset, limit)
	if err != nil {
		return patient.PatientPage{}, err
	}

	return patient.PatientPage{
		Offset:   offset,
		Limit:    limit,
		Total:    total,
		Patients: patients,
	}, nil
}

func (svc *coordinatorService) Observe(ctx context.Context, patientID string, features []float64, prediction float64) error {
	if patientID == "" {
		return fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}
	if len(features) == 0 {
		return fmt.Errorf("%w: observation carries no features", pkgerrors.ErrInvalidData)
	}

	svc.detector.Add(patientID, features, prediction)

	return nil
}

func (svc *coordinatorService) DetectDrift(ctx context.Context, patientID string, features []float64, prediction float64, method drift.Method) (DriftReport, error) {
	if patientID == "" {
		return DriftReport{}, fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}
	if len(features) == 0 {
		return DriftReport{}, fmt.Errorf("%w: observation carries no features", pkgerrors.ErrInvalidData)
	}

	res := svc.detector.Detect(patientID, features, prediction, method)
	report := DriftReport{Result: res}
	if !res.Detected || res.DriftType == "" {
		return report, nil
	}

	rec, err := svc.swaps.Swap(ctx, patientID, res.DriftType, res.Confidence)
	if err != nil {
		svc.logger.Warn("model swap after drift failed",
			slog.String("patient_id", patientID),
			slog.String("drift_type", res.DriftType),
			slog.Any("error", err),
		)

		return report, nil
	}

	report.Swap = &rec
	if rec.Swapped {
		svc.syncAssignment(ctx, patientID, rec.New)
	}

	return report, nil
}

func (svc *coordinatorService) DriftStatus(ctx context.Context, patientID string) (drift.Status, error) {
	if patientID == "" {
		return drift.Status{}, fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}

	return svc.detector.Status(patientID), nil
}

func (svc *coordinatorService) DriftHistory(ctx context.Context, patientID string, offset, limit uint64) (DriftHistoryPage, error) {
	if patientID == "" {
		return DriftHistoryPage{}, fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}

	all := svc.detector.History(patientID)
	total := uint64(len(all))
	page := DriftHistoryPage{
		PatientID: patientID,
		Offset:    offset,
		Limit:     limit,
		Total:     total,
	}
	if offset >= total {
		return page, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page.Results = all[offset:end]

	return page, nil
}

func (svc *coordinatorService) ActiveModel(ctx context.Context, patientID string) (ModelAssignment, error) {
	if patientID == "" {
		return ModelAssignment{}, fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}

	modelType := svc.swaps.Active(patientID)
	assignment := ModelAssignment{
		PatientID: patientID,
		ModelType: modelType,
	}
	if desc, err := svc.registry.Lookup(modelType); err == nil {
		assignment.Version = desc.Version
	}

	return assignment, nil
}

func (svc *coordinatorService) SwapModel(ctx context.Context, patientID, driftType string, confidence float64) (models.SwapRecord, error) {
	if patientID == "" {
		return models.SwapRecord{}, fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}
	if driftType == "" {
		return models.SwapRecord{}, fmt.Errorf("%w: drift type", pkgerrors.ErrEmptyKey)
	}

	rec, err := svc.swaps.Swap(ctx, patientID, driftType, confidence)
	if err != nil {
		return models.SwapRecord{}, err
	}
	if rec.Swapped {
		svc.syncAssignment(ctx, patientID, rec.New)
	}

	return rec, nil
}

func (svc *coordinatorService) ListSwaps(ctx context.Context, patientID string, offset, limit uint64) (SwapPage, error) {
	if patientID == "" {
		return SwapPage{}, fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}

	records, total, err := svc.swapLog.ListByPatient(ctx, patientID, offset, limit)
	if err != nil {
		return SwapPage{}, err
	}

	return SwapPage{
		PatientID: patientID,
		Offset:    offset,
		Limit:     limit,
		Total:     total,
		Swaps:     records,
	}, nil
}

func (svc *coordinatorService) Predict(ctx context.Context, patientID string, features []float64) (Prediction, error) {
	if patientID == "" {
		return Prediction{}, fmt.Errorf("%w: patient id", pkgerrors.ErrEmptyKey)
	}
	if len(features) == 0 {
		return Prediction{}, fmt.Errorf("%w: observation carries no features", pkgerrors.ErrInvalidData)
	}

	modelType := svc.swaps.Active(patientID)
	handle, err := svc.registry.Load(ctx, modelType)
	if err != nil {
		return Prediction{}, err
	}
	if handle.Scorer == nil {
		return Prediction{}, fmt.Errorf("%w: %s has no scoring artifact", pkgerrors.ErrModelUnavailable, modelType)
	}

	score, err := handle.Scorer.Predict(ctx, features)
	if err != nil {
		return Prediction{}, err
	}

	res := svc.detector.Detect(patientID, features, score, drift.MethodAuto)

	return Prediction{
		PatientID:  patientID,
		Prediction: score,
		ModelUsed:  modelType,
		Drift:      &res,
	}, nil
}

func (svc *coordinatorService) Alerts(ctx context.Context, offset, limit uint64) (alert.AlertPage, error) {
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}

	alerts, total, err := svc.alertsDB.List(ctx, offset, limit)
	if err != nil {
		return alert.AlertPage{}, err
	}

	return alert.AlertPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Alerts: alerts,
	}, nil
}

func (svc *coordinatorService) MonitorStatus(ctx context.Context) (MonitorStatus, error) {
	return svc.monitor.status(), nil
}

func (svc *coordinatorService) StartMonitor(ctx context.Context) error {
	return svc.monitor.start(ctx)
}

func (svc *coordinatorService) Shutdown(ctx context.Context) error {
	svc.monitor.stop()

	close(svc.snapshots)
	<-svc.snapshotDone

	var err error
	if svc.registry != nil {
		err = svc.registry.Close(ctx)
	}

	return errors.Join(err, svc.pubsub.Disconnect(ctx))
}

// syncAssignment mirrors the in-memory model assignment onto the
// patient row so listings stay consistent after a swap.
func (svc *coordinatorService) syncAssignment(ctx context.Context, patientID, model string) {
	p, err := svc.patients.Get(ctx, patientID)
	if err != nil {
		return
	}

	p.ActiveModel = model
	p.UpdatedAt = time.Now()
	if err := svc.patients.Update(ctx, p); err != nil {
		svc.logger.Warn("failed to sync patient model assignment",
			slog.String("patient_id", patientID),
			slog.Any("error", err),
		)
	}
}
