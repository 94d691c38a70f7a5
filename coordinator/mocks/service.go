package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) RegisterUpdate(ctx context.Context, u round.Update) (round.Ack, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(round.Ack), args.Error(1)
}

func (m *MockService) Aggregate(ctx context.Context) (round.Record, error) {
	args := m.Called(ctx)
	return args.Get(0).(round.Record), args.Error(1)
}

func (m *MockService) GetGlobalModel(ctx context.Context) (coordinator.GlobalModel, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.GlobalModel), args.Error(1)
}

func (m *MockService) SetGlobalModel(ctx context.Context, weights params.Map) (coordinator.GlobalModel, error) {
	args := m.Called(ctx, weights)
	return args.Get(0).(coordinator.GlobalModel), args.Error(1)
}

func (m *MockService) ResetRound(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) Status(ctx context.Context) (coordinator.Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.Status), args.Error(1)
}

func (m *MockService) ListRounds(ctx context.Context, offset, limit uint64) (round.RecordPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(round.RecordPage), args.Error(1)
}

func (m *MockService) CreateAgent(ctx context.Context, a agent.Agent) (agent.Agent, error) {
	args := m.Called(ctx, a)
	return args.Get(0).(agent.Agent), args.Error(1)
}

func (m *MockService) GetAgent(ctx context.Context, agentID string) (agent.Agent, error) {
	args := m.Called(ctx, agentID)
	return args.Get(0).(agent.Agent), args.Error(1)
}

func (m *MockService) ListAgents(ctx context.Context, offset, limit uint64) (agent.AgentPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(agent.AgentPage), args.Error(1)
}

func (m *MockService) DeleteAgent(ctx context.Context, agentID string) error {
	args := m.Called(ctx, agentID)
	return args.Error(0)
}

func (m *MockService) CreatePatient(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(patient.Patient), args.Error(1)
}

func (m *MockService) GetPatient(ctx context.Context, patientID string) (patient.Patient, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(patient.Patient), args.Error(1)
}

func (m *MockService) ListPatients(ctx context.Context, offset, limit uint64) (patient.PatientPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(patient.PatientPage), args.Error(1)
}

func (m *MockService) Observe(ctx context.Context, patientID string, features []float64, prediction float64) error {
	args := m.Called(ctx, patientID, features, prediction)
	return args.Error(0)
}

func (m *MockService) DetectDrift(ctx context.Context, patientID string, features []float64, prediction float64, method drift.Method) (coordinator.DriftReport, error) {
	args := m.Called(ctx, patientID, features, prediction, method)
	return args.Get(0).(coordinator.DriftReport), args.Error(1)
}

func (m *MockService) DriftStatus(ctx context.Context, patientID string) (drift.Status, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(drift.Status), args.Error(1)
}

func (m *MockService) DriftHistory(ctx context.Context, patientID string, offset, limit uint64) (coordinator.DriftHistoryPage, error) {
	args := m.Called(ctx, patientID, offset, limit)
	return args.Get(0).(coordinator.DriftHistoryPage), args.Error(1)
}

func (m *MockService) ActiveModel(ctx context.Context, patientID string) (coordinator.ModelAssignment, error) {
	args := m.Called(ctx, patientID)
	return args.Get(0).(coordinator.ModelAssignment), args.Error(1)
}

func (m *MockService) SwapModel(ctx context.Context, patientID, driftType string, confidence float64) (models.SwapRecord, error) {
	args := m.Called(ctx, patientID, driftType, confidence)
	return args.Get(0).(models.SwapRecord), args.Error(1)
}

func (m *MockService) ListSwaps(ctx context.Context, patientID string, offset, limit uint64) (coordinator.SwapPage, error) {
	args := m.Called(ctx, patientID, offset, limit)
	return args.Get(0).(coordinator.SwapPage), args.Error(1)
}

func (m *MockService) Predict(ctx context.Context, patientID string, features []float64) (coordinator.Prediction, error) {
	args := m.Called(ctx, patientID, features)
	return args.Get(0).(coordinator.Prediction), args.Error(1)
}

func (m *MockService) Alerts(ctx context.Context, offset, limit uint64) (alert.AlertPage, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(alert.AlertPage), args.Error(1)
}

func (m *MockService) MonitorStatus(ctx context.Context) (coordinator.MonitorStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.MonitorStatus), args.Error(1)
}

func (m *MockService) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) StartMonitor(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
