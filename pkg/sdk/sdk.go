package sdk

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"slices"
)

const CTJSON string = "application/json"

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// SubmitUpdate submits one client's trained parameters to the
	// pending round.
	//
	// example:
	//  update := sdk.Update{
	//    ClientID:    "edge-1",
	//    Weights:     map[string][]float64{"dense/kernel": {0.1, 0.2}},
	//    SampleCount: 100,
	//  }
	//  ack, _ := sdk.SubmitUpdate(update)
	//  fmt.Println(ack)
	SubmitUpdate(update Update) (Ack, error)

	// Status reports the coordinator's current round state.
	//
	// example:
	//  status, _ := sdk.Status()
	//  fmt.Println(status)
	Status() (Status, error)

	// Rounds lists completed aggregation rounds.
	//
	// example:
	//  page, _ := sdk.Rounds(0, 10)
	//  fmt.Println(page)
	Rounds(offset uint64, limit uint64) (RoundPage, error)

	// Aggregate forces aggregation of the pending buffer. ErrRoundWaiting
	// is returned when the quorum has not been met yet.
	//
	// example:
	//  record, _ := sdk.Aggregate()
	//  fmt.Println(record)
	Aggregate() (Round, error)

	// ResetRound discards the pending buffer.
	//
	// example:
	//  _ = sdk.ResetRound()
	ResetRound() error

	// GlobalModel fetches the current global model parameters.
	//
	// example:
	//  model, _ := sdk.GlobalModel()
	//  fmt.Println(model)
	GlobalModel() (GlobalModel, error)

	// SetGlobalModel replaces the global model parameters.
	//
	// example:
	//  model, _ := sdk.SetGlobalModel(map[string][]float64{"dense/kernel": {0.1}})
	//  fmt.Println(model)
	SetGlobalModel(weights map[string][]float64) (GlobalModel, error)

	// CreateAgent registers an edge agent with the fleet.
	//
	// example:
	//  agent := sdk.Agent{
	//    ID:   "edge-1",
	//    Name: "ward-3-gateway",
	//  }
	//  agent, _ := sdk.CreateAgent(agent)
	//  fmt.Println(agent)
	CreateAgent(agent Agent) (Agent, error)

	// GetAgent gets an agent by id.
	//
	// example:
	//  agent, _ := sdk.GetAgent("edge-1")
	//  fmt.Println(agent)
	GetAgent(id string) (Agent, error)

	// ListAgents lists fleet agents.
	//
	// example:
	//  page, _ := sdk.ListAgents(0, 10)
	//  fmt.Println(page)
	ListAgents(offset uint64, limit uint64) (AgentPage, error)

	// DeleteAgent removes an agent from the fleet.
	//
	// example:
	//  _ = sdk.DeleteAgent("edge-1")
	DeleteAgent(id string) error

	// CreatePatient enrolls a patient for drift monitoring.
	//
	// example:
	//  patient := sdk.Patient{
	//    Name: "John Doe",
	//  }
	//  patient, _ := sdk.CreatePatient(patient)
	//  fmt.Println(patient)
	CreatePatient(patient Patient) (Patient, error)

	// GetPatient gets a patient by id.
	//
	// example:
	//  patient, _ := sdk.GetPatient("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(patient)
	GetPatient(id string) (Patient, error)

	// ListPatients lists enrolled patients.
	//
	// example:
	//  page, _ := sdk.ListPatients(0, 10)
	//  fmt.Println(page)
	ListPatients(offset uint64, limit uint64) (PatientPage, error)

	// Observe feeds one telemetry sample into a patient's drift window
	// without running detection.
	//
	// example:
	//  _ = sdk.Observe("b1d10738", sdk.Observation{Features: features})
	Observe(patientID string, obs Observation) error

	// Detect feeds one sample and runs drift detection. Method is one
	// of auto, statistical, distribution, clustering, pattern or
	// ensemble; empty means auto.
	//
	// example:
	//  result, _ := sdk.Detect("b1d10738", sdk.Observation{Features: features}, "ensemble")
	//  fmt.Println(result)
	Detect(patientID string, obs Observation, method string) (DriftResult, error)

	// DriftStatus reports a patient's drift window state.
	//
	// example:
	//  status, _ := sdk.DriftStatus("b1d10738")
	//  fmt.Println(status)
	DriftStatus(patientID string) (DriftStatus, error)

	// DriftHistory lists a patient's past detection results.
	//
	// example:
	//  page, _ := sdk.DriftHistory("b1d10738", 0, 10)
	//  fmt.Println(page)
	DriftHistory(patientID string, offset uint64, limit uint64) (DriftHistoryPage, error)

	// ActiveModel reports which model currently serves a patient.
	//
	// example:
	//  assignment, _ := sdk.ActiveModel("b1d10738")
	//  fmt.Println(assignment)
	ActiveModel(patientID string) (Assignment, error)

	// Swap requests a model swap for a patient in response to drift.
	//
	// example:
	//  swap, _ := sdk.Swap("b1d10738", "gradual", 0.9)
	//  fmt.Println(swap)
	Swap(patientID string, driftType string, confidence float64) (Swap, error)

	// Swaps lists a patient's swap history.
	//
	// example:
	//  page, _ := sdk.Swaps("b1d10738", 0, 10)
	//  fmt.Println(page)
	Swaps(patientID string, offset uint64, limit uint64) (SwapPage, error)

	// Predict runs drift-aware inference for a patient.
	//
	// example:
	//  prediction, _ := sdk.Predict("b1d10738", features)
	//  fmt.Println(prediction)
	Predict(patientID string, features []float64) (Prediction, error)

	// Alerts lists raised monitoring alerts.
	//
	// example:
	//  page, _ := sdk.Alerts(0, 10)
	//  fmt.Println(page)
	Alerts(offset uint64, limit uint64) (AlertPage, error)

	// Monitor reports the background monitor's state.
	//
	// example:
	//  status, _ := sdk.Monitor()
	//  fmt.Println(status)
	Monitor() (MonitorStatus, error)
}

type vigilSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &vigilSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *vigilSDK) processRequest(method, reqURL string, data []byte, expectedRespCodes ...int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if !slices.Contains(expectedRespCodes, resp.StatusCode) {
		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}
