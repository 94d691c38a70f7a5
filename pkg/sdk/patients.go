package sdk

import (
	"encoding/json"
	"net/http"
	"time"
)

const patientsEndpoint = "/patients"

type Patient struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	ActiveModel string    `json:"active_model,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type PatientPage struct {
	Offset   uint64    `json:"offset"`
	Limit    uint64    `json:"limit"`
	Total    uint64    `json:"total"`
	Patients []Patient `json:"patients"`
}

type Observation struct {
	Features   []float64 `json:"features"`
	Prediction float64   `json:"prediction,omitempty"`
}

type DriftResult struct {
	Detected       bool      `json:"drift_detected"`
	Confidence     float64   `json:"confidence"`
	Method         string    `json:"method"`
	DriftType      string    `json:"drift_type,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	DataPoints     int       `json:"data_points"`
	PValue         float64   `json:"p_value,omitempty"`
	TestedFeatures int       `json:"tested_features,omitempty"`
	AvgKL          float64   `json:"avg_kl_divergence,omitempty"`
	CenterShift    float64   `json:"center_movement,omitempty"`
	Silhouette     float64   `json:"silhouette_score,omitempty"`
	AvgDeviation   float64   `json:"avg_deviation,omitempty"`
	ConsensusRatio float64   `json:"consensus_ratio,omitempty"`
	MethodsUsed    int       `json:"methods_used,omitempty"`
	At             time.Time `json:"timestamp"`
}

type CategoryChange struct {
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"timestamp"`
}

type DriftStatus struct {
	PatientID       string           `json:"patient_id"`
	Category        string           `json:"category"`
	DataPoints      int              `json:"data_points"`
	LastUpdated     time.Time        `json:"last_updated"`
	CategoryHistory []CategoryChange `json:"category_history,omitempty"`
}

type DriftHistoryPage struct {
	PatientID string        `json:"patient_id"`
	Offset    uint64        `json:"offset"`
	Limit     uint64        `json:"limit"`
	Total     uint64        `json:"total"`
	Results   []DriftResult `json:"results"`
}

type Assignment struct {
	PatientID string `json:"patient_id"`
	ModelType string `json:"model_type"`
	Version   string `json:"version,omitempty"`
}

type Swap struct {
	PatientID  string    `json:"patient_id"`
	Previous   string    `json:"previous_model"`
	New        string    `json:"new_model"`
	DriftType  string    `json:"drift_type"`
	Confidence float64   `json:"confidence"`
	Swapped    bool      `json:"swapped"`
	At         time.Time `json:"timestamp"`
}

type SwapPage struct {
	PatientID string `json:"patient_id"`
	Offset    uint64 `json:"offset"`
	Limit     uint64 `json:"limit"`
	Total     uint64 `json:"total"`
	Swaps     []Swap `json:"swaps"`
}

type Prediction struct {
	PatientID  string       `json:"patient_id"`
	Prediction float64      `json:"prediction"`
	ModelUsed  string       `json:"model_used"`
	Drift      *DriftResult `json:"drift,omitempty"`
}

func (sdk *vigilSDK) CreatePatient(patient Patient) (Patient, error) {
	data, err := json.Marshal(patient)
	if err != nil {
		return Patient{}, err
	}

	url := sdk.coordinatorURL + patientsEndpoint

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusCreated)
	if err != nil {
		return Patient{}, err
	}

	var p Patient
	if err := json.Unmarshal(body, &p); err != nil {
		return Patient{}, err
	}

	return p, nil
}

func (sdk *vigilSDK) GetPatient(id string) (Patient, error) {
	url := sdk.coordinatorURL + patientsEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Patient{}, err
	}

	var p Patient
	if err := json.Unmarshal(body, &p); err != nil {
		return Patient{}, err
	}

	return p, nil
}

func (sdk *vigilSDK) ListPatients(offset, limit uint64) (PatientPage, error) {
	url := sdk.coordinatorURL + patientsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return PatientPage{}, err
	}

	var page PatientPage
	if err := json.Unmarshal(body, &page); err != nil {
		return PatientPage{}, err
	}

	return page, nil
}

func (sdk *vigilSDK) Observe(patientID string, obs Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return err
	}

	url := sdk.coordinatorURL + patientsEndpoint + "/" + patientID + "/observations"

	if _, err := sdk.processRequest(http.MethodPost, url, data, http.StatusAccepted); err != nil {
		return err
	}

	return nil
}

func (sdk *vigilSDK) Detect(patientID string, obs Observation, method string) (DriftResult, error) {
	payload := map[string]any{
		"features":   obs.Features,
		"prediction": obs.Prediction,
	}
	if method != "" {
		payload["method"] = method
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return DriftResult{}, err
	}

	url := sdk.coordinatorURL + patientsEndpoint + "/" + patientID + "/drift"

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusOK)
	if err != nil {
		return DriftResult{}, err
	}

	var result DriftResult
	if err := json.Unmarshal(body, &result); err != nil {
		return DriftResult{}, err
	}

	return result, nil
}

func (sdk *vigilSDK) DriftStatus(patientID string) (DriftStatus, error) {
	url := sdk.coordinatorURL + patientsEndpoint + "/" + patientID + "/drift"

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return DriftStatus{}, err
	}

	var status DriftStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return DriftStatus{}, err
	}

	return status, nil
}

func (sdk *vigilSDK) DriftHistory(patientID string, offset, limit uint64) (DriftHistoryPage, error) {
	url := sdk.coordinatorURL + patientsEndpoint + "/" + patientID + "/drift/history" + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return DriftHistoryPage{}, err
	}

	var page DriftHistoryPage
	if err := json.Unmarshal(body, &page); err != nil {
		return DriftHistoryPage{}, err
	}

	return page, nil
}

func (sdk *vigilSDK) ActiveModel(patientID string) (Assignment, error) {
	url := sdk.coordinatorURL + patientsEndpoint + "/" + patientID + "/model"

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Assignment{}, err
	}

	var assignment Assignment
	if err := json.Unmarshal(body, &assignment); err != nil {
		return Assignment{}, err
	}

	return assignment, nil
}

func (sdk *vigilSDK) Swap(patientID, driftType string, confidence float64) (Swap, error) {
	data, err := json.Marshal(map[string]any{
		"drift_type": driftType,
		"confidence": confidence,
	})
	if err != nil {
		return Swap{}, err
	}

	url := sdk.coordinatorURL + patientsEndpoint + "/" + patientID + "/model/swap"

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusOK)
	if err != nil {
		return Swap{}, err
	}

	var swap Swap
	if err := json.Unmarshal(body, &swap); err != nil {
		return Swap{}, err
	}

	return swap, nil
}

func (sdk *vigilSDK) Swaps(patientID string, offset, limit uint64) (SwapPage, error) {
	url := sdk.coordinatorURL + patientsEndpoint + "/" + patientID + "/swaps" + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return SwapPage{}, err
	}

	var page SwapPage
	if err := json.Unmarshal(body, &page); err != nil {
		return SwapPage{}, err
	}

	return page, nil
}

func (sdk *vigilSDK) Predict(patientID string, features []float64) (Prediction, error) {
	data, err := json.Marshal(map[string]any{
		"patient_id": patientID,
		"features":   features,
	})
	if err != nil {
		return Prediction{}, err
	}

	url := sdk.coordinatorURL + "/predict"

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusOK)
	if err != nil {
		return Prediction{}, err
	}

	var prediction Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return Prediction{}, err
	}

	return prediction, nil
}
