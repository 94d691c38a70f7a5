package sdk

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	agentsEndpoint  = "/agents"
	alertsEndpoint  = "/alerts"
	monitorEndpoint = "/monitor"
)

type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Alive        bool        `json:"alive,omitempty"`
	AliveHistory []time.Time `json:"alive_history,omitempty"`
	UpdateCount  uint64      `json:"update_count,omitempty"`
	LastUpdateAt time.Time   `json:"last_update_at,omitempty"`
}

type AgentPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Agents []Agent `json:"agents"`
}

type Alert struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	PatientID string         `json:"patient_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	At        time.Time      `json:"timestamp"`
}

type AlertPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Alerts []Alert `json:"alerts"`
}

type MonitorStatus struct {
	Running    bool      `json:"running"`
	Interval   string    `json:"interval"`
	LastSweep  time.Time `json:"last_sweep"`
	Checks     []string  `json:"checks"`
	AlertCount uint64    `json:"alert_count"`
}

func (sdk *vigilSDK) CreateAgent(agent Agent) (Agent, error) {
	data, err := json.Marshal(agent)
	if err != nil {
		return Agent{}, err
	}

	url := sdk.coordinatorURL + agentsEndpoint

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusCreated)
	if err != nil {
		return Agent{}, err
	}

	var a Agent
	if err := json.Unmarshal(body, &a); err != nil {
		return Agent{}, err
	}

	return a, nil
}

func (sdk *vigilSDK) GetAgent(id string) (Agent, error) {
	url := sdk.coordinatorURL + agentsEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Agent{}, err
	}

	var a Agent
	if err := json.Unmarshal(body, &a); err != nil {
		return Agent{}, err
	}

	return a, nil
}

func (sdk *vigilSDK) ListAgents(offset, limit uint64) (AgentPage, error) {
	url := sdk.coordinatorURL + agentsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return AgentPage{}, err
	}

	var page AgentPage
	if err := json.Unmarshal(body, &page); err != nil {
		return AgentPage{}, err
	}

	return page, nil
}

func (sdk *vigilSDK) DeleteAgent(id string) error {
	url := sdk.coordinatorURL + agentsEndpoint + "/" + id

	if _, err := sdk.processRequest(http.MethodDelete, url, nil, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}

func (sdk *vigilSDK) Alerts(offset, limit uint64) (AlertPage, error) {
	url := sdk.coordinatorURL + alertsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return AlertPage{}, err
	}

	var page AlertPage
	if err := json.Unmarshal(body, &page); err != nil {
		return AlertPage{}, err
	}

	return page, nil
}

func (sdk *vigilSDK) Monitor() (MonitorStatus, error) {
	url := sdk.coordinatorURL + monitorEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return MonitorStatus{}, err
	}

	var status MonitorStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return MonitorStatus{}, err
	}

	return status, nil
}
