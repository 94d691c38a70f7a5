package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	updatesEndpoint = "/updates"
	roundsEndpoint  = "/rounds"
	statusEndpoint  = "/status"
	modelEndpoint   = "/model"
)

// ErrRoundWaiting is returned by Aggregate when the pending buffer has
// not reached the quorum yet.
var ErrRoundWaiting = errors.New("round is waiting for more client updates")

type Update struct {
	ClientID    string               `json:"client_id"`
	Weights     map[string][]float64 `json:"weights"`
	SampleCount int                  `json:"sample_count"`
	Accuracy    float64              `json:"accuracy,omitempty"`
	Loss        float64              `json:"loss,omitempty"`
	LocalSteps  int                  `json:"local_steps,omitempty"`
	Gradients   map[string][]float64 `json:"gradients,omitempty"`
}

type Round struct {
	Round        uint64    `json:"round"`
	Method       string    `json:"method"`
	ClientCount  int       `json:"client_count"`
	TotalSamples int64     `json:"total_samples"`
	AvgAccuracy  float64   `json:"avg_accuracy"`
	AvgLoss      float64   `json:"avg_loss"`
	ClientIDs    []string  `json:"client_ids"`
	Timestamp    time.Time `json:"timestamp"`
}

type RoundPage struct {
	Offset  uint64  `json:"offset"`
	Limit   uint64  `json:"limit"`
	Total   uint64  `json:"total"`
	Records []Round `json:"records"`
}

type Ack struct {
	Status   string `json:"status"`
	Round    uint64 `json:"round"`
	Received int    `json:"received"`
	Needed   int    `json:"needed"`
	Record   *Round `json:"record,omitempty"`
}

type Status struct {
	State           string    `json:"state"`
	Round           uint64    `json:"round"`
	PendingClients  []string  `json:"pending_clients"`
	MinClients      int       `json:"min_clients"`
	Method          string    `json:"method"`
	LastAggregation time.Time `json:"last_aggregation"`
	Uptime          string    `json:"uptime"`
}

type GlobalModel struct {
	Round     uint64               `json:"round"`
	Weights   map[string][]float64 `json:"weights"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (sdk *vigilSDK) SubmitUpdate(update Update) (Ack, error) {
	data, err := json.Marshal(update)
	if err != nil {
		return Ack{}, err
	}

	url := sdk.coordinatorURL + updatesEndpoint

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return Ack{}, err
	}

	var ack Ack
	if err := json.Unmarshal(body, &ack); err != nil {
		return Ack{}, err
	}

	return ack, nil
}

func (sdk *vigilSDK) Status() (Status, error) {
	url := sdk.coordinatorURL + statusEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Status{}, err
	}

	var s Status
	if err := json.Unmarshal(body, &s); err != nil {
		return Status{}, err
	}

	return s, nil
}

func (sdk *vigilSDK) Rounds(offset, limit uint64) (RoundPage, error) {
	url := sdk.coordinatorURL + roundsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return RoundPage{}, err
	}

	var page RoundPage
	if err := json.Unmarshal(body, &page); err != nil {
		return RoundPage{}, err
	}

	return page, nil
}

func (sdk *vigilSDK) Aggregate() (Round, error) {
	url := sdk.coordinatorURL + roundsEndpoint + "/aggregate"

	body, err := sdk.processRequest(http.MethodPost, url, nil, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return Round{}, err
	}

	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return Round{}, err
	}
	if probe.Status == "waiting" {
		return Round{}, ErrRoundWaiting
	}

	var rec Round
	if err := json.Unmarshal(body, &rec); err != nil {
		return Round{}, err
	}

	return rec, nil
}

func (sdk *vigilSDK) ResetRound() error {
	url := sdk.coordinatorURL + roundsEndpoint + "/reset"

	if _, err := sdk.processRequest(http.MethodPost, url, nil, http.StatusNoContent); err != nil {
		return err
	}

	return nil
}

func (sdk *vigilSDK) GlobalModel() (GlobalModel, error) {
	url := sdk.coordinatorURL + modelEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return GlobalModel{}, err
	}

	var model GlobalModel
	if err := json.Unmarshal(body, &model); err != nil {
		return GlobalModel{}, err
	}

	return model, nil
}

func (sdk *vigilSDK) SetGlobalModel(weights map[string][]float64) (GlobalModel, error) {
	data, err := json.Marshal(map[string]any{"weights": weights})
	if err != nil {
		return GlobalModel{}, err
	}

	url := sdk.coordinatorURL + modelEndpoint

	body, err := sdk.processRequest(http.MethodPut, url, data, http.StatusOK)
	if err != nil {
		return GlobalModel{}, err
	}

	var model GlobalModel
	if err := json.Unmarshal(body, &model); err != nil {
		return GlobalModel{}, err
	}

	return model, nil
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}
