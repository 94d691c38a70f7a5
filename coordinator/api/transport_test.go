package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/coordinator/api"
	"github.com/vigil-fl/vigil/coordinator/mocks"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	vigilerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

func newServer(svc coordinator.Service) *httptest.Server {
	return httptest.NewServer(api.MakeHandler(svc, slog.Default(), "test-instance"))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return bytes.NewReader(data)
}

func TestRegisterUpdateWaitingVsAggregated(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	body := round.Update{
		ClientID:    "c1",
		Weights:     params.Map{"layer": {1, 2}},
		SampleCount: 10,
	}

	svc.On("RegisterUpdate", mock.Anything, mock.Anything).Return(round.Ack{
		Status:   round.StatusWaiting,
		Received: 1,
		Needed:   3,
	}, nil).Once()

	res, err := http.Post(srv.URL+"/updates", "application/json", jsonBody(t, body))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	var ack round.Ack
	require.NoError(t, json.NewDecoder(res.Body).Decode(&ack))
	assert.Equal(t, round.StatusWaiting, ack.Status)

	svc.On("RegisterUpdate", mock.Anything, mock.Anything).Return(round.Ack{
		Status:   round.StatusAggregated,
		Round:    1,
		Received: 3,
		Needed:   3,
	}, nil).Once()

	res, err = http.Post(srv.URL+"/updates", "application/json", jsonBody(t, body))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRegisterUpdateValidation(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	cases := []struct {
		desc        string
		contentType string
		body        any
		code        int
	}{
		{
			desc:        "missing client id",
			contentType: "application/json",
			body:        round.Update{Weights: params.Map{"w": {1}}, SampleCount: 1},
			code:        http.StatusBadRequest,
		},
		{
			desc:        "empty weights",
			contentType: "application/json",
			body:        round.Update{ClientID: "c1", SampleCount: 1},
			code:        http.StatusBadRequest,
		},
		{
			desc:        "zero samples",
			contentType: "application/json",
			body:        round.Update{ClientID: "c1", Weights: params.Map{"w": {1}}},
			code:        http.StatusBadRequest,
		},
		{
			desc:        "wrong content type",
			contentType: "text/plain",
			body:        round.Update{ClientID: "c1", Weights: params.Map{"w": {1}}, SampleCount: 1},
			code:        http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			res, err := http.Post(srv.URL+"/updates", tc.contentType, jsonBody(t, tc.body))
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, tc.code, res.StatusCode)
		})
	}
}

func TestRegisterUpdateCBORParity(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	u := round.Update{
		ClientID:    "c1",
		Weights:     params.Map{"layer": {1, 2}},
		SampleCount: 10,
	}

	var got round.Update
	svc.On("RegisterUpdate", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(round.Update)
	}).Return(round.Ack{Status: round.StatusWaiting, Received: 1, Needed: 3}, nil).Once()

	data, err := cbor.Marshal(u)
	require.NoError(t, err)

	res, err := http.Post(srv.URL+"/updates/cbor", "application/cbor", bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	assert.Equal(t, u.ClientID, got.ClientID)
	assert.Equal(t, u.Weights, got.Weights)
	assert.Equal(t, u.SampleCount, got.SampleCount)
}

func TestAggregateWaitingPayload(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	svc.On("Aggregate", mock.Anything).Return(round.Record{}, vigilerrors.ErrInsufficientClients).Once()

	res, err := http.Post(srv.URL+"/rounds/aggregate", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, round.StatusWaiting, body["status"])
}

func TestCreatePatient(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	svc.On("CreatePatient", mock.Anything, mock.Anything).Return(patient.Patient{
		ID:          "p1",
		Name:        "pat-1",
		Category:    "typical",
		ActiveModel: "federated",
	}, nil).Once()

	res, err := http.Post(srv.URL+"/patients", "application/json", jsonBody(t, patient.Patient{Name: "pat-1"}))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "/patients/p1", res.Header.Get("Location"))

	// Missing name fails validation before the service is reached.
	res, err = http.Post(srv.URL+"/patients", "application/json", jsonBody(t, patient.Patient{}))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestDetectDriftMethodParsing(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	var method drift.Method
	svc.On("DetectDrift", mock.Anything, "p1", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			method = args.Get(4).(drift.Method)
		}).
		Return(coordinator.DriftReport{}, nil)

	body := map[string]any{"method": "statistical", "features": []float64{1, 2, 3}}
	res, err := http.Post(srv.URL+"/patients/p1/drift", "application/json", jsonBody(t, body))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, drift.MethodStatistical, method)

	// Unknown methods are rejected at the boundary, not defaulted.
	body["method"] = "sorcery"
	res, err = http.Post(srv.URL+"/patients/p1/drift", "application/json", jsonBody(t, body))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestObservationValidation(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	oversized := make([]float64, 65)
	res, err := http.Post(srv.URL+"/patients/p1/observations", "application/json",
		jsonBody(t, map[string]any{"features": oversized}))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	svc.On("Observe", mock.Anything, "p1", mock.Anything, 0.25).Return(nil).Once()
	res, err = http.Post(srv.URL+"/patients/p1/observations", "application/json",
		jsonBody(t, map[string]any{"features": []float64{1, 2}, "prediction": 0.25}))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
}

func TestSwapModelUnavailable(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	svc.On("SwapModel", mock.Anything, "p1", "athletic", 0.8).
		Return(models.SwapRecord{}, vigilerrors.ErrModelUnavailable).Once()

	res, err := http.Post(srv.URL+"/patients/p1/model/swap", "application/json",
		jsonBody(t, map[string]any{"drift_type": "athletic", "confidence": 0.8}))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	svc := new(mocks.MockService)
	srv := newServer(svc)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
