package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/pkg/api"
	"github.com/vigil-fl/vigil/pkg/drift"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const cborContentType = "application/cbor"

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Post("/updates", otelhttp.NewHandler(kithttp.NewServer(
		registerUpdateEndpoint(svc),
		decodeUpdateReq,
		api.EncodeResponse,
		opts...,
	), "register-update").ServeHTTP)
	mux.Post("/updates/cbor", otelhttp.NewHandler(kithttp.NewServer(
		registerUpdateEndpoint(svc),
		decodeUpdateCBORReq,
		api.EncodeResponse,
		opts...,
	), "register-update-cbor").ServeHTTP)

	mux.Route("/rounds", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRoundsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-rounds").ServeHTTP)
		r.Post("/aggregate", otelhttp.NewHandler(kithttp.NewServer(
			aggregateEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "aggregate").ServeHTTP)
		r.Post("/reset", otelhttp.NewHandler(kithttp.NewServer(
			resetRoundEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "reset-round").ServeHTTP)
	})

	mux.Get("/status", otelhttp.NewHandler(kithttp.NewServer(
		statusEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "status").ServeHTTP)

	mux.Route("/model", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			getGlobalModelEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "get-global-model").ServeHTTP)
		r.Put("/", otelhttp.NewHandler(kithttp.NewServer(
			setGlobalModelEndpoint(svc),
			decodeGlobalModelReq,
			api.EncodeResponse,
			opts...,
		), "set-global-model").ServeHTTP)
	})

	mux.Route("/agents", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			createAgentEndpoint(svc),
			decodeAgentReq,
			api.EncodeResponse,
			opts...,
		), "create-agent").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listAgentsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-agents").ServeHTTP)
		r.Route("/{agentID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getAgentEndpoint(svc),
				decodeEntityReq("agentID"),
				api.EncodeResponse,
				opts...,
			), "get-agent").ServeHTTP)
			r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
				deleteAgentEndpoint(svc),
				decodeEntityReq("agentID"),
				api.EncodeResponse,
				opts...,
			), "delete-agent").ServeHTTP)
		})
	})

	mux.Route("/patients", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			createPatientEndpoint(svc),
			decodePatientReq,
			api.EncodeResponse,
			opts...,
		), "create-patient").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listPatientsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-patients").ServeHTTP)
		r.Route("/{patientID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getPatientEndpoint(svc),
				decodeEntityReq("patientID"),
				api.EncodeResponse,
				opts...,
			), "get-patient").ServeHTTP)
			r.Post("/observations", otelhttp.NewHandler(kithttp.NewServer(
				observeEndpoint(svc),
				decodeObservationReq,
				api.EncodeResponse,
				opts...,
			), "observe").ServeHTTP)
			r.Route("/drift", func(r chi.Router) {
				r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
					detectDriftEndpoint(svc),
					decodeDetectReq,
					api.EncodeResponse,
					opts...,
				), "detect-drift").ServeHTTP)
				r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
					driftStatusEndpoint(svc),
					decodeEntityReq("patientID"),
					api.EncodeResponse,
					opts...,
				), "drift-status").ServeHTTP)
				r.Get("/history", otelhttp.NewHandler(kithttp.NewServer(
					driftHistoryEndpoint(svc),
					decodePatientListReq,
					api.EncodeResponse,
					opts...,
				), "drift-history").ServeHTTP)
			})
			r.Route("/model", func(r chi.Router) {
				r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
					activeModelEndpoint(svc),
					decodeEntityReq("patientID"),
					api.EncodeResponse,
					opts...,
				), "active-model").ServeHTTP)
				r.Post("/swap", otelhttp.NewHandler(kithttp.NewServer(
					swapModelEndpoint(svc),
					decodeSwapReq,
					api.EncodeResponse,
					opts...,
				), "swap-model").ServeHTTP)
			})
			r.Get("/swaps", otelhttp.NewHandler(kithttp.NewServer(
				listSwapsEndpoint(svc),
				decodePatientListReq,
				api.EncodeResponse,
				opts...,
			), "list-swaps").ServeHTTP)
		})
	})

	mux.Post("/predict", otelhttp.NewHandler(kithttp.NewServer(
		predictEndpoint(svc),
		decodePredictReq,
		api.EncodeResponse,
		opts...,
	), "predict").ServeHTTP)

	mux.Get("/alerts", otelhttp.NewHandler(kithttp.NewServer(
		listAlertsEndpoint(svc),
		decodeListEntityReq,
		api.EncodeResponse,
		opts...,
	), "list-alerts").ServeHTTP)
	mux.Get("/monitor", otelhttp.NewHandler(kithttp.NewServer(
		monitorStatusEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "monitor-status").ServeHTTP)

	mux.Get("/health", supermq.Health("coordinator", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodePatientListReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return patientListReq{
		id:     chi.URLParam(r, "patientID"),
		offset: o,
		limit:  l,
	}, nil
}

func decodeUpdateReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req updateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeUpdateCBORReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), cborContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req updateReq
	if err := cbor.NewDecoder(r.Body).Decode(&req.Update); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeGlobalModelReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req globalModelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeAgentReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req agentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodePatientReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req patientReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

func decodeObservationReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req observationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.id = chi.URLParam(r, "patientID")

	return req, nil
}

func decodeDetectReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var body struct {
		Method     string    `json:"method"`
		Features   []float64 `json:"features"`
		Prediction float64   `json:"prediction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	method := drift.MethodAuto
	if body.Method != "" {
		var err error
		if method, err = drift.ParseMethod(body.Method); err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}
	}

	return detectReq{
		id:         chi.URLParam(r, "patientID"),
		method:     method,
		Features:   body.Features,
		Prediction: body.Prediction,
	}, nil
}

func decodeSwapReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req swapReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}
	req.id = chi.URLParam(r, "patientID")

	return req, nil
}

func decodePredictReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req predictReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}
