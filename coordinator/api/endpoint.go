package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
	"github.com/vigil-fl/vigil/coordinator"
	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/round"
)

func registerUpdateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(updateReq)
		if !ok {
			return ackResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return ackResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		ack, err := svc.RegisterUpdate(ctx, req.Update)
		if err != nil {
			return ackResponse{}, err
		}

		return ackResponse{Ack: ack}, nil
	}
}

func aggregateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		rec, err := svc.Aggregate(ctx)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrInsufficientClients) {
				return waitingResponse{
					Status: round.StatusWaiting,
					Reason: err.Error(),
				}, nil
			}

			return recordResponse{}, err
		}

		return recordResponse{Record: rec}, nil
	}
}

func listRoundsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRoundsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListRounds(ctx, req.offset, req.limit)
		if err != nil {
			return listRoundsResponse{}, err
		}

		return listRoundsResponse{RecordPage: page}, nil
	}
}

func statusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		status, err := svc.Status(ctx)
		if err != nil {
			return statusResponse{}, err
		}

		return statusResponse{Status: status}, nil
	}
}

func getGlobalModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		model, err := svc.GetGlobalModel(ctx)
		if err != nil {
			return globalModelResponse{}, err
		}

		return globalModelResponse{GlobalModel: model}, nil
	}
}

func setGlobalModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(globalModelReq)
		if !ok {
			return globalModelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return globalModelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		model, err := svc.SetGlobalModel(ctx, req.Weights)
		if err != nil {
			return globalModelResponse{}, err
		}

		return globalModelResponse{GlobalModel: model}, nil
	}
}

func resetRoundEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		if err := svc.ResetRound(ctx); err != nil {
			return resetResponse{}, err
		}

		return resetResponse{}, nil
	}
}

func createAgentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(agentReq)
		if !ok {
			return agentResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return agentResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		a, err := svc.CreateAgent(ctx, req.Agent)
		if err != nil {
			return agentResponse{}, err
		}

		return agentResponse{Agent: a, created: true}, nil
	}
}

func getAgentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return agentResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return agentResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		a, err := svc.GetAgent(ctx, req.id)
		if err != nil {
			return agentResponse{}, err
		}

		return agentResponse{Agent: a}, nil
	}
}

func listAgentsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listAgentsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listAgentsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListAgents(ctx, req.offset, req.limit)
		if err != nil {
			return listAgentsResponse{}, err
		}

		return listAgentsResponse{AgentPage: page}, nil
	}
}

func deleteAgentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return agentResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return agentResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.DeleteAgent(ctx, req.id); err != nil {
			return agentResponse{}, err
		}

		return agentResponse{deleted: true}, nil
	}
}

func createPatientEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(patientReq)
		if !ok {
			return patientResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return patientResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.CreatePatient(ctx, req.Patient)
		if err != nil {
			return patientResponse{}, err
		}

		return patientResponse{Patient: p, created: true}, nil
	}
}

func getPatientEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return patientResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return patientResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.GetPatient(ctx, req.id)
		if err != nil {
			return patientResponse{}, err
		}

		return patientResponse{Patient: p}, nil
	}
}

func listPatientsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listPatientsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listPatientsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListPatients(ctx, req.offset, req.limit)
		if err != nil {
			return listPatientsResponse{}, err
		}

		return listPatientsResponse{PatientPage: page}, nil
	}
}

func observeEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(observationReq)
		if !ok {
			return observationResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return observationResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.Observe(ctx, req.id, req.Features, req.Prediction); err != nil {
			return observationResponse{}, err
		}

		return observationResponse{}, nil
	}
}

func detectDriftEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(detectReq)
		if !ok {
			return driftResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return driftResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		report, err := svc.DetectDrift(ctx, req.id, req.Features, req.Prediction, req.method)
		if err != nil {
			return driftResponse{}, err
		}

		return driftResponse{DriftReport: report}, nil
	}
}

func driftStatusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return driftStatusResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return driftStatusResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		status, err := svc.DriftStatus(ctx, req.id)
		if err != nil {
			return driftStatusResponse{}, err
		}

		return driftStatusResponse{Status: status}, nil
	}
}

func driftHistoryEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(patientListReq)
		if !ok {
			return driftHistoryResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return driftHistoryResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.DriftHistory(ctx, req.id, req.offset, req.limit)
		if err != nil {
			return driftHistoryResponse{}, err
		}

		return driftHistoryResponse{DriftHistoryPage: page}, nil
	}
}

func activeModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return assignmentResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return assignmentResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		assignment, err := svc.ActiveModel(ctx, req.id)
		if err != nil {
			return assignmentResponse{}, err
		}

		return assignmentResponse{ModelAssignment: assignment}, nil
	}
}

func swapModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(swapReq)
		if !ok {
			return swapResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return swapResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		rec, err := svc.SwapModel(ctx, req.id, req.DriftType, req.Confidence)
		if err != nil {
			return swapResponse{}, err
		}

		return swapResponse{SwapRecord: rec}, nil
	}
}

func listSwapsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(patientListReq)
		if !ok {
			return listSwapsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listSwapsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListSwaps(ctx, req.id, req.offset, req.limit)
		if err != nil {
			return listSwapsResponse{}, err
		}

		return listSwapsResponse{SwapPage: page}, nil
	}
}

func predictEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(predictReq)
		if !ok {
			return predictionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return predictionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		prediction, err := svc.Predict(ctx, req.PatientID, req.Features)
		if err != nil {
			return predictionResponse{}, err
		}

		return predictionResponse{Prediction: prediction}, nil
	}
}

func listAlertsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listAlertsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listAlertsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.Alerts(ctx, req.offset, req.limit)
		if err != nil {
			return listAlertsResponse{}, err
		}

		return listAlertsResponse{AlertPage: page}, nil
	}
}

func monitorStatusEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		status, err := svc.MonitorStatus(ctx)
		if err != nil {
			return monitorStatusResponse{}, err
		}

		return monitorStatusResponse{MonitorStatus: status}, nil
	}
}
