package api

import (
	"net/http"

	"github.com/absmach/magistrala"
	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/coordinator"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/round"
)

var (
	_ magistrala.Response = (*ackResponse)(nil)
	_ magistrala.Response = (*recordResponse)(nil)
	_ magistrala.Response = (*agentResponse)(nil)
	_ magistrala.Response = (*patientResponse)(nil)
	_ magistrala.Response = (*driftResponse)(nil)
	_ magistrala.Response = (*swapResponse)(nil)
)

type ackResponse struct {
	round.Ack
}

func (a ackResponse) Code() int {
	if a.Status == round.StatusWaiting {
		return http.StatusAccepted
	}

	return http.StatusOK
}

func (a ackResponse) Headers() map[string]string {
	return map[string]string{}
}

func (a ackResponse) Empty() bool {
	return false
}

type recordResponse struct {
	round.Record
}

func (r recordResponse) Code() int {
	return http.StatusOK
}

func (r recordResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r recordResponse) Empty() bool {
	return false
}

// waitingResponse replaces the record payload when aggregation was
// requested before the quorum was met. Insufficient clients is a
// recoverable condition, reported as waiting rather than a failure.
type waitingResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (w waitingResponse) Code() int {
	return http.StatusAccepted
}

func (w waitingResponse) Headers() map[string]string {
	return map[string]string{}
}

func (w waitingResponse) Empty() bool {
	return false
}

type listRoundsResponse struct {
	round.RecordPage
}

func (l listRoundsResponse) Code() int {
	return http.StatusOK
}

func (l listRoundsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRoundsResponse) Empty() bool {
	return false
}

type statusResponse struct {
	coordinator.Status
}

func (s statusResponse) Code() int {
	return http.StatusOK
}

func (s statusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s statusResponse) Empty() bool {
	return false
}

type globalModelResponse struct {
	coordinator.GlobalModel
}

func (g globalModelResponse) Code() int {
	return http.StatusOK
}

func (g globalModelResponse) Headers() map[string]string {
	return map[string]string{}
}

func (g globalModelResponse) Empty() bool {
	return false
}

type resetResponse struct{}

func (r resetResponse) Code() int {
	return http.StatusNoContent
}

func (r resetResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r resetResponse) Empty() bool {
	return true
}

type agentResponse struct {
	agent.Agent
	created bool
	deleted bool
}

func (a agentResponse) Code() int {
	if a.created {
		return http.StatusCreated
	}
	if a.deleted {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (a agentResponse) Headers() map[string]string {
	if a.created {
		return map[string]string{
			"Location": "/agents/" + a.ID,
		}
	}

	return map[string]string{}
}

func (a agentResponse) Empty() bool {
	return a.deleted
}

type listAgentsResponse struct {
	agent.AgentPage
}

func (l listAgentsResponse) Code() int {
	return http.StatusOK
}

func (l listAgentsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listAgentsResponse) Empty() bool {
	return false
}

type patientResponse struct {
	patient.Patient
	created bool
}

func (p patientResponse) Code() int {
	if p.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (p patientResponse) Headers() map[string]string {
	if p.created {
		return map[string]string{
			"Location": "/patients/" + p.ID,
		}
	}

	return map[string]string{}
}

func (p patientResponse) Empty() bool {
	return false
}

type listPatientsResponse struct {
	patient.PatientPage
}

func (l listPatientsResponse) Code() int {
	return http.StatusOK
}

func (l listPatientsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listPatientsResponse) Empty() bool {
	return false
}

type observationResponse struct{}

func (o observationResponse) Code() int {
	return http.StatusAccepted
}

func (o observationResponse) Headers() map[string]string {
	return map[string]string{}
}

func (o observationResponse) Empty() bool {
	return true
}

type driftResponse struct {
	coordinator.DriftReport
}

func (d driftResponse) Code() int {
	return http.StatusOK
}

func (d driftResponse) Headers() map[string]string {
	return map[string]string{}
}

func (d driftResponse) Empty() bool {
	return false
}

type driftStatusResponse struct {
	drift.Status
}

func (d driftStatusResponse) Code() int {
	return http.StatusOK
}

func (d driftStatusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (d driftStatusResponse) Empty() bool {
	return false
}

type driftHistoryResponse struct {
	coordinator.DriftHistoryPage
}

func (d driftHistoryResponse) Code() int {
	return http.StatusOK
}

func (d driftHistoryResponse) Headers() map[string]string {
	return map[string]string{}
}

func (d driftHistoryResponse) Empty() bool {
	return false
}

type assignmentResponse struct {
	coordinator.ModelAssignment
}

func (a assignmentResponse) Code() int {
	return http.StatusOK
}

func (a assignmentResponse) Headers() map[string]string {
	return map[string]string{}
}

func (a assignmentResponse) Empty() bool {
	return false
}

type swapResponse struct {
	models.SwapRecord
}

func (s swapResponse) Code() int {
	return http.StatusOK
}

func (s swapResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s swapResponse) Empty() bool {
	return false
}

type listSwapsResponse struct {
	coordinator.SwapPage
}

func (l listSwapsResponse) Code() int {
	return http.StatusOK
}

func (l listSwapsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listSwapsResponse) Empty() bool {
	return false
}

type predictionResponse struct {
	coordinator.Prediction
}

func (p predictionResponse) Code() int {
	return http.StatusOK
}

func (p predictionResponse) Headers() map[string]string {
	return map[string]string{}
}

func (p predictionResponse) Empty() bool {
	return false
}

type listAlertsResponse struct {
	alert.AlertPage
}

func (l listAlertsResponse) Code() int {
	return http.StatusOK
}

func (l listAlertsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listAlertsResponse) Empty() bool {
	return false
}

type monitorStatusResponse struct {
	coordinator.MonitorStatus
}

func (m monitorStatusResponse) Code() int {
	return http.StatusOK
}

func (m monitorStatusResponse) Headers() map[string]string {
	return map[string]string{}
}

func (m monitorStatusResponse) Empty() bool {
	return false
}
