package api

import (
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/patient"
	"github.com/vigil-fl/vigil/pkg/drift"
	"github.com/vigil-fl/vigil/pkg/params"
	"github.com/vigil-fl/vigil/round"
)

// maxFeatures bounds observation vectors at the boundary so a
// malformed client cannot grow telemetry windows arbitrarily wide.
const maxFeatures = 64

type updateReq struct {
	round.Update `json:",inline"`
}

func (u *updateReq) validate() error {
	if u.ClientID == "" {
		return apiutil.ErrMissingID
	}
	if len(u.Weights) == 0 {
		return apiutil.ErrEmptyList
	}
	if u.SampleCount < 1 {
		return apiutil.ErrValidation
	}

	return nil
}

type globalModelReq struct {
	Weights params.Map `json:"weights"`
}

func (g *globalModelReq) validate() error {
	if len(g.Weights) == 0 {
		return apiutil.ErrEmptyList
	}

	return nil
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	return nil
}

type patientListReq struct {
	id            string
	offset, limit uint64
}

func (p *patientListReq) validate() error {
	if p.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type agentReq struct {
	agent.Agent `json:",inline"`
}

func (a *agentReq) validate() error {
	return nil
}

type patientReq struct {
	patient.Patient `json:",inline"`
}

func (p *patientReq) validate() error {
	if p.Name == "" {
		return apiutil.ErrMissingName
	}

	return nil
}

type observationReq struct {
	id         string
	Features   []float64 `json:"features"`
	Prediction float64   `json:"prediction"`
}

func (o *observationReq) validate() error {
	if o.id == "" {
		return apiutil.ErrMissingID
	}
	if len(o.Features) == 0 {
		return apiutil.ErrEmptyList
	}
	if len(o.Features) > maxFeatures {
		return apiutil.ErrLimitSize
	}

	return nil
}

type detectReq struct {
	id         string
	method     drift.Method
	Features   []float64 `json:"features"`
	Prediction float64   `json:"prediction"`
}

func (d *detectReq) validate() error {
	if d.id == "" {
		return apiutil.ErrMissingID
	}
	if len(d.Features) == 0 {
		return apiutil.ErrEmptyList
	}
	if len(d.Features) > maxFeatures {
		return apiutil.ErrLimitSize
	}

	return nil
}

type swapReq struct {
	id         string
	DriftType  string  `json:"drift_type"`
	Confidence float64 `json:"confidence"`
}

func (s *swapReq) validate() error {
	if s.id == "" {
		return apiutil.ErrMissingID
	}
	if s.DriftType == "" {
		return apiutil.ErrValidation
	}

	return nil
}

type predictReq struct {
	PatientID string    `json:"patient_id"`
	Features  []float64 `json:"features"`
}

func (p *predictReq) validate() error {
	if p.PatientID == "" {
		return apiutil.ErrMissingID
	}
	if len(p.Features) == 0 {
		return apiutil.ErrEmptyList
	}
	if len(p.Features) > maxFeatures {
		return apiutil.ErrLimitSize
	}

	return nil
}
