package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/vigil-fl/vigil/agent"
	"github.com/vigil-fl/vigil/alert"
	"github.com/vigil-fl/vigil/patient"
	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/models"
	"github.com/vigil-fl/vigil/round"
)

const scanPageSize = 1024

type memoryPatientRepo struct {
	storage Storage
}

func newMemoryPatientRepository(s Storage) PatientRepository {
	return &memoryPatientRepo{storage: s}
}

func (r *memoryPatientRepo) Create(ctx context.Context, p patient.Patient) (patient.Patient, error) {
	if err := r.storage.Create(ctx, p.ID, p); err != nil {
		return patient.Patient{}, err
	}

	return p, nil
}

func (r *memoryPatientRepo) Get(ctx context.Context, id string) (patient.Patient, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return patient.Patient{}, err
	}
	p, ok := data.(patient.Patient)
	if !ok {
		return patient.Patient{}, pkgerrors.ErrInvalidData
	}

	return p, nil
}

func (r *memoryPatientRepo) Update(ctx context.Context, p patient.Patient) error {
	return r.storage.Update(ctx, p.ID, p)
}

func (r *memoryPatientRepo) List(ctx context.Context, offset, limit uint64) ([]patient.Patient, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	patients := make([]patient.Patient, len(data))
	for i, d := range data {
		p, ok := d.(patient.Patient)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		patients[i] = p
	}

	return patients, total, nil
}

func (r *memoryPatientRepo) Delete(ctx context.Context, id string) error {
	return r.storage.Delete(ctx, id)
}

type memoryAgentRepo struct {
	storage Storage
}

func newMemoryAgentRepository(s Storage) AgentRepository {
	return &memoryAgentRepo{storage: s}
}

func (r *memoryAgentRepo) Create(ctx context.Context, a agent.Agent) error {
	return r.storage.Create(ctx, a.ID, a)
}

func (r *memoryAgentRepo) Get(ctx context.Context, id string) (agent.Agent, error) {
	data, err := r.storage.Get(ctx, id)
	if err != nil {
		return agent.Agent{}, err
	}
	a, ok := data.(agent.Agent)
	if !ok {
		return agent.Agent{}, pkgerrors.ErrInvalidData
	}

	return a, nil
}

func (r *memoryAgentRepo) Update(ctx context.Context, a agent.Agent) error {
	return r.storage.Update(ctx, a.ID, a)
}

func (r *memoryAgentRepo) List(ctx context.Context, offset, limit uint64) ([]agent.Agent, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	agents := make([]agent.Agent, len(data))
	for i, d := range data {
		a, ok := d.(agent.Agent)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		agents[i] = a
	}

	return agents, total, nil
}

func (r *memoryAgentRepo) Delete(ctx context.Context, id string) error {
	return r.storage.Delete(ctx, id)
}

type memoryRoundRepo struct {
	storage Storage
}

func newMemoryRoundRepository(s Storage) RoundRepository {
	return &memoryRoundRepo{storage: s}
}

// roundKey zero-pads the round number so lexicographic key order
// matches numeric order.
func roundKey(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

func (r *memoryRoundRepo) Create(ctx context.Context, rec round.Record) error {
	return r.storage.Create(ctx, roundKey(rec.Round), rec)
}

func (r *memoryRoundRepo) Latest(ctx context.Context, n uint64) ([]round.Record, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	if n > uint64(len(all)) {
		n = uint64(len(all))
	}

	latest := make([]round.Record, 0, n)
	for i := len(all) - 1; i >= len(all)-int(n); i-- {
		latest = append(latest, all[i])
	}

	return latest, nil
}

func (r *memoryRoundRepo) List(ctx context.Context, offset, limit uint64) ([]round.Record, uint64, error) {
	data, total, err := r.storage.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	records := make([]round.Record, len(data))
	for i, d := range data {
		rec, ok := d.(round.Record)
		if !ok {
			return nil, 0, pkgerrors.ErrInvalidData
		}
		records[i] = rec
	}

	return records, total, nil
}

func (r *memoryRoundRepo) scan(ctx context.Context) ([]round.Record, error) {
	var (
		scanOffset uint64
		all        []round.Record
	)

	for {
		data, total, err := r.storage.List(ctx, scanOffset, scanPageSize)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			break
		}

		for _, d := range data {
			rec, ok := d.(round.Record)
			if !ok {
				return nil, pkgerrors.ErrInvalidData
			}
			all = append(all, rec)
		}

		scanOffset += uint64(len(data))
		if scanOffset >= total {
			break
		}
	}

	return all, nil
}

type memorySwapRepo struct {
	storage Storage
}

func newMemorySwapRepository(s Storage) SwapRepository {
	return &memorySwapRepo{storage: s}
}

func (r *memorySwapRepo) Create(ctx context.Context, rec models.SwapRecord) error {
	key := fmt.Sprintf("%s:%020d", rec.PatientID, rec.At.UnixNano())

	return r.storage.Create(ctx, key, rec)
}

func (r *memorySwapRepo) ListByPatient(ctx context.Context, patientID string, offset, limit uint64) ([]models.SwapRecord, uint64, error) {
	var (
		scanOffset uint64
		matched    []models.SwapRecord
	)

	for {
		data, allTotal, err := r.storage.List(ctx, scanOffset, scanPageSize)
		if err != nil {
			return nil, 0, err
		}
		if len(data) == 0 {
			break
		}

		for _, d := range data {
			rec, ok := d.(models.SwapRecord)
			if !ok {
				return nil, 0, pkgerrors.ErrInvalidData
			}
			if rec.PatientID == patientID {
				matched = append(matched, rec)
			}
		}

		scanOffset += uint64(len(data))
		if scanOffset >= allTotal {
			break
		}
	}

	// Keys scan oldest first; callers expect newest first.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	return page(matched, offset, limit)
}

type memoryAlertRepo struct {
	storage Storage
}

func newMemoryAlertRepository(s Storage) AlertRepository {
	return &memoryAlertRepo{storage: s}
}

func alertKey(a alert.Alert) string {
	return fmt.Sprintf("%020d:%s", a.At.UnixNano(), a.ID)
}

func (r *memoryAlertRepo) Create(ctx context.Context, a alert.Alert) error {
	return r.storage.Create(ctx, alertKey(a), a)
}

func (r *memoryAlertRepo) List(ctx context.Context, offset, limit uint64) ([]alert.Alert, uint64, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	return page(all, offset, limit)
}

func (r *memoryAlertRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (uint64, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}

	var removed uint64
	for _, a := range all {
		if a.At.Before(cutoff) {
			if err := r.storage.Delete(ctx, alertKey(a)); err != nil {
				return removed, err
			}
			removed++
		}
	}

	return removed, nil
}

func (r *memoryAlertRepo) scan(ctx context.Context) ([]alert.Alert, error) {
	var (
		scanOffset uint64
		all        []alert.Alert
	)

	for {
		data, total, err := r.storage.List(ctx, scanOffset, scanPageSize)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			break
		}

		for _, d := range data {
			a, ok := d.(alert.Alert)
			if !ok {
				return nil, pkgerrors.ErrInvalidData
			}
			all = append(all, a)
		}

		scanOffset += uint64(len(data))
		if scanOffset >= total {
			break
		}
	}

	return all, nil
}

func page[T any](items []T, offset, limit uint64) ([]T, uint64, error) {
	total := uint64(len(items))
	if offset >= total {
		return []T{}, total, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	return items[offset:end], total, nil
}
