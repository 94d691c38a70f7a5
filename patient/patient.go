package patient

import "time"

// DefaultCategory is assigned to patients registered without an
// explicit health profile and is the classification the drift
// detector falls back to.
const DefaultCategory = "typical"

type Patient struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	ActiveModel string    `json:"active_model"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type PatientPage struct {
	Offset   uint64    `json:"offset"`
	Limit    uint64    `json:"limit"`
	Total    uint64    `json:"total"`
	Patients []Patient `json:"patients"`
}
