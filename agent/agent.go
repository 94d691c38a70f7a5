package agent

import "time"

const (
	aliveTimeout    = 10 * time.Second
	aliveHistoryCap = 10
)

type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Alive        bool        `json:"alive"`
	AliveHistory []time.Time `json:"alive_history"`
	UpdateCount  uint64      `json:"update_count"`
	LastUpdateAt time.Time   `json:"last_update_at"`
}

// RecordAlive appends a heartbeat, keeping only the most recent
// entries so long-lived agents do not grow without bound.
func (a *Agent) RecordAlive(at time.Time) {
	a.AliveHistory = append(a.AliveHistory, at)
	if len(a.AliveHistory) > aliveHistoryCap {
		a.AliveHistory = a.AliveHistory[len(a.AliveHistory)-aliveHistoryCap:]
	}
	a.Alive = true
}

func (a *Agent) SetAlive() {
	if len(a.AliveHistory) > 0 {
		lastAlive := a.AliveHistory[len(a.AliveHistory)-1]
		if time.Since(lastAlive) <= aliveTimeout {
			a.Alive = true

			return
		}
	}
	a.Alive = false
}

type AgentPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Agents []Agent `json:"agents"`
}
