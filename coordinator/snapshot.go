package coordinator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/vigil-fl/vigil/pkg/errors"
	"github.com/vigil-fl/vigil/pkg/params"
)

const latestSnapshotFile = "latest.json"

// Snapshot is a point-in-time copy of the global model written to
// disk so the coordinator can resume after a restart.
type Snapshot struct {
	Round   uint64     `json:"round"`
	Method  string     `json:"method"`
	Weights params.Map `json:"weights"`
	TakenAt time.Time  `json:"taken_at"`
}

// Archive stores model snapshots as JSON files, one per snapshotted
// round plus a latest.json pointer overwritten on every save.
type Archive struct {
	dir    string
	logger *slog.Logger
}

func NewArchive(dir string, logger *slog.Logger) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Archive{dir: dir, logger: logger}, nil
}

func (a *Archive) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	name := fmt.Sprintf("round-%d.json", snap.Round)
	if err := os.WriteFile(filepath.Join(a.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(a.dir, latestSnapshotFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write latest snapshot: %w", err)
	}

	return nil
}

func (a *Archive) Load(roundNum uint64) (Snapshot, error) {
	return a.read(fmt.Sprintf("round-%d.json", roundNum))
}

func (a *Archive) LoadLatest() (Snapshot, error) {
	return a.read(latestSnapshotFile)
}

func (a *Archive) read(name string) (Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, fmt.Errorf("snapshot %s: %w", name, pkgerrors.ErrNotFound)
		}

		return Snapshot{}, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}

	return snap, nil
}
