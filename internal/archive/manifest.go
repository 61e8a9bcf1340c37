package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const ManifestFileName = "manifest.latest.json"

// Manifest describes the latest completed ingest run.
type Manifest struct {
	RunID                string   `json:"runId"`
	SnapshotDates        []string `json:"snapshotDates"`
	Files                []string `json:"files"`
	Skipped              []string `json:"skipped,omitempty"`
	Records              int      `json:"records"`
	CombinedAdded        int      `json:"combinedAdded"`
	CreatedAtEpochSecond int64    `json:"createdAt"`
}

// PublishManifest stamps m with a run id and creation time and writes it as
// the latest manifest.
func (s *Store) PublishManifest(m Manifest) (Manifest, error) {
	if m.RunID == "" {
		m.RunID = uuid.NewString()
	}
	m.CreatedAtEpochSecond = time.Now().UTC().Unix()

	err := writeAtomic(filepath.Join(s.dir, ManifestFileName), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(&m)
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("publish manifest error: %w", err)
	}
	return m, nil
}

func (s *Store) ReadManifest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestFileName))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}
