package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	filePrefix = "index-"
	fileSuffix = ".json"

	// timestampLayout is fixed width so filename order equals time order.
	timestampLayout = "20060102T150405.000000000Z"
)

// Store persists snapshots as one timestamped JSON file per run. A new run
// always produces a new file; nothing is ever overwritten in place, so an
// interrupted write leaves the prior snapshot authoritative.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes all records to a fresh snapshot file and returns its path.
// The write goes to a temporary file which is fsynced and then renamed, so
// a crash mid-write cannot leave a torn snapshot behind.
func (s *Store) Save(records []Record, dimension int) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	snap := Snapshot{
		Config: Config{
			Type:        "flat",
			Compression: "none",
			Dimension:   dimension,
		},
		Embeddings: records,
	}
	if snap.Embeddings == nil {
		snap.Embeddings = []Record{}
	}

	name := filePrefix + time.Now().UTC().Format(timestampLayout) + fileSuffix
	finalPath := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := json.NewEncoder(tmp).Encode(&snap); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to publish snapshot: %w", err)
	}

	return finalPath, nil
}

// LoadLatest reads the most recent snapshot. "Latest" is the lexicographic
// max of the timestamped filenames, not file modification time. Returns
// ErrNoSnapshot when the directory holds no snapshot files.
func (s *Store) LoadLatest() (*Snapshot, error) {
	path, err := s.LatestPath()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// LatestPath returns the path of the most recent snapshot file.
func (s *Store) LatestPath() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSnapshot
		}
		return "", fmt.Errorf("failed to list snapshot dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", ErrNoSnapshot
	}

	sort.Strings(names)
	return filepath.Join(s.dir, names[len(names)-1]), nil
}
