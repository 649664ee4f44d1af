package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// Store persists the set of already-delivered fingerprints as a JSON array.
// It is the only durable state of a run: read once at start, written back in
// full at the very end of a successful run.
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore constructs a processed-set store backed by the given file path.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "state_store").Logger(),
	}
}

// Load reads the persisted fingerprint set. A missing or corrupt file is not
// fatal: it degrades to an empty set with a warning, so a fresh deployment or
// a damaged file simply re-evaluates everything.
func (s *Store) Load() map[string]struct{} {
	set := make(map[string]struct{})

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("state file unreadable; starting with empty set")
		}
		return set
	}

	var fingerprints []string
	if err := json.Unmarshal(data, &fingerprints); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("state file unparseable; starting with empty set")
		return set
	}

	for _, fp := range fingerprints {
		set[fp] = struct{}{}
	}
	return set
}

// Save overwrites the state file with the full set, pretty-printed and with a
// trailing newline. The parent directory is created when absent. Must only be
// invoked once per run, after all deliveries have been attempted.
func (s *Store) Save(set map[string]struct{}) error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	fingerprints := make([]string, 0, len(set))
	for fp := range set {
		fingerprints = append(fingerprints, fp)
	}
	sort.Strings(fingerprints)

	data, err := json.MarshalIndent(fingerprints, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	return os.WriteFile(s.path, data, 0o644)
}
