package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"stat-watcher/internal/model"
)

var (
	ErrMachineNotFound = errors.New("machine not found")
	ErrNameRequired    = errors.New("machine name is required")
)

// snapshotHistoryLimit bounds the per-machine snapshot trail. The fallback
// resolver only ever needs the newest record; the rest is kept so a future
// history view has something to show without unbounded growth.
const snapshotHistoryLimit = 360

// Store is the durable home of machine records and their stats snapshot
// trail. State lives in memory behind a RWMutex and, when a state file is
// configured, survives restarts via atomic JSON snapshots of the whole
// store. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	stateFile string
	persistMu sync.Mutex
	logger    zerolog.Logger

	machinesByID     map[string]model.Machine
	machineIDByToken map[string]string
	snapshotsByID    map[string][]model.SnapshotRecord // machineID -> records, oldest first
}

type Options struct {
	StateFile string
	Logger    zerolog.Logger
}

func New() *Store {
	return NewWithOptions(Options{Logger: zerolog.Nop()})
}

func NewWithOptions(opts Options) *Store {
	s := &Store{
		stateFile:        opts.StateFile,
		logger:           opts.Logger,
		machinesByID:     make(map[string]model.Machine),
		machineIDByToken: make(map[string]string),
		snapshotsByID:    make(map[string][]model.SnapshotRecord),
	}

	if s.stateFile != "" {
		if err := s.loadFromFile(s.stateFile); err != nil {
			s.logger.Warn().Str("file", s.stateFile).Err(err).Msg("state load failed")
		}
	}
	return s
}

type persistedStateFile struct {
	Version   int                               `json:"version"`
	Machines  []model.Machine                   `json:"machines"`
	Tokens    map[string]string                 `json:"tokens"` // machineID -> token
	Snapshots map[string][]model.SnapshotRecord `json:"snapshots"`
	SavedAt   int64                             `json:"savedAt"`
}

func (s *Store) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var file persistedStateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if file.Version != 1 {
		return errors.New("unsupported state file version")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range file.Machines {
		if m.ID == "" || m.UserID == "" {
			continue
		}
		if tok := file.Tokens[m.ID]; tok != "" {
			m.Token = tok
			s.machineIDByToken[tok] = m.ID
		}
		s.machinesByID[m.ID] = m
	}
	for machineID, records := range file.Snapshots {
		if _, ok := s.machinesByID[machineID]; !ok {
			continue
		}
		s.snapshotsByID[machineID] = records
	}
	return nil
}

func (s *Store) snapshotStateLocked() *persistedStateFile {
	file := &persistedStateFile{
		Version:   1,
		Machines:  make([]model.Machine, 0, len(s.machinesByID)),
		Tokens:    make(map[string]string, len(s.machinesByID)),
		Snapshots: make(map[string][]model.SnapshotRecord, len(s.snapshotsByID)),
		SavedAt:   time.Now().UnixMilli(),
	}
	for _, m := range s.machinesByID {
		file.Machines = append(file.Machines, m)
		file.Tokens[m.ID] = m.Token
	}
	sort.Slice(file.Machines, func(i, j int) bool { return file.Machines[i].ID < file.Machines[j].ID })
	for machineID, records := range s.snapshotsByID {
		file.Snapshots[machineID] = records
	}
	return file
}

// persistState writes the given state snapshot to the state file via a temp
// file and rename so readers never observe a partial write.
func (s *Store) persistState(file *persistedStateFile) {
	path := s.stateFile
	if path == "" || file == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		s.logger.Warn().Str("dir", dir).Err(err).Msg("state persist: mkdir failed")
		return
	}

	data, err := json.Marshal(file)
	if err != nil {
		s.logger.Warn().Err(err).Msg("state persist: marshal failed")
		return
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		s.logger.Warn().Err(err).Msg("state persist: create temp failed")
		return
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		s.logger.Warn().Err(err).Msg("state persist: chmod temp failed")
		return
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		s.logger.Warn().Err(err).Msg("state persist: write temp failed")
		return
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		s.logger.Warn().Err(err).Msg("state persist: sync temp failed")
		return
	}
	if err := tmp.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("state persist: close temp failed")
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		s.logger.Warn().Err(err).Msg("state persist: rename failed")
	}
}

// CreateMachine registers a new machine for userID with the given secret
// token. The caller generates the token so the handler can return it to the
// user exactly once.
func (s *Store) CreateMachine(userID, name, token string, nowMillis int64) (model.Machine, error) {
	if userID == "" {
		return model.Machine{}, errors.New("missing userID")
	}
	if name == "" {
		return model.Machine{}, ErrNameRequired
	}
	if token == "" {
		return model.Machine{}, errors.New("missing token")
	}

	m := model.Machine{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Token:     token,
		CreatedAt: nowMillis,
		UpdatedAt: nowMillis,
	}

	s.mu.Lock()
	s.machinesByID[m.ID] = m
	s.machineIDByToken[token] = m.ID
	var state *persistedStateFile
	if s.stateFile != "" {
		state = s.snapshotStateLocked()
	}
	s.mu.Unlock()

	s.persistState(state)
	return m, nil
}

// GetMachine returns the machine only when it exists and belongs to userID,
// so an ownership failure is indistinguishable from a missing machine.
func (s *Store) GetMachine(userID, machineID string) (model.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.machinesByID[machineID]
	if !ok || m.UserID != userID {
		return model.Machine{}, false
	}
	return m, true
}

// GetMachineByToken resolves an agent bearer token to its machine.
func (s *Store) GetMachineByToken(token string) (model.Machine, bool) {
	if token == "" {
		return model.Machine{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.machineIDByToken[token]
	if !ok {
		return model.Machine{}, false
	}
	m, ok := s.machinesByID[id]
	return m, ok
}

// ListMachines returns userID's machines, newest first.
func (s *Store) ListMachines(userID string) []model.Machine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Machine, 0)
	for _, m := range s.machinesByID {
		if m.UserID == userID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// RenameMachine updates the display name, ownership-checked.
func (s *Store) RenameMachine(userID, machineID, name string, nowMillis int64) (model.Machine, error) {
	if name == "" {
		return model.Machine{}, ErrNameRequired
	}

	s.mu.Lock()
	m, ok := s.machinesByID[machineID]
	if !ok || m.UserID != userID {
		s.mu.Unlock()
		return model.Machine{}, ErrMachineNotFound
	}

	m.Name = name
	m.UpdatedAt = nowMillis
	s.machinesByID[machineID] = m
	var state *persistedStateFile
	if s.stateFile != "" {
		state = s.snapshotStateLocked()
	}
	s.mu.Unlock()

	s.persistState(state)
	return m, nil
}

// DeleteMachine removes the machine and its snapshot trail, ownership-
// checked. The caller is responsible for clearing the live cache entry.
func (s *Store) DeleteMachine(userID, machineID string) bool {
	s.mu.Lock()
	m, ok := s.machinesByID[machineID]
	if !ok || m.UserID != userID {
		s.mu.Unlock()
		return false
	}

	delete(s.machinesByID, machineID)
	delete(s.machineIDByToken, m.Token)
	delete(s.snapshotsByID, machineID)
	var state *persistedStateFile
	if s.stateFile != "" {
		state = s.snapshotStateLocked()
	}
	s.mu.Unlock()

	s.persistState(state)
	return true
}

// TouchMachine records that the machine was just seen. Called on every
// ingest; the persist is folded into the subsequent AppendSnapshot so each
// ingest writes the state file at most once.
func (s *Store) TouchMachine(machineID string, nowMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machinesByID[machineID]
	if !ok {
		return ErrMachineNotFound
	}
	m.LastSeen = nowMillis
	s.machinesByID[machineID] = m
	return nil
}

// AppendSnapshot adds one record to the machine's durable trail, trimming
// the oldest records past the history limit.
func (s *Store) AppendSnapshot(machineID string, data json.RawMessage, nowMillis int64) (model.SnapshotRecord, error) {
	s.mu.Lock()
	if _, ok := s.machinesByID[machineID]; !ok {
		s.mu.Unlock()
		return model.SnapshotRecord{}, ErrMachineNotFound
	}

	rec := model.SnapshotRecord{
		ID:        uuid.NewString(),
		MachineID: machineID,
		Data:      data,
		CreatedAt: nowMillis,
	}
	records := append(s.snapshotsByID[machineID], rec)
	if len(records) > snapshotHistoryLimit {
		records = records[len(records)-snapshotHistoryLimit:]
	}
	s.snapshotsByID[machineID] = records
	var state *persistedStateFile
	if s.stateFile != "" {
		state = s.snapshotStateLocked()
	}
	s.mu.Unlock()

	s.persistState(state)
	return rec, nil
}

// LatestSnapshot returns the newest persisted record for machineID. This is
// the fallback path for viewers arriving before the first ingest after a
// restart; it never feeds the live cache.
func (s *Store) LatestSnapshot(machineID string) (model.SnapshotRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.snapshotsByID[machineID]
	if len(records) == 0 {
		return model.SnapshotRecord{}, false
	}
	return records[len(records)-1], true
}
