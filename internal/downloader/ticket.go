package downloader

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/MrScripty/Pumas-Library-sub004/internal/liberr"
	"github.com/MrScripty/Pumas-Library-sub004/internal/model"
	libafero "github.com/MrScripty/Pumas-Library-sub004/pkg/afero"
)

// TicketStore persists Download Tickets to individual JSON files under a
// directory so a ticket's state survives a process restart, the way the
// Storage Layout persists metadata.json per model.
type TicketStore struct {
	fs  afero.Fs
	dir string

	mu      sync.Mutex
	tickets map[string]*model.DownloadTicket
}

// NewTicketStore loads any tickets already on disk under dir.
func NewTicketStore(fs afero.Fs, dir string) (*TicketStore, error) {
	s := &TicketStore{fs: fs, dir: dir, tickets: map[string]*model.DownloadTicket{}}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, liberr.Wrap(liberr.KindIoError, "creating ticket directory", err)
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TicketStore) loadAll() error {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var t model.DownloadTicket
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		s.tickets[t.DownloadID] = &t
	}
	return nil
}

func (s *TicketStore) path(downloadID string) string {
	return filepath.Join(s.dir, downloadID+".json")
}

// Create mints a new queued ticket for repoID covering the given files.
func (s *TicketStore) Create(repoID string, files []model.DownloadFile) (*model.DownloadTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	t := &model.DownloadTicket{
		DownloadID: uuid.NewString(),
		RepoID:     repoID,
		Files:      files,
		State:      model.DownloadQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.tickets[t.DownloadID] = t
	if err := s.persistLocked(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the ticket by id.
func (s *TicketStore) Get(downloadID string) (*model.DownloadTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[downloadID]
	return t, ok
}

// Update mutates a ticket under lock via fn and persists the result.
func (s *TicketStore) Update(downloadID string, fn func(t *model.DownloadTicket)) (*model.DownloadTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[downloadID]
	if !ok {
		return nil, liberr.New(liberr.KindValidationError, "download ticket not found: "+downloadID)
	}
	fn(t)
	t.UpdatedAt = time.Now()
	if err := s.persistLocked(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TicketStore) persistLocked(t *model.DownloadTicket) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return liberr.Wrap(liberr.KindIoError, "marshaling download ticket", err)
	}
	if err := libafero.AtomicWriteFile(s.fs, s.path(t.DownloadID), data, 0o644); err != nil {
		return liberr.Wrap(liberr.KindIoError, "writing download ticket", err)
	}
	return nil
}

// All returns every known ticket, newest-created order is not guaranteed.
func (s *TicketStore) All() []*model.DownloadTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.DownloadTicket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	return out
}
