package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yourname/clockwork/internal"
)

type FileStorage struct {
	sessions  map[string]*internal.Session // id -> Session
	order     []*internal.Session          // newest-first
	mu        sync.RWMutex
	file      string
	saveChan  chan struct{}
	shutdown  chan struct{}
	saveDelay time.Duration
	logger    internal.Logger
}

func NewFileStorage(file string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		sessions:  make(map[string]*internal.Session),
		file:      file,
		saveChan:  make(chan struct{}, 1),
		shutdown:  make(chan struct{}),
		saveDelay: 500 * time.Millisecond,
		logger:    logger,
	}

	if err := s.load(); err != nil {
		logger.Errorf("archive: failed to load sessions: %v", err)
		return nil, err
	}

	go s.saveWorker()
	return s, nil
}

func (s *FileStorage) load() error {
	file, err := os.Open(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var sessions []*internal.Session
	if err := json.NewDecoder(file).Decode(&sessions); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range sessions {
		s.sessions[sess.ID] = sess
		s.order = append(s.order, sess)
	}
	sort.Slice(s.order, func(i, j int) bool {
		return s.order[i].CreatedAt.After(s.order[j].CreatedAt)
	})
	return nil
}

func (s *FileStorage) save() error {
	s.mu.RLock()
	sessions := make([]*internal.Session, len(s.order))
	copy(sessions, s.order)
	s.mu.RUnlock()
	if sessions == nil {
		sessions = make([]*internal.Session, 0)
	}
	if dir := filepath.Dir(s.file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return atomicWriteFileJSON(s.file, sessions)
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}
	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) saveWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.save(); err != nil {
				s.logger.Warnf("archive: error saving sessions: %v", err)
			}
		case <-s.shutdown:
			return
		}
	}
}

func (s *FileStorage) signalSave() {
	select {
	case s.saveChan <- struct{}{}:
	default:
	}
}

func (s *FileStorage) Close() error {
	close(s.shutdown)
	return s.save()
}

// --- SessionRepository ---

func (s *FileStorage) SaveSession(ctx context.Context, session *internal.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return errors.New("archive: duplicate session id")
	}
	s.sessions[session.ID] = session
	s.order = append([]*internal.Session{session}, s.order...)
	s.signalSave()
	return nil
}

func (s *FileStorage) ListSessions(ctx context.Context) ([]internal.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]internal.Session, len(s.order))
	for i, sess := range s.order {
		sessions[i] = *sess
	}
	return sessions, nil
}

func (s *FileStorage) GetSession(ctx context.Context, id string) (*internal.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("archive: session not found")
	}
	copied := *sess
	return &copied, nil
}

func (s *FileStorage) RenameSession(ctx context.Context, id, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return errors.New("archive: session not found")
	}
	sess.SessionName = name
	sess.Description = description
	s.signalSave()
	return nil
}

func (s *FileStorage) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return errors.New("archive: session not found")
	}
	delete(s.sessions, id)
	for i, sess := range s.order {
		if sess.ID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.signalSave()
	return nil
}

func (s *FileStorage) ClearSessions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*internal.Session)
	s.order = nil
	s.signalSave()
	return nil
}

// --- Compile-time assertions ---
var _ SessionRepository = (*FileStorage)(nil)
