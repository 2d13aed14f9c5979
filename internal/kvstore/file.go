package kvstore

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourname/clockwork/internal"
)

// FileStore keeps the whole key space in memory and flushes it to a single
// JSON file. Flushes are debounced so rapid-fire writes (timer ticks,
// queue updates) hit the disk at most every saveDelay.
type FileStore struct {
	path      string
	logger    internal.Logger
	mu        sync.RWMutex
	data      map[string]string
	saveChan  chan struct{}
	shutdown  chan struct{}
	saveDelay time.Duration
	closeOnce sync.Once
}

func NewFileStore(path string, logger internal.Logger) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		logger:    logger,
		data:      make(map[string]string),
		saveChan:  make(chan struct{}, 1),
		shutdown:  make(chan struct{}),
		saveDelay: 500 * time.Millisecond,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	go s.saveWorker()
	return s, nil
}

func (s *FileStore) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var data map[string]string
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range data {
		s.data[k] = v
	}
	return nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	s.signalSave()
}

func (s *FileStore) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	s.signalSave()
}

func (s *FileStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *FileStore) signalSave() {
	select {
	case s.saveChan <- struct{}{}:
	default:
	}
}

// saveWorker batches save operations to avoid frequent disk writes.
func (s *FileStore) saveWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.save(); err != nil {
				s.logger.Warnf("kvstore: save failed, continuing in memory: %v", err)
			}
		case <-s.shutdown:
			return
		}
	}
}

func (s *FileStore) save() error {
	s.mu.RLock()
	data := make(map[string]string, len(s.data))
	for k, v := range s.data {
		data[k] = v
	}
	s.mu.RUnlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return atomicWriteJSON(s.path, data)
}

func atomicWriteJSON(path string, data interface{}) error {
	tempFile := path + ".tmp"
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
	return os.Rename(tempFile, path)
}

// Close stops the save worker and flushes pending state synchronously.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdown)
		err = s.save()
	})
	return err
}

var _ Store = (*FileStore)(nil)
