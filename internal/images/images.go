// Package images stores per-lap image attachments (base64 strings) in the
// key-value store, keyed by lap id. The reconciliation engine reads them
// back when uploading laps to the backend.
package images

import (
	"encoding/json"
	"strings"

	"github.com/yourname/clockwork/internal"
	"github.com/yourname/clockwork/internal/kvstore"
)

const keyPrefix = "clockwork_img_"

type Store struct {
	kv     kvstore.Store
	logger internal.Logger
}

func NewStore(kv kvstore.Store, logger internal.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

func (s *Store) Save(lapID string, imgs []string) {
	data, err := json.Marshal(imgs)
	if err != nil {
		s.logger.Warnf("images: failed to encode images for lap %s: %v", lapID, err)
		return
	}
	s.kv.Set(keyPrefix+lapID, string(data))
}

func (s *Store) Get(lapID string) []string {
	raw, ok := s.kv.Get(keyPrefix + lapID)
	if !ok {
		return nil
	}
	var imgs []string
	if err := json.Unmarshal([]byte(raw), &imgs); err != nil {
		return nil
	}
	return imgs
}

func (s *Store) Add(lapID, img string) {
	s.Save(lapID, append(s.Get(lapID), img))
}

func (s *Store) Remove(lapID string, index int) {
	imgs := s.Get(lapID)
	if index < 0 || index >= len(imgs) {
		return
	}
	s.Save(lapID, append(imgs[:index], imgs[index+1:]...))
}

func (s *Store) Delete(lapID string) {
	s.kv.Delete(keyPrefix + lapID)
}

// ClearAll removes every stored image array.
func (s *Store) ClearAll() {
	for _, k := range s.kv.Keys(keyPrefix) {
		s.kv.Delete(k)
	}
}

// LapID recovers the lap id from a storage key.
func LapID(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}
