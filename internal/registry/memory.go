package registry

import (
	"bytes"
	"sync"
)

// ServerData keeps both stores in process memory behind one RWMutex.
type ServerData struct {
	mu sync.RWMutex

	names map[string]UpdateMessage
	keys  map[string][]byte
}

var _ Registry = (*ServerData)(nil)

func NewServerData() *ServerData {
	return &ServerData{
		names: map[string]UpdateMessage{},
		keys:  map[string][]byte{},
	}
}

func (s *ServerData) GetName(name string) (*UpdateMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.names[name]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (s *ServerData) GetIDKey(user string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[user]
	if !ok {
		return nil, nil
	}
	return cloneKey(key), nil
}

func (s *ServerData) AddID(user string, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[user] = cloneKey(key)
	return nil
}

func (s *ServerData) UpdateName(name string, msg UpdateMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[name] = msg
	return nil
}

func (s *ServerData) ValidateUpdate(msg UpdateMessage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateLocked(msg)
}

func (s *ServerData) ApplyUpdateIfValid(name string, msg UpdateMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateLocked(msg); err != nil {
		return err
	}
	s.names[name] = msg
	return nil
}

func (s *ServerData) validateLocked(msg UpdateMessage) error {
	key, ok := s.keys[msg.User]
	return validate(msg, key, ok)
}

// cloneKey never returns nil, so a registered empty key is not read back as
// an absent one.
func cloneKey(key []byte) []byte {
	if key == nil {
		return []byte{}
	}
	return bytes.Clone(key)
}
