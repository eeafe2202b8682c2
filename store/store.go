// Package store persists the small set of durable wallet state: the last
// connected connector id, the user's default network and the per-connector
// "was authorized" flags. Values survive host restarts; everything else in
// the module is re-derived from live wallet state.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/nucleon-labs/neoportal/config"
)

const (
	keyLastConnected  = "lastConnectedConnectorId"
	keyDefaultNetwork = "defaultNetworkId"
	keyAuthorized     = "authorized/" // + connector id
	keyRelaySession   = "relay/session"
)

// Store is a badger-backed durable key-value store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store at dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a volatile store, used in tests and ephemeral hosts.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) set(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// LastConnectedConnectorID returns the persisted last connected connector id.
func (s *Store) LastConnectedConnectorID() (config.ConnectorID, bool, error) {
	value, ok, err := s.get(keyLastConnected)
	if err != nil || !ok {
		return "", false, err
	}
	id := config.ConnectorID(value)
	if !config.IsSupportedConnector(id) {
		// Stale value from an older build; treat as unset.
		return "", false, nil
	}
	return id, true, nil
}

// SetLastConnectedConnectorID persists the last connected connector id.
func (s *Store) SetLastConnectedConnectorID(id config.ConnectorID) error {
	return s.set(keyLastConnected, []byte(id))
}

// ClearLastConnectedConnectorID removes the persisted connector id.
func (s *Store) ClearLastConnectedConnectorID() error {
	return s.delete(keyLastConnected)
}

// DefaultNetworkID returns the user's persisted default network.
func (s *Store) DefaultNetworkID() (config.NetworkID, bool, error) {
	value, ok, err := s.get(keyDefaultNetwork)
	if err != nil || !ok {
		return "", false, err
	}
	id := config.NetworkID(value)
	if !config.IsSupportedNetwork(id) {
		return "", false, nil
	}
	return id, true, nil
}

// SetDefaultNetworkID persists the user's default network.
func (s *Store) SetDefaultNetworkID(id config.NetworkID) error {
	return s.set(keyDefaultNetwork, []byte(id))
}

// Authorized reports whether the user previously completed an explicit
// connect handshake with the connector. Set on successful connect, cleared
// on disconnect.
func (s *Store) Authorized(id config.ConnectorID) (bool, error) {
	value, ok, err := s.get(keyAuthorized + string(id))
	if err != nil || !ok {
		return false, err
	}
	return string(value) == "true", nil
}

// SetAuthorized records the connector's authorization flag.
func (s *Store) SetAuthorized(id config.ConnectorID, authorized bool) error {
	if !authorized {
		return s.delete(keyAuthorized + string(id))
	}
	return s.set(keyAuthorized+string(id), []byte("true"))
}

// LoadRelaySession loads the persisted relay session record into v.
func (s *Store) LoadRelaySession(v any) (bool, error) {
	value, ok, err := s.get(keyRelaySession)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(value, v); err != nil {
		return false, fmt.Errorf("failed to decode relay session: %w", err)
	}
	return true, nil
}

// SaveRelaySession persists the relay session record.
func (s *Store) SaveRelaySession(v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode relay session: %w", err)
	}
	return s.set(keyRelaySession, value)
}

// DeleteRelaySession removes the persisted relay session record.
func (s *Store) DeleteRelaySession() error {
	return s.delete(keyRelaySession)
}
