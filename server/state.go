// Package server dispatches inbound requests to the proxy, static and
// management pipelines and implements the management API.
package server

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/atrium-gateway/atrium/config"
	"github.com/atrium-gateway/atrium/routing"
)

// ErrPersist is returned by Replace when the new configuration could not be
// written to disk. Other Replace errors mean the configuration itself is
// invalid.
var ErrPersist = errors.New("could not save configuration")

// snapshot pairs a configuration with the routing table derived from it.
// Snapshots are immutable; mutations build a new one.
type snapshot struct {
	conf  *config.Config
	table *routing.Table
}

// State holds the live configuration snapshot behind an atomic pointer.
// Request handlers read the current snapshot without locking; admin
// mutations persist a new configuration and swap the snapshot, so changes
// take effect without a restart.
type State struct {
	path    string
	current atomic.Pointer[snapshot]
}

// NewState loads the configuration from path, builds the routing table and
// returns the initialized state. Errors are fatal startup errors.
func NewState(path string) (*State, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	t, err := routing.Build(c)
	if err != nil {
		return nil, err
	}
	s := &State{path: path}
	s.current.Store(&snapshot{conf: c, table: t})
	return s, nil
}

// Config returns the current configuration snapshot.
func (s *State) Config() *config.Config {
	return s.current.Load().conf
}

// Table returns the current routing table.
func (s *State) Table() *routing.Table {
	return s.current.Load().table
}

// Replace validates the new configuration by building its routing table,
// persists it, and swaps the live snapshot. The swap only happens after a
// successful write, so a persistence failure leaves the old snapshot
// serving.
func (s *State) Replace(c *config.Config) error {
	t, err := routing.Build(c)
	if err != nil {
		return err
	}
	if err := c.Save(s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.current.Store(&snapshot{conf: c, table: t})
	return nil
}
