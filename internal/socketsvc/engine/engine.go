// Package engine arbitrates concurrent whole-document writes to boards. The
// cache it keeps is the process-local authority on the latest accepted version
// of every board written since start; it is never primed from the store.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/comm"
	log "github.com/sirupsen/logrus"
)

// Authorizer re-resolves the requester against a fresh roster and board metadata.
type Authorizer interface {
	AuthorizeView(ctx context.Context, email, boardID string) error
	AuthorizeEdit(ctx context.Context, email, boardID string) error
}

// Fanout delivers a frame to every session of a board except one. It must not
// block: it is called while the engine holds its lock.
type Fanout interface {
	Broadcast(boardID, exceptSocket string, msg *comm.WSMessage)
}

// Persister hands an accepted version to the durable writer without waiting
// for the write.
type Persister interface {
	PersistVersion(boardID string, version int, data json.RawMessage, editor string)
}

type Outcome int

const (
	Accepted Outcome = iota
	Resync
)

func (o Outcome) String() string {
	if o == Resync {
		return "resync"
	}
	return "accepted"
}

type entry struct {
	version int
	data    json.RawMessage
}

type Update struct {
	BoardID           string
	Data              json.RawMessage
	ClientBaseVersion int
	Email             string
	SocketID          string
}

type Result struct {
	Outcome Outcome
	Version int
	Data    json.RawMessage // the authoritative document on Resync
}

type Engine struct {
	mu         sync.Mutex
	cache      map[string]*entry
	auth       Authorizer
	fanout     Fanout
	persister  Persister
	maxPayload int
}

func New(auth Authorizer, fanout Fanout, persister Persister, maxPayload int) *Engine {
	return &Engine{
		cache:      make(map[string]*entry),
		auth:       auth,
		fanout:     fanout,
		persister:  persister,
		maxPayload: maxPayload,
	}
}

// ApplyUpdate authorizes, size checks and then arbitrates one proposed
// document. Errors leave the cache untouched and nothing is broadcast.
func (e *Engine) ApplyUpdate(ctx context.Context, u Update) (*Result, error) {
	if err := e.auth.AuthorizeEdit(ctx, u.Email, u.BoardID); err != nil {
		return nil, err
	}
	if u.ClientBaseVersion < 0 {
		return nil, fmt.Errorf("board %s update base version %d: %w", u.BoardID, u.ClientBaseVersion, apperr.ErrBadRequest)
	}
	if len(u.Data) > e.maxPayload {
		return nil, fmt.Errorf("board %s update is %d bytes: %w", u.BoardID, len(u.Data), apperr.ErrPayloadTooLarge)
	}

	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(u.Data, &head); err != nil {
		return nil, fmt.Errorf("board %s update: %w", u.BoardID, apperr.ErrBadRequest)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cached, ok := e.cache[u.BoardID]
	if ok && u.ClientBaseVersion < cached.version {
		log.WithFields(log.Fields{
			"board":  u.BoardID,
			"socket": u.SocketID,
			"base":   u.ClientBaseVersion,
			"cached": cached.version,
		}).Info("stale update, resync")
		return &Result{Outcome: Resync, Version: cached.version, Data: cached.data}, nil
	}

	version := head.Version
	switch {
	case ok:
		version = cached.version + 1
	case version < 1:
		version = u.ClientBaseVersion + 1
	}
	if version < 1 {
		return nil, fmt.Errorf("board %s update version %d: %w", u.BoardID, version, apperr.ErrBadRequest)
	}
	data := u.Data
	if version != head.Version {
		var err error
		if data, err = withVersion(u.Data, version); err != nil {
			return nil, fmt.Errorf("board %s update: %w", u.BoardID, apperr.ErrBadRequest)
		}
	}

	e.cache[u.BoardID] = &entry{version: version, data: data}

	doc, err := comm.Envelope(comm.EventUpdated, "", comm.BoardDocument{BoardId: u.BoardID, Version: version, Data: data})
	if err != nil {
		return nil, err
	}
	e.fanout.Broadcast(u.BoardID, u.SocketID, doc)
	if e.persister != nil {
		e.persister.PersistVersion(u.BoardID, version, data, u.Email)
	}

	log.WithFields(log.Fields{
		"board":   u.BoardID,
		"socket":  u.SocketID,
		"email":   u.Email,
		"version": version,
	}).Debug("update accepted")
	return &Result{Outcome: Accepted, Version: version}, nil
}

// Snapshot returns the cached version of a board, if any.
func (e *Engine) Snapshot(boardID string) (int, json.RawMessage, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cache[boardID]
	if !ok {
		return 0, nil, false
	}
	return c.version, c.data, true
}

func withVersion(data json.RawMessage, version int) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is null")
	}
	v, err := json.Marshal(version)
	if err != nil {
		return nil, err
	}
	doc["version"] = v
	return json.Marshal(doc)
}
