// Package boardclient is the client side of board editing: a local copy of the
// board that is changed optimistically, sent whole to the realtime service and
// replaced wholesale when the server pushes a newer document.
package boardclient

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/avvvet/opsboard-services/internal/apperr"
	"github.com/avvvet/opsboard-services/internal/boardsvc/models"
	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Emitter sends a proposed document and the version it was built on to the
// realtime service.
type Emitter interface {
	EmitUpdate(boardID string, doc *models.Board, baseVersion int) error
}

// Persister issues the out of band durable write.
type Persister interface {
	SaveBoard(boardID string, doc *models.Board) error
}

type State struct {
	mu        sync.Mutex
	boardID   string
	board     *models.Board
	online    int
	lastError *comm.ErrorMessage

	emitter   Emitter
	persister Persister

	// OnChange, when set, is called with a copy of every new local state.
	OnChange func(*models.Board)
}

func New(boardID string, e Emitter, p Persister) *State {
	b := &models.Board{}
	b.Hydrate()
	return &State{boardID: boardID, board: b, emitter: e, persister: p}
}

func (s *State) BoardID() string {
	return s.boardID
}

// Load installs the document from the cold read.
func (s *State) Load(b *models.Board) {
	b.Hydrate()
	s.replace(b)
}

// Board returns a copy of the local document.
func (s *State) Board() *models.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.board.Clone()
	if err != nil {
		log.Errorf("clone board %s: %v", s.boardID, err)
		return &models.Board{}
	}
	return c
}

func (s *State) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Version
}

func (s *State) Online() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *State) LastError() *comm.ErrorMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Mutate applies fn to a copy of the board, bumps the version by one, renders
// it locally and then emits it. A failing fn changes nothing.
func (s *State) Mutate(fn func(b *models.Board) error) error {
	s.mu.Lock()
	next, err := s.board.Clone()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return err
	}
	base := s.board.Version
	next.Version = base + 1
	s.board = next
	snapshot, _ := next.Clone()
	s.mu.Unlock()

	s.notify(snapshot)

	if s.emitter != nil {
		if err := s.emitter.EmitUpdate(s.boardID, snapshot, base); err != nil {
			return fmt.Errorf("emit update: %w", err)
		}
	}
	if s.persister != nil {
		if err := s.persister.SaveBoard(s.boardID, snapshot); err != nil {
			log.Warnf("durable write of board %s v%d: %v", s.boardID, snapshot.Version, err)
		}
	}
	return nil
}

func (s *State) MoveCard(cardID, columnID string) error {
	return s.Mutate(func(b *models.Board) error {
		if !b.HasColumn(columnID) {
			return fmt.Errorf("column %s: %w", columnID, apperr.ErrNotFound)
		}
		for i := range b.Cards {
			if b.Cards[i].ID == cardID {
				b.Cards[i].ColumnID = columnID
				return nil
			}
		}
		return fmt.Errorf("card %s: %w", cardID, apperr.ErrNotFound)
	})
}

func (s *State) AddCard(columnID, title, createdBy string) (*models.Card, error) {
	card := models.Card{
		ID:         uuid.New().String(),
		ColumnID:   columnID,
		Title:      title,
		Labels:     []string{},
		Assignees:  []string{},
		Checklists: []models.Checklist{},
		CreatedBy:  createdBy,
	}
	err := s.Mutate(func(b *models.Board) error {
		if !b.HasColumn(columnID) {
			return fmt.Errorf("column %s: %w", columnID, apperr.ErrNotFound)
		}
		b.Cards = append(b.Cards, card)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (s *State) AddColumn(title string) (*models.Column, error) {
	col := models.Column{ID: "col-" + uuid.New().String(), Title: title}
	err := s.Mutate(func(b *models.Board) error {
		for _, c := range b.Columns {
			if c.Order >= col.Order {
				col.Order = c.Order + 1
			}
		}
		b.Columns = append(b.Columns, col)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &col, nil
}

func (s *State) DeleteCard(cardID string) error {
	return s.Mutate(func(b *models.Board) error {
		for i := range b.Cards {
			if b.Cards[i].ID == cardID {
				b.Cards = append(b.Cards[:i], b.Cards[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("card %s: %w", cardID, apperr.ErrNotFound)
	})
}

// Handle applies one server frame.
func (s *State) Handle(msg *comm.WSMessage) error {
	switch msg.Type {
	case comm.EventUpdated, comm.EventResync:
		var doc comm.BoardDocument
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			return err
		}
		if doc.BoardId != "" && doc.BoardId != s.boardID {
			return nil
		}
		b := &models.Board{}
		if err := json.Unmarshal(doc.Data, b); err != nil {
			return err
		}
		if msg.Type == comm.EventResync {
			log.Infof("board %s resynced to v%d, local edit dropped", s.boardID, doc.Version)
		}
		// a peer's accepted version and a resync both replace local state
		s.Load(b)
	case comm.EventPresence:
		var p comm.Presence
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		s.setOnline(p.OnlineCount)
	case comm.EventPresenceLeft:
		var p comm.PresenceLeft
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return err
		}
		s.setOnline(p.OnlineCount)
	case comm.EventError:
		var em comm.ErrorMessage
		if err := json.Unmarshal(msg.Data, &em); err != nil {
			return err
		}
		s.mu.Lock()
		s.lastError = &em
		s.mu.Unlock()
		log.Warnf("board %s: server error %s: %s", s.boardID, em.Code, em.Message)
	default:
		log.Debugf("board %s: ignoring %s", s.boardID, msg.Type)
	}
	return nil
}

func (s *State) setOnline(n int) {
	s.mu.Lock()
	s.online = n
	s.mu.Unlock()
}

func (s *State) replace(b *models.Board) {
	s.mu.Lock()
	s.board = b
	snapshot, _ := b.Clone()
	s.mu.Unlock()
	s.notify(snapshot)
}

func (s *State) notify(b *models.Board) {
	if s.OnChange != nil && b != nil {
		s.OnChange(b)
	}
}
