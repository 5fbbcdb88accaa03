package broker

import (
	"encoding/json"
	"time"

	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is the part of *nats.Conn the broker needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type Broker struct {
	Conn Publisher
}

func NewBroker(conn *nats.Conn) *Broker {
	return &Broker{Conn: conn}
}

// publish message to board service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// PersistVersion implements engine.Persister. NATS publish only buffers, so
// the engine never waits on the durable write.
func (b *Broker) PersistVersion(boardID string, version int, data json.RawMessage, editor string) {
	msg, err := comm.Envelope(comm.EventUpdate, "", comm.PersistRequest{
		BoardId: boardID,
		Version: version,
		Data:    data,
		Editor:  editor,
	})
	if err != nil {
		log.Errorf("Error [PersistVersion] envelope %s", err)
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error [PersistVersion] marshal %s", err)
		return
	}
	if err := b.Publish(comm.SubjectPersist, payload); err != nil {
		return
	}

	event, err := json.Marshal(comm.BoardEvent{
		BoardId:   boardID,
		Version:   version,
		Editor:    editor,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	b.Publish(comm.SubjectEvents, event)
}
