package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Persister is the durable writer behind board.persist.
type Persister interface {
	Persist(ctx context.Context, boardID string, data json.RawMessage) error
}

type Broker struct {
	Conn      *nats.Conn
	Persister Persister
	timeout   time.Duration
}

func NewBroker(nc *nats.Conn, p Persister) *Broker {
	return &Broker{
		Conn:      nc,
		Persister: p,
		timeout:   30 * time.Second,
	}
}

// SubscribePersist consumes accepted versions from the realtime service. The
// queue group makes each version land on exactly one board service instance.
func (b *Broker) SubscribePersist(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// handles message coming from socket service
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case comm.EventUpdate:
		req := comm.PersistRequest{}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error [persist] decode %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()

		if err := b.Persister.Persist(ctx, req.BoardId, req.Data); err != nil {
			// the realtime peers already hold this version; only the durable copy is behind
			log.WithFields(log.Fields{
				"board":   req.BoardId,
				"version": req.Version,
				"editor":  req.Editor,
			}).Errorf("Error [Persist] %s", err)
			return
		}
		log.WithFields(log.Fields{"board": req.BoardId, "version": req.Version}).Debug("board persisted")
	default:
		log.Warnf("unknown message type on persist topic: %s", msg.Type)
	}
}
