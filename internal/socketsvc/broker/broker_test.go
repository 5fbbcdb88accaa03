package broker

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/avvvet/opsboard-services/internal/comm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	subject string
	data    []byte
}

type fakeConn struct {
	out []captured
	err error
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.out = append(c.out, captured{subj, data})
	return nil
}

func TestPersistVersionPublishesWriteAndEvent(t *testing.T) {
	conn := &fakeConn{}
	b := &Broker{Conn: conn}

	b.PersistVersion("b1", 7, json.RawMessage(`{"version":7}`), "coord@ops.test")

	require.Len(t, conn.out, 2)
	assert.Equal(t, comm.SubjectPersist, conn.out[0].subject)
	assert.Equal(t, comm.SubjectEvents, conn.out[1].subject)

	var msg comm.WSMessage
	require.NoError(t, json.Unmarshal(conn.out[0].data, &msg))
	assert.Equal(t, comm.EventUpdate, msg.Type)

	var req comm.PersistRequest
	require.NoError(t, json.Unmarshal(msg.Data, &req))
	assert.Equal(t, "b1", req.BoardId)
	assert.Equal(t, 7, req.Version)
	assert.Equal(t, "coord@ops.test", req.Editor)
	assert.JSONEq(t, `{"version":7}`, string(req.Data))

	var ev comm.BoardEvent
	require.NoError(t, json.Unmarshal(conn.out[1].data, &ev))
	assert.Equal(t, 7, ev.Version)
}

func TestPersistVersionSurvivesPublishFailure(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	b := &Broker{Conn: conn}

	assert.NotPanics(t, func() {
		b.PersistVersion("b1", 2, json.RawMessage(`{}`), "a@ops.test")
	})
	assert.Empty(t, conn.out)
}
