package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-kyc/caseflow/internal/store"
)

type sent struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []sent
	err  error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, sent{subject, data})
	return nil
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "kyc.case.12.stage_changed", CaseSubject("kyc", 12, store.EventStageChanged))
	assert.Equal(t, "kyc.adhoc.abc", AdHocSubject("kyc", "abc"))
}

func TestCaseEvent_PublishesJSON(t *testing.T) {
	conn := &fakeConn{}
	n := newNATS(conn, "", nil)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := n.CaseEvent(context.Background(), store.Event{
		ID: 3, CaseID: 12, Type: store.EventAssigned, Description: "Claimed by alice", Source: "alice", Timestamp: ts,
	})
	require.NoError(t, err)
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "caseflow.case.12.assigned", conn.msgs[0].subject)

	var got store.Event
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &got))
	assert.Equal(t, "Claimed by alice", got.Description)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestAdHocActivity_Payload(t *testing.T) {
	conn := &fakeConn{}
	n := newNATS(conn, "kyc.", nil)

	task := store.AdHocTask{ID: "t1", Owner: "rita", Assignee: "alice", Status: store.AdHocResponded}
	err := n.AdHocActivity(context.Background(), task, store.Activity{Author: "alice", Message: "Responded: done"})
	require.NoError(t, err)
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "kyc.adhoc.t1", conn.msgs[0].subject)

	var msg AdHocMessage
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &msg))
	assert.Equal(t, store.AdHocResponded, msg.Status)
	assert.Equal(t, "alice", msg.Author)
}

func TestPublish_Errors(t *testing.T) {
	n := newNATS(&fakeConn{err: errors.New("no responders")}, "kyc", nil)
	err := n.CaseEvent(context.Background(), store.Event{CaseID: 1, Type: store.EventNoteAdded})
	assert.ErrorContains(t, err, "kyc.case.1.note_added")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, newNATS(&fakeConn{}, "", nil).CaseEvent(ctx, store.Event{}))
}

func TestNop(t *testing.T) {
	var n Nop
	assert.NoError(t, n.CaseEvent(context.Background(), store.Event{}))
	assert.NoError(t, n.AdHocActivity(context.Background(), store.AdHocTask{}, store.Activity{}))

	assert.Error(t, (&NATS{}).Watch(context.Background(), nil))
}
