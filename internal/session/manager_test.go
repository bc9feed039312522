package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/config"
	"github.com/agentdeck/agentdeck/errors"
	"github.com/agentdeck/agentdeck/logging"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   []Envelope
	closed bool
	reason string
}

func (c *fakeConn) Send(msg Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
}

func (c *fakeConn) messages() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *fakeConn) dataSequence() []string {
	var out []string
	for _, msg := range c.messages() {
		if msg.Type == "data" {
			out = append(out, msg.Data)
		}
	}
	return out
}

func (c *fakeConn) combinedOutput() string {
	var sb strings.Builder
	for _, msg := range c.messages() {
		if msg.Type == "data" || msg.Type == "snapshot" {
			sb.WriteString(msg.Data)
		}
	}
	return sb.String()
}

func testPolicy() config.SessionPolicy {
	return config.SessionPolicy{
		MaxGlobal:     50,
		MaxPerProject: 10,
		IdleThreshold: 48 * time.Hour,
		SweepInterval: time.Minute,
		BufferLimit:   64 * 1024,
		GraceTimeout:  2 * time.Second,
	}
}

func newTestManager(t *testing.T, policy config.SessionPolicy) *Manager {
	t.Helper()
	m := NewManager(context.Background(), policy, []string{os.TempDir()})
	t.Cleanup(m.Shutdown)
	return m
}

func shellRequest(t *testing.T, script string) CreateRequest {
	t.Helper()
	return CreateRequest{
		ProjectID:   "proj-a",
		WorktreeID:  "default",
		Cwd:         t.TempDir(),
		Tool:        "shell",
		CommandArgs: []string{"-c", script},
	}
}

func TestCreateSessionUnsupportedTool(t *testing.T) {
	m := newTestManager(t, testPolicy())

	req := shellRequest(t, "true")
	req.Tool = "vim"
	_, err := m.CreateSession(req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeToolUnsupported, errors.GetCode(err))
	assert.Empty(t, m.ListSessions())
}

func TestCreateSessionSandboxViolation(t *testing.T) {
	m := newTestManager(t, testPolicy())

	req := shellRequest(t, "true")
	req.Cwd = "/etc"
	_, err := m.CreateSession(req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSandboxViolation, errors.GetCode(err))
	assert.Empty(t, m.ListSessions(), "no partial session after rejection")
}

func TestCreateSessionMissingCwd(t *testing.T) {
	m := newTestManager(t, testPolicy())

	req := shellRequest(t, "true")
	req.Cwd = ""
	_, err := m.CreateSession(req)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestCreateSessionOversizedInitialInput(t *testing.T) {
	m := newTestManager(t, testPolicy())

	req := shellRequest(t, "cat")
	req.InitialInput = strings.Repeat("x", maxInitialInput+1)
	_, err := m.CreateSession(req)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestProjectCapacity(t *testing.T) {
	policy := testPolicy()
	policy.MaxPerProject = 2
	m := newTestManager(t, policy)

	for i := 0; i < 2; i++ {
		_, err := m.CreateSession(shellRequest(t, "sleep 30"))
		require.NoError(t, err)
	}

	_, err := m.CreateSession(shellRequest(t, "sleep 30"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProjectCapacity, errors.GetCode(err))
	assert.Len(t, m.ListSessions(), 2)

	// A different project is unaffected by the per-project ceiling.
	other := shellRequest(t, "sleep 30")
	other.ProjectID = "proj-b"
	_, err = m.CreateSession(other)
	require.NoError(t, err)
}

func TestGlobalCapacity(t *testing.T) {
	policy := testPolicy()
	policy.MaxGlobal = 2
	m := newTestManager(t, policy)

	for i := 0; i < 2; i++ {
		req := shellRequest(t, "sleep 30")
		req.ProjectID = fmt.Sprintf("proj-%d", i)
		_, err := m.CreateSession(req)
		require.NoError(t, err)
	}

	req := shellRequest(t, "sleep 30")
	req.ProjectID = "proj-z"
	_, err := m.CreateSession(req)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGlobalCapacity, errors.GetCode(err))
	assert.Len(t, m.ListSessions(), 2)
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestManager(t, testPolicy())

	info, err := m.CreateSession(shellRequest(t, "echo hello-from-child; sleep 0.2"))
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, info.Status)
	assert.NotEmpty(t, info.ID)

	conn := &fakeConn{}
	require.NoError(t, m.Attach(info.ID, conn))

	require.Eventually(t, func() bool {
		return strings.Contains(conn.combinedOutput(), "hello-from-child")
	}, 5*time.Second, 20*time.Millisecond)

	// The child exits on its own; the session leaves the table and the
	// connection is told why.
	require.Eventually(t, func() bool {
		_, err := m.Get(info.ID)
		return errors.GetCode(err) == errors.ErrCodeSessionNotFound
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.closed
	}, 2*time.Second, 20*time.Millisecond)

	var sawExit bool
	for _, msg := range conn.messages() {
		if msg.Type == "exit" {
			sawExit = true
			require.NotNil(t, msg.Code)
			assert.Equal(t, 0, *msg.Code)
		}
	}
	assert.True(t, sawExit, "attached connection must receive the exit message")
}

func TestAttachReplaysSnapshotThenStatus(t *testing.T) {
	m := newTestManager(t, testPolicy())

	info, err := m.CreateSession(shellRequest(t, "echo replay-me; sleep 30"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := m.lookup(info.ID)
		if err != nil {
			return false
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.buf.Len() > 0
	}, 5*time.Second, 20*time.Millisecond)

	conn := &fakeConn{}
	require.NoError(t, m.Attach(info.ID, conn))

	msgs := conn.messages()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, "snapshot", msgs[0].Type)
	assert.Contains(t, msgs[0].Data, "replay-me")
	assert.Equal(t, "status", msgs[1].Type)
	assert.Equal(t, StatusRunning, msgs[1].Status)
}

func TestAttachUnknownSession(t *testing.T) {
	m := newTestManager(t, testPolicy())

	err := m.Attach("no-such-session", &fakeConn{})
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.GetCode(err))
}

func TestWriteReachesChildInOrder(t *testing.T) {
	m := newTestManager(t, testPolicy())

	info, err := m.CreateSession(shellRequest(t, "cat"))
	require.NoError(t, err)

	conn := &fakeConn{}
	require.NoError(t, m.Attach(info.ID, conn))

	require.NoError(t, m.Write(info.ID, []byte("one two three\n")))

	require.Eventually(t, func() bool {
		return strings.Contains(conn.combinedOutput(), "one two three")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWriteUnknownSession(t *testing.T) {
	m := newTestManager(t, testPolicy())
	err := m.Write("no-such-session", []byte("hi"))
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.GetCode(err))
}

func TestCloseRemovesSessionWithinGrace(t *testing.T) {
	m := newTestManager(t, testPolicy())

	info, err := m.CreateSession(shellRequest(t, "sleep 60"))
	require.NoError(t, err)

	start := time.Now()
	m.Close(info.ID)
	assert.Less(t, time.Since(start), testPolicy().GraceTimeout+2*time.Second)

	require.Eventually(t, func() bool {
		_, err := m.Get(info.ID)
		return errors.GetCode(err) == errors.ErrCodeSessionNotFound
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCloseUnknownIsNoOp(t *testing.T) {
	m := newTestManager(t, testPolicy())
	m.Close("never-existed")
	m.Close("never-existed")
}

func TestDetachIsIdempotent(t *testing.T) {
	m := newTestManager(t, testPolicy())

	info, err := m.CreateSession(shellRequest(t, "sleep 30"))
	require.NoError(t, err)

	conn := &fakeConn{}
	require.NoError(t, m.Attach(info.ID, conn))
	m.Detach(conn)
	m.Detach(conn)
	m.Detach(&fakeConn{})
}

func TestFanOutOrdering(t *testing.T) {
	// Two attached connections must observe the same data chunks in the
	// same relative order as emitted.
	s := &session{
		id:     "fan-out",
		status: StatusRunning,
		buf:    newOutputBuffer(1024),
		conns:  make(map[Conn]struct{}),
		logger: logging.NewLogger("session-test"),
	}

	a := &fakeConn{}
	b := &fakeConn{}
	s.attach(a)
	s.attach(b)

	chunks := []string{"alpha", "beta\n", "\x1b[31mgamma", "delta\r"}
	for _, chunk := range chunks {
		s.emit([]byte(chunk))
	}

	assert.Equal(t, chunks, a.dataSequence())
	assert.Equal(t, chunks, b.dataSequence())
}

func TestAttachDuringStreamNeverDuplicatesChunks(t *testing.T) {
	// A viewer attaching mid-stream must see each chunk exactly once:
	// either inside the snapshot or as a data message, never both.
	s := &session{
		id:     "handoff",
		status: StatusRunning,
		buf:    newOutputBuffer(1 << 16),
		conns:  make(map[Conn]struct{}),
		logger: logging.NewLogger("session-test"),
	}

	var emitted strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			chunk := fmt.Sprintf("%04d,", i)
			emitted.WriteString(chunk)
			s.emit([]byte(chunk))
		}
	}()

	time.Sleep(time.Millisecond)
	conn := &fakeConn{}
	s.attach(conn)
	<-done

	assert.Equal(t, emitted.String(), conn.combinedOutput())
}

func TestCloseBeforeSpawnResolves(t *testing.T) {
	// A session occupies its table slot before the child is spawned;
	// closing it inside that window must not touch absent handles.
	policy := testPolicy()
	policy.GraceTimeout = 50 * time.Millisecond
	m := newTestManager(t, policy)

	s := &session{
		id:       "spawning",
		status:   StatusStarting,
		buf:      newOutputBuffer(1024),
		conns:    make(map[Conn]struct{}),
		spawned:  make(chan struct{}),
		procDone: make(chan struct{}),
		onRemove: m.remove,
		logger:   m.logger,
	}
	require.NoError(t, m.reserve(s))

	m.Close(s.id)

	_, err := m.Get(s.id)
	assert.NoError(t, err, "still-spawning session survives the close attempt")
	assert.Error(t, m.Write(s.id, []byte("x")))
	assert.Error(t, m.Resize(s.id, 80, 24))
}

func TestSetPolicyAppliesLive(t *testing.T) {
	m := newTestManager(t, testPolicy())

	info, err := m.CreateSession(shellRequest(t, "sleep 30"))
	require.NoError(t, err)

	tightened := testPolicy()
	tightened.MaxPerProject = 1
	m.SetPolicy(tightened)

	_, err = m.CreateSession(shellRequest(t, "sleep 30"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeProjectCapacity, errors.GetCode(err))

	tightened.IdleThreshold = time.Nanosecond
	m.SetPolicy(tightened)
	time.Sleep(10 * time.Millisecond)
	m.reapIdle()

	require.Eventually(t, func() bool {
		_, err := m.Get(info.ID)
		return err != nil
	}, 5*time.Second, 20*time.Millisecond, "sweep honors the lowered idle threshold")
}

func TestBroadcastDropsDeadConnection(t *testing.T) {
	s := &session{
		id:     "drop-dead",
		status: StatusRunning,
		buf:    newOutputBuffer(1024),
		conns:  make(map[Conn]struct{}),
		logger: logging.NewLogger("session-test"),
	}

	live := &fakeConn{}
	dead := &fakeConn{}
	s.attach(live)
	s.attach(dead)
	dead.Close("simulated disconnect")

	s.broadcast(DataMessage("after death"))

	assert.Equal(t, []string{"after death"}, live.dataSequence())
	assert.Equal(t, 1, s.attachedCount(), "dead connection removed from the set")
}

func TestListTools(t *testing.T) {
	m := newTestManager(t, testPolicy())

	tools := m.ListTools()
	require.NotEmpty(t, tools)

	byID := make(map[string]Tool)
	for _, tool := range tools {
		byID[tool.ID] = tool
	}
	for _, id := range []string{"codex", "claude", "opencode", "shell"} {
		assert.Contains(t, byID, id)
	}
	assert.True(t, byID["shell"].Available, "a shell is always present on the host")
}
