package session

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
)

const (
	// Default terminal geometry at spawn time.
	defaultCols = 120
	defaultRows = 32

	// Resize floor; anything smaller produces degenerate terminals.
	minCols = 20
	minRows = 4
)

// Info is the caller-visible snapshot of a session. It never exposes the
// live process handle or the attachment set.
type Info struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	ProjectID  string     `json:"projectId"`
	WorktreeID string     `json:"worktreeId"`
	Cwd        string     `json:"cwd"`
	Tool       string     `json:"tool"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ExitCode   *int       `json:"exitCode,omitempty"`
}

// session owns one PTY-backed child process, its bounded output buffer,
// and the set of attached connections.
type session struct {
	id         string
	title      string
	projectID  string
	worktreeID string
	cwd        string
	tool       string
	createdAt  time.Time

	mu        sync.Mutex
	status    Status
	updatedAt time.Time
	exitCode  *int
	buf       *outputBuffer
	conns     map[Conn]struct{}

	ptmx *os.File
	cmd  *exec.Cmd

	// spawned is closed once the spawn attempt resolves, successfully
	// or not. cmd stays nil on failure.
	spawned chan struct{}

	// procDone is closed when Wait returns for the child.
	procDone chan struct{}
	finalize sync.Once

	onRemove func(*session)
	logger   *logrus.Entry
}

func (s *session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:         s.id,
		Title:      s.title,
		ProjectID:  s.projectID,
		WorktreeID: s.worktreeID,
		Cwd:        s.cwd,
		Tool:       s.tool,
		Status:     s.status,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
		ExitCode:   s.exitCode,
	}
}

// markSpawned records the process handles and unblocks anything waiting
// on the spawn to resolve.
func (s *session) markSpawned(ptmx *os.File, cmd *exec.Cmd) {
	s.mu.Lock()
	s.ptmx = ptmx
	s.cmd = cmd
	s.mu.Unlock()
	close(s.spawned)
}

// markSpawnFailed resolves the spawn gate without handles.
func (s *session) markSpawnFailed() {
	close(s.spawned)
}

func (s *session) setStatus(status Status) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.broadcast(StatusMessage(status))
}

// attach replays the buffered output followed by the current status and
// adds the connection to the broadcast set, all inside the same critical
// section output chunks are published under. A chunk therefore lands in
// the snapshot or in the stream, never both and never neither.
func (s *session) attach(conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := conn.Send(SnapshotMessage(s.buf.Snapshot())); err != nil {
		conn.Close("send failed")
		return
	}
	if err := conn.Send(StatusMessage(s.status)); err != nil {
		conn.Close("send failed")
		return
	}
	s.conns[conn] = struct{}{}
	s.updatedAt = time.Now()
}

// detach removes a connection if present. Safe to call repeatedly and
// for connections the session never held.
func (s *session) detach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[conn]; !ok {
		return false
	}
	delete(s.conns, conn)
	s.updatedAt = time.Now()
	return true
}

func (s *session) attachedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// broadcast pushes one message to every attached connection. A failed
// send drops that connection only; the session keeps running for the
// rest.
func (s *session) broadcast(msg Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(msg)
}

// broadcastLocked is the fan-out body. Callers hold s.mu.
func (s *session) broadcastLocked(msg Envelope) {
	for c := range s.conns {
		if err := c.Send(msg); err != nil {
			s.logger.WithError(err).Debug("Dropping dead connection")
			delete(s.conns, c)
			c.Close("send failed")
		}
	}
}

// emit is the single publication path for child output: the buffer
// append and the fan-out share one critical section with attach's
// snapshot replay.
func (s *session) emit(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Append(chunk)
	s.updatedAt = time.Now()
	s.broadcastLocked(DataMessage(string(chunk)))
}

// readLoop is the single producer for this session's output, emitting
// each chunk in read order.
func (s *session) readLoop() {
	chunk := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(chunk)
		if n > 0 {
			s.emit(chunk[:n])
		}
		if err != nil {
			return
		}
	}
}

// waitLoop reaps the child and finishes the session when it exits on its
// own.
func (s *session) waitLoop() {
	err := s.cmd.Wait()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	close(s.procDone)
	s.finish(&code, StatusExited)
}

// finish is the single terminal path: it records the final state,
// notifies and closes every attachment, releases the PTY, and removes
// the session from the owning table. Idempotent.
func (s *session) finish(code *int, status Status) {
	s.finalize.Do(func() {
		s.mu.Lock()
		if !s.status.Terminal() {
			s.status = status
			s.exitCode = code
		}
		s.updatedAt = time.Now()
		conns := make([]Conn, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.conns = make(map[Conn]struct{})
		finalStatus := s.status
		finalCode := s.exitCode
		ptmx := s.ptmx
		s.mu.Unlock()

		for _, c := range conns {
			if finalCode != nil {
				_ = c.Send(ExitMessage(*finalCode))
			}
			_ = c.Send(StatusMessage(finalStatus))
			c.Close("session ended")
		}

		if ptmx != nil {
			_ = ptmx.Close()
		}
		s.onRemove(s)

		fields := logrus.Fields{"session": s.id, "status": finalStatus}
		if finalCode != nil {
			fields["exitCode"] = *finalCode
		}
		s.logger.WithFields(fields).Info("Session ended")
	})
}

// stop terminates the child, racing a grace timer against its own exit:
// SIGTERM first, then SIGKILL, then forced bookkeeping even if the
// process never reports exit.
func (s *session) stop(grace time.Duration) {
	// A close can race session creation; wait for the spawn attempt to
	// resolve so there is always a process to signal.
	select {
	case <-s.spawned:
	case <-time.After(grace):
		return
	}

	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil {
		// Spawn failed; the creation path rolled the slot back.
		return
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-s.procDone:
		return
	case <-time.After(grace):
	}

	s.logger.WithField("session", s.id).Warn("Grace timeout elapsed, killing child")
	_ = cmd.Process.Kill()

	select {
	case <-s.procDone:
	case <-time.After(time.Second):
		s.finish(nil, StatusExited)
	}
}

func (s *session) write(data []byte) error {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return os.ErrClosed
	}
	s.updatedAt = time.Now()
	ptmx := s.ptmx
	s.mu.Unlock()

	if ptmx == nil {
		return os.ErrClosed
	}
	_, err := ptmx.Write(data)
	return err
}

func (s *session) resize(cols, rows uint16) error {
	s.mu.Lock()
	ptmx := s.ptmx
	s.mu.Unlock()
	if ptmx == nil {
		return os.ErrClosed
	}

	if cols < minCols {
		cols = minCols
	}
	if rows < minRows {
		rows = minRows
	}
	return pty.Setsize(ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}
