// Package session implements the session core: the authoritative owner
// of all live PTY-backed child processes, their bounded output buffers,
// and the fan-out of output to attached transport connections.
package session

import (
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agentdeck/agentdeck/config"
	"github.com/agentdeck/agentdeck/errors"
	"github.com/agentdeck/agentdeck/logging"
	"github.com/agentdeck/agentdeck/util/pathutil"
	"github.com/agentdeck/agentdeck/util/sanitize"
)

const (
	// maxInitialInput bounds the optional input written to the child
	// right after spawn.
	maxInitialInput = 10 * 1024

	// maxCommandArgs bounds the optional caller-supplied extra-args list.
	maxCommandArgs = 16
)

// CreateRequest describes a session to spawn.
type CreateRequest struct {
	ProjectID    string   `json:"projectId"`
	WorktreeID   string   `json:"worktreeId"`
	Cwd          string   `json:"cwd"`
	Tool         string   `json:"tool"`
	Title        string   `json:"title,omitempty"`
	CommandArgs  []string `json:"commandArgs,omitempty"`
	InitialInput string   `json:"initialInput,omitempty"`
}

// Manager owns the session table. All mutation goes through its methods;
// nothing else touches a session directly.
type Manager struct {
	mu           sync.Mutex
	table        map[string]*session
	policy       config.SessionPolicy
	sandboxRoots []string
	tools        []Tool
	logger       *logrus.Entry

	done     chan struct{}
	stopOnce sync.Once
}

// NewManager builds a manager and probes the tool allow-list once.
func NewManager(ctx context.Context, policy config.SessionPolicy, sandboxRoots []string) *Manager {
	logger := logging.NewLogger("session")
	roots := make([]string, 0, len(sandboxRoots))
	for _, r := range sandboxRoots {
		roots = append(roots, pathutil.RealPath(r))
	}
	return &Manager{
		table:        make(map[string]*session),
		policy:       policy,
		sandboxRoots: roots,
		tools:        probeTools(ctx, builtinTools(), logger),
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start launches the idle reaper. It runs until Shutdown.
func (m *Manager) Start() {
	go m.reapLoop()
}

// SetPolicy swaps the resource policy at runtime. Existing sessions are
// untouched; the new ceilings, thresholds, and timeouts govern
// subsequent creates, sweeps, and closes.
func (m *Manager) SetPolicy(policy config.SessionPolicy) {
	m.mu.Lock()
	m.policy = policy
	m.mu.Unlock()
}

func (m *Manager) snapshotPolicy() config.SessionPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

func (m *Manager) reapLoop() {
	for {
		timer := time.NewTimer(m.snapshotPolicy().SweepInterval)
		select {
		case <-m.done:
			timer.Stop()
			return
		case <-timer.C:
			m.reapIdle()
		}
	}
}

// reapIdle closes running sessions with no attachments that have been
// idle past the threshold, via the same graceful path as explicit close.
func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.snapshotPolicy().IdleThreshold)

	m.mu.Lock()
	var idle []*session
	for _, s := range m.table {
		info := s.info()
		if info.Status == StatusRunning && s.attachedCount() == 0 && info.UpdatedAt.Before(cutoff) {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.logger.WithField("session", s.id).Info("Reaping idle session")
		m.Close(s.id)
	}
}

// Shutdown closes every live session and stops the reaper.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	ids := make([]string, 0, len(m.table))
	for id := range m.table {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.Close(id)
		}(id)
	}
	wg.Wait()
}

// CreateSession validates, reserves capacity, and spawns a PTY-backed
// child for one of the allow-listed tools. On any failure no session
// record is retained.
func (m *Manager) CreateSession(req CreateRequest) (Info, error) {
	tool, err := m.resolveTool(req.Tool)
	if err != nil {
		return Info{}, err
	}

	cwd, err := m.validateCwd(req.Cwd)
	if err != nil {
		return Info{}, err
	}

	args, err := validateArgs(req.CommandArgs)
	if err != nil {
		return Info{}, err
	}
	if len(req.InitialInput) > maxInitialInput {
		return Info{}, errors.New(errors.ErrCodeInvalidInput, "initial input too large")
	}

	title := sanitize.ForTitle(req.Title)
	if title == "" {
		title = tool.Name
	}

	policy := m.snapshotPolicy()
	now := time.Now()
	s := &session{
		id:         uuid.NewString(),
		title:      title,
		projectID:  req.ProjectID,
		worktreeID: req.WorktreeID,
		cwd:        cwd,
		tool:       tool.ID,
		createdAt:  now,
		status:     StatusStarting,
		updatedAt:  now,
		buf:        newOutputBuffer(policy.BufferLimit),
		conns:      make(map[Conn]struct{}),
		spawned:    make(chan struct{}),
		procDone:   make(chan struct{}),
		onRemove:   m.remove,
		logger:     m.logger,
	}

	// Reserve the table slot before spawning so the capacity check and
	// the insert are atomic; a failed spawn rolls the slot back.
	if err := m.reserve(s); err != nil {
		return Info{}, err
	}

	cmd := exec.Command(tool.Command, append(append([]string{}, tool.Args...), args...)...)
	cmd.Dir = cwd
	cmd.Env = toolEnv(tool)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: defaultCols, Rows: defaultRows})
	if err != nil {
		s.markSpawnFailed()
		m.remove(s)
		return Info{}, errors.SpawnFailed(tool.ID, err)
	}
	s.markSpawned(ptmx, cmd)

	s.setStatus(StatusRunning)
	go s.readLoop()
	go s.waitLoop()

	if req.InitialInput != "" {
		if err := s.write([]byte(req.InitialInput)); err != nil {
			m.logger.WithError(err).WithField("session", s.id).
				Warn("Failed to deliver initial input")
		}
	}

	m.logger.WithFields(logrus.Fields{
		"session": s.id,
		"tool":    tool.ID,
		"project": req.ProjectID,
		"cwd":     cwd,
	}).Info("Created session")
	return s.info(), nil
}

func (m *Manager) reserve(s *session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.table) >= m.policy.MaxGlobal {
		return errors.GlobalCapacityExceeded(m.policy.MaxGlobal)
	}
	perProject := 0
	for _, existing := range m.table {
		if existing.projectID == s.projectID {
			perProject++
		}
	}
	if perProject >= m.policy.MaxPerProject {
		return errors.ProjectCapacityExceeded(s.projectID, m.policy.MaxPerProject)
	}

	m.table[s.id] = s
	return nil
}

func (m *Manager) remove(s *session) {
	m.mu.Lock()
	delete(m.table, s.id)
	m.mu.Unlock()
}

func (m *Manager) resolveTool(id string) (Tool, error) {
	for _, tool := range m.tools {
		if tool.ID == id {
			if !tool.Available {
				return Tool{}, errors.ToolUnavailable(id)
			}
			return tool, nil
		}
	}
	return Tool{}, errors.ToolUnsupported(id)
}

// validateCwd enforces the working-directory sandbox: the directory must
// exist and, after symlink resolution, lie within an allow-listed root.
func (m *Manager) validateCwd(raw string) (string, error) {
	if raw == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "working directory is required")
	}
	abs, err := pathutil.Expand(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid working directory")
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", errors.New(errors.ErrCodeInvalidInput, "working directory does not exist: "+abs)
	}

	real := pathutil.RealPath(abs)
	for _, root := range m.sandboxRoots {
		if pathutil.IsWithin(real, root) {
			return abs, nil
		}
	}
	return "", errors.SandboxViolation(abs)
}

func validateArgs(args []string) ([]string, error) {
	if len(args) > maxCommandArgs {
		return nil, errors.New(errors.ErrCodeInvalidInput, "too many command arguments")
	}
	for _, arg := range args {
		if strings.ContainsRune(arg, 0) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "command argument contains NUL byte")
		}
	}
	return args, nil
}

func toolEnv(tool Tool) []string {
	env := append(os.Environ(), "TERM=xterm-256color")
	for k, v := range tool.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// Write forwards raw input bytes to the child in submission order.
func (m *Manager) Write(sessionID string, data []byte) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := s.write(data); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "write to session failed")
	}
	return nil
}

// Resize forwards a terminal geometry change, clamped to sane minimums.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	if err := s.resize(cols, rows); err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "resize failed")
	}
	return nil
}

// Attach adds a connection to the session's broadcast set and replays
// the output snapshot plus current status to it.
func (m *Manager) Attach(sessionID string, conn Conn) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.attach(conn)
	return nil
}

// Detach removes a connection from whichever session holds it.
// Idempotent; unknown connections are ignored.
func (m *Manager) Detach(conn Conn) {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.table))
	for _, s := range m.table {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if s.detach(conn) {
			return
		}
	}
}

// Close gracefully terminates a session, racing the grace timer against
// the child's own exit. Closing an unknown id is a silent no-op.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	s, ok := m.table[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}
	s.stop(m.snapshotPolicy().GraceTimeout)
}

// Get returns a snapshot of one session.
func (m *Manager) Get(sessionID string) (Info, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// ListSessions returns snapshots of all live sessions, newest first.
func (m *Manager) ListSessions() []Info {
	m.mu.Lock()
	infos := make([]Info, 0, len(m.table))
	for _, s := range m.table {
		infos = append(infos, s.info())
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

// ListTools returns the probed tool allow-list.
func (m *Manager) ListTools() []Tool {
	out := make([]Tool, len(m.tools))
	copy(out, m.tools)
	return out
}

func (m *Manager) lookup(sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.table[sessionID]
	if !ok {
		return nil, errors.SessionNotFound(sessionID)
	}
	return s, nil
}
