package minecraft

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"protonmc/internal/logging"
	"protonmc/internal/model"
)

// CommandBuilder prepares the process for a server. It may block (for example
// while a JDK is downloaded) and must honour ctx while doing so.
type CommandBuilder func(ctx context.Context, srv model.Server) (*exec.Cmd, error)

// ErrServerBusy is returned when an operation needs a stopped server.
var ErrServerBusy = errors.New("server is not stopped")

// Instance supervises the process of one registered server.
type Instance struct {
	build       CommandBuilder
	console     *ConsoleBuffer
	emit        func(Event)
	stopTimeout time.Duration
	log         *logging.Logger
	now         func() time.Time

	mu          sync.Mutex
	server      model.Server
	state       model.ServerState
	operational bool
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	startedAt   time.Time
	players     []string
	cancelStart context.CancelFunc
	done        chan struct{}
}

func newInstance(srv model.Server, m *Manager) *Instance {
	return &Instance{
		build:       m.build,
		console:     NewConsoleBuffer(m.consoleMax),
		emit:        m.publish,
		stopTimeout: m.stopTimeout,
		log:         m.log.With("server", srv.Name),
		now:         time.Now,
		server:      srv,
		state:       model.StateStopped,
	}
}

// Server returns the registry record the instance runs.
func (i *Instance) Server() model.Server {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.server
}

// State returns the current lifecycle state.
func (i *Instance) State() model.ServerState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Running reports whether a process exists or is being launched.
func (i *Instance) Running() bool {
	s := i.State()
	return s == model.StateStarting || s == model.StateRunning
}

// BeginCreating marks the instance as being provisioned. It fails unless stopped.
func (i *Instance) BeginCreating() error { return i.reserve(model.StateCreating) }

// FinishCreating returns a provisioned instance to the stopped state.
func (i *Instance) FinishCreating() { i.unreserve(model.StateCreating) }

// BeginRestoring holds a stopped instance while its folder is replaced.
// Start refuses to launch until FinishRestoring.
func (i *Instance) BeginRestoring() error { return i.reserve(model.StateRestoring) }

// FinishRestoring releases the hold taken by BeginRestoring.
func (i *Instance) FinishRestoring() { i.unreserve(model.StateRestoring) }

func (i *Instance) reserve(state model.ServerState) error {
	i.mu.Lock()
	if i.state != model.StateStopped {
		i.mu.Unlock()
		return ErrServerBusy
	}
	i.state = state
	i.mu.Unlock()
	i.publishState(state)
	return nil
}

func (i *Instance) unreserve(state model.ServerState) {
	i.mu.Lock()
	if i.state != state {
		i.mu.Unlock()
		return
	}
	i.state = model.StateStopped
	i.mu.Unlock()
	i.publishState(model.StateStopped)
}

// Start launches the server in the background. It returns false when the
// server is not stopped.
func (i *Instance) Start() bool {
	i.mu.Lock()
	if i.state != model.StateStopped {
		i.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	i.state = model.StateStarting
	i.operational = false
	i.players = nil
	i.cancelStart = cancel
	i.done = make(chan struct{})
	srv := i.server
	done := i.done
	i.mu.Unlock()

	// A previous run may have printed "Done"; start from an empty console.
	i.console.Reset()
	i.publishState(model.StateStarting)

	go i.run(ctx, cancel, srv, done)
	return true
}

func (i *Instance) run(ctx context.Context, cancel context.CancelFunc, srv model.Server, done chan struct{}) {
	defer close(done)
	defer cancel()

	cmd, err := i.build(ctx, srv)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	var stdout io.ReadCloser
	var stdin io.WriteCloser
	if err == nil {
		stdin, stdout, err = attachPipes(cmd)
	}
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		i.failStart(err)
		return
	}

	i.mu.Lock()
	i.cmd = cmd
	i.stdin = stdin
	i.startedAt = i.now()
	i.cancelStart = nil
	i.mu.Unlock()
	i.log.Info("server_process_started", "pid", cmd.Process.Pid)
	if ctx.Err() != nil {
		// Stop arrived while the process was being launched.
		_, _ = io.WriteString(stdin, "stop\n")
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		i.handleLine(sc.Text())
	}
	if err := sc.Err(); err != nil {
		i.log.Warn("server_output_read_failed", "error", err)
	}

	waitErr := cmd.Wait()

	i.mu.Lock()
	i.state = model.StateStopped
	i.operational = false
	i.players = nil
	i.cmd = nil
	i.stdin = nil
	i.startedAt = time.Time{}
	i.mu.Unlock()

	if waitErr != nil {
		i.log.Warn("server_process_exited", "error", waitErr)
	} else {
		i.log.Info("server_process_exited")
	}
	i.publishState(model.StateStopped)
}

func attachPipes(cmd *exec.Cmd) (io.WriteCloser, io.ReadCloser, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout
	return stdin, stdout, nil
}

func (i *Instance) failStart(err error) {
	i.mu.Lock()
	i.state = model.StateStopped
	i.cancelStart = nil
	name := i.server.Name
	i.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		i.log.Info("server_start_cancelled")
	} else {
		i.log.Error("server_start_failed", "error", err)
		i.emit(Event{Type: EventStartFailed, Server: name, Time: i.now(), Err: err, Detail: err.Error()})
	}
	i.publishState(model.StateStopped)
}

func (i *Instance) handleLine(raw string) {
	line := CleanLine(raw)
	if line == "" {
		return
	}
	name := i.Server().Name
	now := i.now()

	if hasTag(line, serverThreadInfo) {
		msg := Message(line)
		if player, ok := PlayerJoined(msg); ok {
			i.mu.Lock()
			i.players = append(i.players, player)
			i.mu.Unlock()
			i.emit(Event{Type: EventPlayerJoin, Server: name, Time: now, Player: player})
		}
		if player, ok := PlayerLeft(msg); ok {
			i.mu.Lock()
			for idx, p := range i.players {
				if p == player {
					i.players = append(i.players[:idx], i.players[idx+1:]...)
					break
				}
			}
			i.mu.Unlock()
			i.emit(Event{Type: EventPlayerLeave, Server: name, Time: now, Player: player})
		}
		if player, title, ok := Advancement(msg); ok {
			i.emit(Event{Type: EventAchievement, Server: name, Time: now, Player: player, Detail: title})
		}
	}

	becameOperational := false
	if IsDoneLine(line) {
		i.mu.Lock()
		if !i.operational && i.state == model.StateStarting {
			i.operational = true
			i.state = model.StateRunning
			becameOperational = true
		}
		i.mu.Unlock()
	}

	line = MaskPlayerIP(line)
	i.console.Append(line)
	i.emit(Event{Type: EventConsole, Server: name, Time: now, Line: line})

	if becameOperational {
		i.publishState(model.StateRunning)
	}
}

// Stop asks the server to shut down and kills it after the stop timeout.
// It returns false when nothing is running.
func (i *Instance) Stop() bool {
	i.mu.Lock()
	if i.state != model.StateStarting && i.state != model.StateRunning {
		i.mu.Unlock()
		return false
	}
	if i.cmd == nil {
		// still preparing the launch
		if i.cancelStart != nil {
			i.cancelStart()
		}
		i.mu.Unlock()
		return true
	}
	stdin, cmd, done := i.stdin, i.cmd, i.done
	i.mu.Unlock()

	if _, err := io.WriteString(stdin, "stop\n"); err != nil {
		i.log.Warn("server_stop_write_failed", "error", err)
		_ = cmd.Process.Kill()
		return true
	}

	go func() {
		select {
		case <-done:
		case <-time.After(i.stopTimeout):
			i.log.Warn("server_stop_timeout_kill", "timeout", i.stopTimeout)
			_ = cmd.Process.Kill()
		}
	}()
	return true
}

// Wait blocks until the current run, if any, has exited.
func (i *Instance) Wait(ctx context.Context) error {
	i.mu.Lock()
	done := i.done
	i.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendCommand writes one console command to the process. It returns false
// when the server has no running process.
func (i *Instance) SendCommand(command string) bool {
	i.mu.Lock()
	stdin := i.stdin
	i.mu.Unlock()
	if stdin == nil {
		return false
	}
	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		i.log.Warn("server_command_write_failed", "error", err)
		return false
	}
	return true
}

// Console returns the buffered console lines.
func (i *Instance) Console() []string {
	return i.console.Lines()
}

// Players returns the names of players currently online.
func (i *Instance) Players() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]string, len(i.players))
	copy(out, i.players)
	return out
}

// StartedAt returns the launch time of the running process.
func (i *Instance) StartedAt() (time.Time, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cmd == nil || i.startedAt.IsZero() {
		return time.Time{}, false
	}
	return i.startedAt, true
}

// Status returns a snapshot for the API.
func (i *Instance) Status() model.ServerStatus {
	i.mu.Lock()
	defer i.mu.Unlock()
	st := model.ServerStatus{
		Name:        i.server.Name,
		Type:        i.server.Type,
		GameVersion: i.server.GameVersion,
		State:       i.state,
		Running:     i.state == model.StateStarting || i.state == model.StateRunning,
		Operational: i.operational,
		Players:     append([]string{}, i.players...),
	}
	if i.cmd != nil && !i.startedAt.IsZero() {
		started := i.startedAt
		st.StartedAt = &started
		st.Uptime = FormatUptime(i.now().Sub(started))
	}
	return st
}

func (i *Instance) publishState(state model.ServerState) {
	i.emit(Event{Type: EventState, Server: i.Server().Name, Time: i.now(), State: state})
}

// FormatUptime renders a duration as h:mm:ss.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
