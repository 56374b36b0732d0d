package binary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	. "github.com/MihneaTeodorStoica/Minerva/internal/helpers"
)

var (
	ErrEngineNotFound = errors.New("engine executable not found")
	ErrProcessDied    = errors.New("engine process is not running")
)

// Process supervises a single child process speaking a line-oriented
// protocol over its standard pipes. At most one child is live at a time;
// Restart replaces the handle wholesale.
type Process struct {
	path      string
	args      []string
	quitCmd   string
	quitGrace time.Duration
	logger    Logger

	lock   sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	exited chan struct{}
	output *LineBuffer
}

type ProcessOption func(*Process)

func WithArgs(args ...string) ProcessOption {
	return func(p *Process) {
		p.args = args
	}
}

func WithLogger(logger Logger) ProcessOption {
	return func(p *Process) {
		p.logger = logger
	}
}

func WithQuitCommand(cmd string) ProcessOption {
	return func(p *Process) {
		p.quitCmd = cmd
	}
}

func WithQuitGrace(grace time.Duration) ProcessOption {
	return func(p *Process) {
		p.quitGrace = grace
	}
}

func NewProcess(path string, options ...ProcessOption) *Process {
	p := &Process{
		path:      path,
		quitCmd:   "quit",
		quitGrace: 500 * time.Millisecond,
		output:    NewLineBuffer(),
	}
	for _, option := range options {
		option(p)
	}
	if p.logger == nil {
		p.logger = &DefaultLogger
	}
	return p
}

func (p *Process) Path() string {
	return p.path
}

func (p *Process) Start() Error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.startLocked()
}

func (p *Process) startLocked() Error {
	if p.aliveLocked() {
		return Errorf("process already running: %v", p.path)
	}

	if _, err := os.Stat(p.path); err != nil {
		return Wrap(fmt.Errorf("%w: %v", ErrEngineNotFound, p.path))
	}

	cmd := exec.Command(p.path, p.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Wrap(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Wrap(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Wrap(err)
	}

	// Fresh buffer per child; a restarted process never sees its
	// predecessor's leftovers.
	output := NewLineBuffer()
	scan := func(reader io.ReadCloser, label string) {
		defer reader.Close()
		scanner := bufio.NewScanner(bufio.NewReader(reader))
		for scanner.Scan() {
			line := scanner.Text()
			p.logger.Println(label, Ellipses(line, 140))
			output.Push(line)
		}
	}
	go scan(stdout, "stdout:")
	go scan(stderr, "err:")

	p.logger.Println("starting", p.path, p.args)
	if err := cmd.Start(); err != nil {
		return Wrap(err)
	}

	// Process.Wait rather than cmd.Wait: cmd.Wait tears down the pipes on
	// exit and can race the scanners out of a final line printed just
	// before death. The scanners close their own read ends at EOF.
	exited := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(exited)
	}()

	p.cmd = cmd
	p.stdin = stdin
	p.exited = exited
	p.output = output
	return NilError
}

// IsAlive never blocks: the exit channel is closed by the goroutine that
// reaps the child.
func (p *Process) IsAlive() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.aliveLocked()
}

func (p *Process) aliveLocked() bool {
	if p.cmd == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

func (p *Process) Send(input string) Error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.aliveLocked() {
		return Wrap(fmt.Errorf("%w: %v", ErrProcessDied, p.path))
	}

	p.logger.Println("stdin:", input)
	if _, err := p.stdin.Write([]byte(input + "\n")); err != nil {
		return Wrap(err)
	}
	return NilError
}

// Output returns the buffer fed by the current child's reader goroutines.
func (p *Process) Output() *LineBuffer {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.output
}

// Stop is a best-effort graceful shutdown: courtesy quit, then kill, then
// a bounded wait, then the handle is dropped unconditionally. Idempotent.
func (p *Process) Stop() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.cmd == nil {
		return
	}

	if p.aliveLocked() {
		_, _ = p.stdin.Write([]byte(p.quitCmd + "\n"))
		select {
		case <-p.exited:
		case <-time.After(p.quitGrace):
			_ = p.cmd.Process.Kill()
			select {
			case <-p.exited:
			case <-time.After(p.quitGrace):
			}
		}
	}

	_ = p.stdin.Close()
	p.cmd = nil
	p.stdin = nil
}

func (p *Process) Restart() Error {
	p.Stop()
	return p.Start()
}

// Kill terminates the child without the courtesy quit. The handle stays in
// place so liveness checks observe the death the way a crash would look.
func (p *Process) Kill() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.cmd != nil && p.aliveLocked() {
		_ = p.cmd.Process.Kill()
	}
}
