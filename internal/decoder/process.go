package decoder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Process is a running decoder subprocess.
type Process interface {
	// Done is closed once the process has exited and its output is drained.
	Done() <-chan struct{}
	// Err reports the exit error after Done is closed.
	Err() error
	// Stderr returns the last diagnostic line written by the process.
	Stderr() string
	Signal(sig os.Signal) error
	Kill() error
	// Close releases the process pipes, killing it if still running.
	Close() error
}

// Launcher starts decoder subprocesses.
type Launcher interface {
	Launch(binary string, args []string, onStdout func(string)) (Process, error)
}

type commandLauncher struct{}

// Launch starts binary and forwards each stdout line to onStdout from a
// dedicated goroutine.
func (commandLauncher) Launch(binary string, args []string, onStdout func(string)) (Process, error) {
	cmd := exec.Command(binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	p := &commandProcess{cmd: cmd, stdout: stdout, done: make(chan struct{})}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				p.setStderr(line)
			}
		}
	}()
	go func() {
		wg.Wait()
		err := cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

type commandProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	done   chan struct{}

	mu         sync.Mutex
	err        error
	lastStderr string
}

func (p *commandProcess) setStderr(line string) {
	p.mu.Lock()
	p.lastStderr = line
	p.mu.Unlock()
}

func (p *commandProcess) Done() <-chan struct{} { return p.done }

func (p *commandProcess) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *commandProcess) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastStderr
}

func (p *commandProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *commandProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *commandProcess) Close() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	_ = p.Kill()
	_ = p.stdout.Close()
	<-p.done
	return nil
}
