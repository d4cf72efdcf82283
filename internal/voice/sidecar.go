// Package voice supervises the external voice-control process.
package voice

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/bibleclock/internal/model"
)

const (
	maxRetries = 2
	retryDelay = 2 * time.Second
)

// Event is one JSON line written by the sidecar on stdout.
type Event struct {
	Event string `json:"event"`
	Text  string `json:"text,omitempty"`
}

type control struct {
	WakeWord bool `json:"wake_word"`
}

// Sidecar runs the voice process and talks to it over stdin/stdout JSON
// lines. With no command configured every call reports model.ErrUnavailable.
type Sidecar struct {
	args []string

	// OnEvent, when set, receives every event the sidecar emits.
	OnEvent func(Event)

	mu        sync.Mutex
	cancel    context.CancelFunc
	stdin     io.WriteCloser
	running   bool
	listening bool
	wakeWord  bool
	done      chan struct{}
}

// New returns a Sidecar for command, split on spaces.
func New(command string) *Sidecar {
	return &Sidecar{args: strings.Fields(command)}
}

func (s *Sidecar) configured() bool {
	return len(s.args) > 0
}

// Start launches the process unless it is already running.
func (s *Sidecar) Start(ctx context.Context) error {
	if !s.configured() {
		return fmt.Errorf("voice: %w", model.ErrUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})
	go s.run(runCtx, s.done)
	return nil
}

// Stop terminates the process and waits for the supervisor to exit.
func (s *Sidecar) Stop(ctx context.Context) error {
	if !s.configured() {
		return fmt.Errorf("voice: %w", model.ErrUnavailable)
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status implements stats.VoiceSource.
func (s *Sidecar) Status(context.Context) (model.VoiceState, error) {
	if !s.configured() {
		return model.VoiceState{}, fmt.Errorf("voice: %w", model.ErrUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.VoiceState{
		Available:       true,
		IsListening:     s.running && s.listening,
		WakeWordEnabled: s.wakeWord,
	}, nil
}

// SetWakeWord implements mode.WakeWordSetter. A running process is told
// right away; a stopped one gets the flag on its next start.
func (s *Sidecar) SetWakeWord(_ context.Context, enabled bool) error {
	if !s.configured() {
		return fmt.Errorf("voice: %w", model.ErrUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wakeWord = enabled
	if s.stdin == nil {
		return nil
	}
	return s.sendLocked()
}

func (s *Sidecar) sendLocked() error {
	line, err := json.Marshal(control{WakeWord: s.wakeWord})
	if err != nil {
		return err
	}
	if _, err := s.stdin.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("voice: failed to send control: %w", err)
	}
	return nil
}

func (s *Sidecar) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.listening = false
		s.stdin = nil
		s.cancel = nil
		s.mu.Unlock()
		close(done)
	}()

	for i := 0; ; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf("voice: starting %s (attempt %d)", s.args[0], i+1)
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("voice: sidecar exited: %v", err)
		if i >= maxRetries-1 {
			log.Printf("voice: giving up after %d attempts", i+1)
			return
		}
	}
}

func (s *Sidecar) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.args[0], s.args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	s.mu.Lock()
	s.stdin = stdin
	s.listening = true
	if err := s.sendLocked(); err != nil {
		log.Printf("%v", err)
	}
	s.mu.Unlock()

	// Wait closes the pipe, so all output is drained first.
	s.readOutput(stdout)
	err = cmd.Wait()

	s.mu.Lock()
	s.stdin = nil
	s.listening = false
	s.mu.Unlock()
	return err
}

func (s *Sidecar) readOutput(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Printf("voice: malformed sidecar output: %v", err)
			continue
		}
		s.handle(ev)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Printf("voice: reading sidecar output: %v", err)
	}
}

func (s *Sidecar) handle(ev Event) {
	s.mu.Lock()
	switch ev.Event {
	case "listening":
		s.listening = true
	case "idle":
		s.listening = false
	}
	onEvent := s.OnEvent
	s.mu.Unlock()
	if onEvent != nil && ev.Event != "" {
		onEvent(ev)
	}
}
