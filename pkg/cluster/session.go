package cluster

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/models"
)

// Runner executes a single command against an established remote session
// and returns its trimmed stdout and stderr. It is the only I/O seam of the
// core: everything above it parses plain text and can be tested against
// captured fixtures.
type Runner interface {
	Run(command string) (stdout, stderr string, err error)
}

// Session owns the SSH connection to the cluster head node and its
// three-state lifecycle (disconnected/connecting/connected). State is
// mutated only on connect, disconnect, a failed liveness probe, or a failed
// command; every transition is published on the event bus.
//
// Session never retries a failed connect on its own. The retry budget in
// ConnectionConfig belongs to callers (see pkg/retry), which keeps a
// user-facing reconnect loop interruptible.
type Session struct {
	config models.ConnectionConfig
	bus    *events.Bus
	log    *logging.Logger

	mu     sync.Mutex
	client *ssh.Client
	state  models.ConnectionState

	// execMu serializes remote command execution; the scheduler's session
	// multiplexing does not appreciate interleaved exec channels from a
	// poller and a control call at once.
	execMu sync.Mutex
}

// NewSession creates a session in the disconnected state. The bus must not
// be nil; connection state transitions are broadcast through it.
func NewSession(config models.ConnectionConfig, bus *events.Bus, log *logging.Logger) *Session {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Session{
		config: config,
		bus:    bus,
		log:    log.WithComponent("session"),
		state:  models.StateDisconnected,
	}
}

// State returns the current connection state.
func (s *Session) State() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the configuration this session was built with.
func (s *Session) Config() models.ConnectionConfig {
	return s.config
}

func (s *Session) setState(next models.ConnectionState) {
	s.mu.Lock()
	old := s.state
	s.state = next
	s.mu.Unlock()
	if old == next {
		return
	}
	s.log.Info("connection state changed", map[string]interface{}{
		"old": string(old), "new": string(next),
	})
	s.bus.Publish(events.ConnectionStateChanged, map[string]interface{}{
		"old_state": old,
		"new_state": next,
	}, "session")
}

// Connect establishes the SSH connection. On failure the session
// transitions back to disconnected, an ErrorOccurred event is published and
// the error is returned; there is no retry here. Calling Connect on an
// already-connected session is a no-op; replacing a live connection means
// Disconnect first.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.state == models.StateConnected && s.client != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.setState(models.StateConnecting)

	cfg := &ssh.ClientConfig{
		User: s.config.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(s.config.Password),
		},
		// Cluster head nodes rotate host keys behind load balancers
		// often enough that pinning would break most users.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.config.ConnectTimeout,
	}

	client, err := ssh.Dial("tcp", s.config.Addr(), cfg)
	if err != nil {
		s.bus.Publish(events.ErrorOccurred, map[string]interface{}{
			"error": fmt.Sprintf("connect to %s failed: %v", s.config.Addr(), err),
		}, "session")
		s.setState(models.StateDisconnected)
		if strings.Contains(err.Error(), "unable to authenticate") {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return fmt.Errorf("connect to %s: %w", s.config.Addr(), err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
	s.setState(models.StateConnected)
	return nil
}

// Disconnect closes the connection if open. Safe to call in any state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil {
		client.Close()
	}
	s.setState(models.StateDisconnected)
}

// IsAlive probes a session believed connected by opening and closing a
// throwaway channel. On failure it publishes ErrorOccurred, transitions to
// disconnected and returns false. This is the only path besides a failed
// command by which a dead session is noticed.
func (s *Session) IsAlive() bool {
	s.mu.Lock()
	client := s.client
	state := s.state
	s.mu.Unlock()

	if state != models.StateConnected || client == nil {
		return false
	}

	probe, err := client.NewSession()
	if err != nil {
		s.markLost(fmt.Errorf("liveness probe: %w", err))
		return false
	}
	probe.Close()
	return true
}

// markLost records a mid-use session failure: ErrorOccurred first, then the
// state transition, so subscribers see the cause before the effect.
func (s *Session) markLost(cause error) {
	s.log.Warn("session lost", map[string]interface{}{"error": cause.Error()})
	s.bus.Publish(events.ErrorOccurred, map[string]interface{}{
		"error": cause.Error(),
	}, "session")

	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client != nil {
		client.Close()
	}
	s.setState(models.StateDisconnected)
}

// Run executes one command and returns its trimmed stdout and stderr.
// A remote non-zero exit status is not an error: scontrol and friends exit
// non-zero for conditions the parsers handle from the text. Transport
// failures flip the session to disconnected and return ErrSessionLost.
func (s *Session) Run(command string) (string, string, error) {
	s.mu.Lock()
	client := s.client
	state := s.state
	s.mu.Unlock()

	if state != models.StateConnected || client == nil {
		return "", "", ErrNotConnected
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	sess, err := client.NewSession()
	if err != nil {
		s.markLost(fmt.Errorf("open exec channel: %w", err))
		return "", "", fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			s.markLost(fmt.Errorf("run %q: %w", command, err))
			return "", "", fmt.Errorf("%w: %v", ErrSessionLost, err)
		}
	}
	return strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()), nil
}

// Upload writes content to remotePath over SFTP, creating or truncating the
// file. Used for job submission scripts.
func (s *Session) Upload(remotePath, content string) error {
	s.mu.Lock()
	client := s.client
	state := s.state
	s.mu.Unlock()

	if state != models.StateConnected || client == nil {
		return ErrNotConnected
	}

	ftp, err := sftp.NewClient(client)
	if err != nil {
		s.markLost(fmt.Errorf("open sftp: %w", err))
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	defer ftp.Close()

	f, err := ftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := f.Write([]byte(content)); err != nil {
		return fmt.Errorf("write %s: %w", remotePath, err)
	}
	return nil
}
