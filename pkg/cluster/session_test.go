package cluster

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/models"
)

func testConfig() models.ConnectionConfig {
	return models.ConnectionConfig{
		Host:           "127.0.0.1",
		Port:           22,
		User:           "nobody",
		Password:       "irrelevant",
		ConnectTimeout: 50 * time.Millisecond,
	}
}

func TestNewSessionStartsDisconnected(t *testing.T) {
	s := NewSession(testConfig(), events.NewBus(nil), nil)
	if s.State() != models.StateDisconnected {
		t.Fatalf("state = %q, want disconnected", s.State())
	}
}

func TestRunWhileDisconnected(t *testing.T) {
	s := NewSession(testConfig(), events.NewBus(nil), nil)
	_, _, err := s.Run("scontrol show nodes")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestUploadWhileDisconnected(t *testing.T) {
	s := NewSession(testConfig(), events.NewBus(nil), nil)
	if err := s.Upload("/tmp/x", "data"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestIsAliveWhileDisconnected(t *testing.T) {
	s := NewSession(testConfig(), events.NewBus(nil), nil)
	if s.IsAlive() {
		t.Fatal("a disconnected session is never alive")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	bus := events.NewBus(nil)
	s := NewSession(testConfig(), bus, nil)
	s.Disconnect()
	s.Disconnect()
	if s.State() != models.StateDisconnected {
		t.Fatalf("state = %q, want disconnected", s.State())
	}
	// No transition happened, so nothing was published.
	if got := len(bus.History(events.ConnectionStateChanged, 0)); got != 0 {
		t.Fatalf("published %d state changes, want 0", got)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	cfg := testConfig()
	s := NewSession(cfg, events.NewBus(nil), nil)
	if s.Config().Host != cfg.Host || s.Config().User != cfg.User {
		t.Fatal("Config must return the construction-time configuration")
	}
}

// startSSHServer runs a minimal in-process SSH server with password auth.
// It completes handshakes but rejects every channel open, so it serves
// connect/disconnect tests and makes liveness probes fail deterministically.
func startSSHServer(t *testing.T, password string) models.ConnectionConfig {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host key signer: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("wrong password")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
				if err != nil {
					return
				}
				defer sconn.Close()
				go ssh.DiscardRequests(reqs)
				for ch := range chans {
					ch.Reject(ssh.Prohibited, "no channels served")
				}
			}()
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return models.ConnectionConfig{
		Host:           host,
		Port:           port,
		User:           "tester",
		Password:       password,
		ConnectTimeout: 2 * time.Second,
	}
}

// deadAddrConfig returns a config pointing at a local port that was just
// closed, so dialing it fails immediately.
func deadAddrConfig(t *testing.T) models.ConnectionConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return models.ConnectionConfig{
		Host:           host,
		Port:           port,
		User:           "nobody",
		Password:       "irrelevant",
		ConnectTimeout: 500 * time.Millisecond,
	}
}

func TestConnectFailurePublishesOrderedEvents(t *testing.T) {
	bus := events.NewBus(nil)
	s := NewSession(deadAddrConfig(t), bus, nil)

	if err := s.Connect(); err == nil {
		t.Fatal("connect to a dead address must fail")
	}
	if s.State() != models.StateDisconnected {
		t.Fatalf("state = %q, want disconnected", s.State())
	}

	hist := bus.History("", 0)
	if len(hist) != 3 {
		t.Fatalf("published %d events, want 3: %+v", len(hist), hist)
	}
	if hist[0].Type != events.ConnectionStateChanged ||
		hist[0].Payload["old_state"] != models.StateDisconnected ||
		hist[0].Payload["new_state"] != models.StateConnecting {
		t.Errorf("first event should be disconnected->connecting, got %+v", hist[0])
	}
	if hist[1].Type != events.ErrorOccurred {
		t.Errorf("second event should be the error, got %+v", hist[1])
	}
	if hist[2].Type != events.ConnectionStateChanged ||
		hist[2].Payload["old_state"] != models.StateConnecting ||
		hist[2].Payload["new_state"] != models.StateDisconnected {
		t.Errorf("third event should be connecting->disconnected, got %+v", hist[2])
	}
}

func TestConnectAndDisconnect(t *testing.T) {
	cfg := startSSHServer(t, "secret")
	bus := events.NewBus(nil)
	s := NewSession(cfg, bus, nil)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if s.State() != models.StateConnected {
		t.Fatalf("state = %q, want connected", s.State())
	}

	s.Disconnect()
	if s.State() != models.StateDisconnected {
		t.Fatalf("state = %q, want disconnected", s.State())
	}
}

func TestConnectRejectedCredentials(t *testing.T) {
	cfg := startSSHServer(t, "secret")
	cfg.Password = "wrong"
	s := NewSession(cfg, events.NewBus(nil), nil)

	err := s.Connect()
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if s.State() != models.StateDisconnected {
		t.Fatalf("state = %q, want disconnected", s.State())
	}
}

func TestConnectWhileConnectedIsNoOp(t *testing.T) {
	cfg := startSSHServer(t, "secret")
	bus := events.NewBus(nil)
	s := NewSession(cfg, bus, nil)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	before := len(bus.History(events.ConnectionStateChanged, 0))
	if err := s.Connect(); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if s.State() != models.StateConnected {
		t.Fatalf("state = %q, want connected", s.State())
	}
	if after := len(bus.History(events.ConnectionStateChanged, 0)); after != before {
		t.Errorf("re-connect published %d extra state changes", after-before)
	}
}

func TestLivenessFailurePublishesErrorBeforeStateChange(t *testing.T) {
	// The test server rejects channel opens, so the first probe against an
	// otherwise healthy transport fails and the session is marked lost.
	cfg := startSSHServer(t, "secret")
	bus := events.NewBus(nil)
	s := NewSession(cfg, bus, nil)

	if err := s.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	bus.ClearHistory()

	if s.IsAlive() {
		t.Fatal("probe against a channel-rejecting server must fail")
	}
	if s.State() != models.StateDisconnected {
		t.Fatalf("state = %q, want disconnected", s.State())
	}

	hist := bus.History("", 0)
	if len(hist) != 2 {
		t.Fatalf("published %d events, want 2: %+v", len(hist), hist)
	}
	if hist[0].Type != events.ErrorOccurred {
		t.Errorf("cause must be published first, got %+v", hist[0])
	}
	if hist[1].Type != events.ConnectionStateChanged ||
		hist[1].Payload["new_state"] != models.StateDisconnected {
		t.Errorf("state change must follow the error, got %+v", hist[1])
	}
}

func TestConnectionConfigAddrDefaultsPort(t *testing.T) {
	cfg := models.ConnectionConfig{Host: "head.example.com"}
	if got := cfg.Addr(); got != "head.example.com:22" {
		t.Fatalf("Addr() = %q, want head.example.com:22", got)
	}
	cfg.Port = 2222
	if got := cfg.Addr(); got != "head.example.com:2222" {
		t.Fatalf("Addr() = %q, want head.example.com:2222", got)
	}
}
