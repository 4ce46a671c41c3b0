// Package webrtc implements the peer transport on pion. Signaling is
// non-trickle: the local description is published once, after candidate
// gathering completes, so it can travel as a single copy/paste blob.
package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"peerchat/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// DataChannelLabel is the single ordered reliable channel carrying all
// in-band traffic.
const DataChannelLabel = "chat"

// DefaultGatherTimeout bounds the wait for ICE gathering before the local
// description is published as-is.
const DefaultGatherTimeout = 10 * time.Second

// Config holds the transport configuration shared by all sessions.
type Config struct {
	ICEServers    []webrtc.ICEServer
	GatherTimeout time.Duration
}

// Factory allocates one transport per session.
type Factory struct {
	config Config
	logger *zap.SugaredLogger
}

func NewFactory(config Config, logger *zap.SugaredLogger) *Factory {
	if config.GatherTimeout <= 0 {
		config.GatherTimeout = DefaultGatherTimeout
	}
	return &Factory{config: config, logger: logger}
}

// NewPeerTransport creates a fresh peer connection wired to the callbacks.
func (f *Factory) NewPeerTransport(callbacks ports.TransportCallbacks) (ports.PeerTransport, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: f.config.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	transport := &peerTransport{
		pc:            pc,
		callbacks:     callbacks,
		gatherTimeout: f.config.GatherTimeout,
		logger:        f.logger,
	}
	transport.wirePeerConnection()
	return transport, nil
}

type peerTransport struct {
	pc            *webrtc.PeerConnection
	callbacks     ports.TransportCallbacks
	gatherTimeout time.Duration
	logger        *zap.SugaredLogger

	mu       sync.Mutex
	dc       *webrtc.DataChannel
	gathered bool

	closedOnce sync.Once
}

func (t *peerTransport) wirePeerConnection() {
	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.logger.Debugw("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			t.emitError(fmt.Errorf("peer connection failed"), true)
		case webrtc.PeerConnectionStateDisconnected:
			t.emitError(fmt.Errorf("peer connection disconnected"), false)
		case webrtc.PeerConnectionStateClosed:
			t.emitClosed()
		}
	})

	t.pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		t.logger.Debugw("ice connection state", "state", state.String())
	})

	// Candidates surfacing after the bundled description went out are
	// forwarded individually for the manual workflow.
	t.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		t.mu.Lock()
		late := t.gathered
		t.mu.Unlock()
		if late && t.callbacks.OnCandidate != nil {
			t.callbacks.OnCandidate(candidate.ToJSON())
		}
	})

	// The responding side receives the channel the initiator created.
	t.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != DataChannelLabel {
			t.logger.Warnw("ignoring unexpected data channel", "label", dc.Label())
			return
		}
		t.mu.Lock()
		t.dc = dc
		t.mu.Unlock()
		t.wireDataChannel(dc)
	})
}

func (t *peerTransport) wireDataChannel(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		t.logger.Debugw("data channel open", "label", dc.Label())
		if t.callbacks.OnConnected != nil {
			t.callbacks.OnConnected()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if t.callbacks.OnData != nil {
			t.callbacks.OnData(msg.Data)
		}
	})
	dc.OnClose(func() {
		t.emitClosed()
	})
	dc.OnError(func(err error) {
		t.emitError(fmt.Errorf("data channel error: %w", err), false)
	})
}

// StartOffer creates the channel, produces the offer, and publishes the
// bundled local description once gathering completes. The wait runs in its
// own goroutine so the caller is never blocked on the network.
func (t *peerTransport) StartOffer(ctx context.Context) error {
	dc, err := t.pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()
	t.wireDataChannel(dc)

	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}

	// The promise must exist before SetLocalDescription starts gathering.
	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	go t.publishWhenGathered(gatherComplete)
	return nil
}

// StartAnswer applies the remote offer and publishes the bundled answer once
// gathering completes.
func (t *peerTransport) StartAnswer(ctx context.Context, offer webrtc.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("failed to set remote offer: %w", err)
	}

	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	go t.publishWhenGathered(gatherComplete)
	return nil
}

// publishWhenGathered waits for gathering to finish, then hands the bundled
// description to the callbacks. A gather timeout publishes whatever has been
// collected so far rather than aborting the handshake.
func (t *peerTransport) publishWhenGathered(gatherComplete <-chan struct{}) {
	select {
	case <-gatherComplete:
	case <-time.After(t.gatherTimeout):
		t.logger.Warnw("ice gathering timed out, publishing partial description",
			"timeout", t.gatherTimeout)
	}

	t.mu.Lock()
	t.gathered = true
	t.mu.Unlock()

	desc := t.pc.LocalDescription()
	if desc == nil {
		t.emitError(fmt.Errorf("no local description after gathering"), true)
		return
	}
	if t.callbacks.OnLocalDescription != nil {
		t.callbacks.OnLocalDescription(*desc)
	}
}

func (t *peerTransport) ApplyAnswer(ctx context.Context, answer webrtc.SessionDescription) error {
	if err := t.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote answer: %w", err)
	}
	return nil
}

func (t *peerTransport) AddRemoteCandidate(candidate webrtc.ICECandidateInit) error {
	if err := t.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("failed to add remote candidate: %w", err)
	}
	return nil
}

// Send delivers one payload over the channel. Payloads are UTF-8 (plain text
// or JSON), so they go out as string messages.
func (t *peerTransport) Send(payload []byte) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("data channel is not open")
	}
	if err := dc.SendText(string(payload)); err != nil {
		return fmt.Errorf("failed to send over data channel: %w", err)
	}
	return nil
}

func (t *peerTransport) Close() error {
	return t.pc.Close()
}

func (t *peerTransport) emitClosed() {
	t.closedOnce.Do(func() {
		if t.callbacks.OnClosed != nil {
			t.callbacks.OnClosed()
		}
	})
}

func (t *peerTransport) emitError(err error, fatal bool) {
	if t.callbacks.OnError != nil {
		t.callbacks.OnError(err, fatal)
	}
}
