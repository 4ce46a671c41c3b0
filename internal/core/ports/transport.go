package ports

import (
	"context"

	"github.com/pion/webrtc/v3"
)

// TransportCallbacks receives lifecycle events from a peer transport. The
// transport invokes them from its own goroutines; nil callbacks are skipped.
type TransportCallbacks struct {
	// OnLocalDescription fires once, after candidate gathering completes,
	// with the full bundled local description.
	OnLocalDescription func(desc webrtc.SessionDescription)
	// OnCandidate fires only for candidates surfacing after the bundled
	// description was published. Should not occur under bundled signaling.
	OnCandidate func(candidate webrtc.ICECandidateInit)
	OnConnected func()
	OnData      func(payload []byte)
	OnClosed    func()
	// OnError reports transport failures; fatal errors require teardown.
	OnError func(err error, fatal bool)
}

// PeerTransport is one peer connection carrying a single ordered reliable
// data channel. Closing at any state is safe.
type PeerTransport interface {
	// StartOffer configures the initiating side and begins gathering.
	StartOffer(ctx context.Context) error
	// StartAnswer configures the responding side from the remote offer and
	// begins gathering the answer.
	StartAnswer(ctx context.Context, offer webrtc.SessionDescription) error
	// ApplyAnswer feeds the remote answer into an initiating transport.
	ApplyAnswer(ctx context.Context, answer webrtc.SessionDescription) error
	AddRemoteCandidate(candidate webrtc.ICECandidateInit) error
	Send(payload []byte) error
	Close() error
}

// TransportFactory allocates a fresh transport per session.
type TransportFactory interface {
	NewPeerTransport(callbacks TransportCallbacks) (PeerTransport, error)
}
