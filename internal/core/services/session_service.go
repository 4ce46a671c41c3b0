package services

import (
	"context"
	"fmt"
	"sync"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/ports"
	"peerchat/internal/core/protocol"
	"peerchat/internal/core/signaling"
	"peerchat/pkg/utils"
	"peerchat/pkg/validation"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// session is the single mutable connection slot. It exists only between a
// start/accept call and teardown; all access goes through the manager mutex.
type session struct {
	state        domain.SessionState
	role         domain.SessionRole
	peerID       domain.UserID
	firstMessage string
	transport    ports.PeerTransport
	localSignal  string
	candidates   []string
}

// SessionManager owns the connection slot and drives it through the manual
// signaling handshake and the in-band application protocol. All state
// transitions are serialized by one mutex; transitions happen either on user
// actions or on transport callbacks.
type SessionManager struct {
	profiles ports.ProfileService
	history  ports.HistoryRepository
	media    ports.MediaService
	factory  ports.TransportFactory
	metrics  ports.SessionMetrics
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	current *session

	subMu       sync.Mutex
	subscribers map[int]chan domain.Event
	nextSubID   int
}

func NewSessionManager(
	profiles ports.ProfileService,
	history ports.HistoryRepository,
	media ports.MediaService,
	factory ports.TransportFactory,
	metrics ports.SessionMetrics,
	logger *zap.SugaredLogger,
) *SessionManager {
	return &SessionManager{
		profiles:    profiles,
		history:     history,
		media:       media,
		factory:     factory,
		metrics:     metrics,
		logger:      logger,
		subscribers: make(map[int]chan domain.Event),
	}
}

// StartAsInitiator allocates the connection slot as the initiating side and
// begins gathering the bundled offer. The offer package is emitted via the
// offer-ready event once the transport finishes gathering.
func (m *SessionManager) StartAsInitiator(ctx context.Context, peerID domain.UserID, firstMessage string) error {
	if err := validation.ValidatePeerID(string(peerID)); err != nil {
		return fmt.Errorf("invalid peer ID: %w", err)
	}

	profile, err := m.profiles.LoadProfile(ctx)
	if err != nil {
		return domain.ErrNoProfile
	}
	if peerID == profile.UserID {
		return fmt.Errorf("cannot start a chat with yourself")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return domain.ErrSessionActive
	}

	sess := &session{
		state:        domain.StateInitiating,
		role:         domain.RoleInitiator,
		peerID:       peerID,
		firstMessage: firstMessage,
	}

	transport, err := m.factory.NewPeerTransport(m.callbacksFor(sess))
	if err != nil {
		return fmt.Errorf("failed to allocate connection: %w", err)
	}
	sess.transport = transport
	m.current = sess

	if err := transport.StartOffer(ctx); err != nil {
		m.teardownLocked(sess)
		return fmt.Errorf("failed to start offer: %w", err)
	}

	m.metrics.SessionStarted(domain.RoleInitiator)
	m.publish(domain.Event{Type: domain.EventStateChanged, Payload: m.infoLocked()})
	m.logger.Infow("session initiated", "peer_id", peerID)
	return nil
}

// AcceptIncomingOffer parses a pasted offer package, records the sender's
// identity, persists any bundled first message, and allocates the responder
// connection. Malformed packages are rejected without touching session state.
func (m *SessionManager) AcceptIncomingOffer(ctx context.Context, rawPackage string) error {
	pkg, err := signaling.DecodeOfferPackage(rawPackage)
	if err != nil {
		return err
	}

	profile, err := m.profiles.LoadProfile(ctx)
	if err != nil {
		return domain.ErrNoProfile
	}
	if pkg.SenderID == profile.UserID {
		return fmt.Errorf("offer package was created by this installation")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return domain.ErrSessionActive
	}

	if err := m.profiles.SavePeerIdentity(ctx, pkg.SenderID, pkg.SenderDisplayName); err != nil {
		m.logger.Warnw("failed to persist sender identity", "peer_id", pkg.SenderID, "error", err)
	}

	// The bundled first message is persisted up front so it shows in the
	// replayed history once the session connects.
	if pkg.InitialMessage != "" {
		message := domain.ChatMessage{
			Text:       pkg.InitialMessage,
			Timestamp:  utils.FormatTimestamp(utils.Now()),
			Sender:     pkg.SenderID,
			SenderName: pkg.SenderDisplayName,
		}
		if err := m.history.Append(ctx, pkg.SenderID, message); err != nil {
			m.logger.Warnw("failed to persist bundled first message", "peer_id", pkg.SenderID, "error", err)
			m.publishPersistenceWarning(err)
		}
	}

	sess := &session{
		state:  domain.StateAwaitingOffer,
		role:   domain.RoleResponder,
		peerID: pkg.SenderID,
	}

	transport, err := m.factory.NewPeerTransport(m.callbacksFor(sess))
	if err != nil {
		return fmt.Errorf("failed to allocate connection: %w", err)
	}
	sess.transport = transport
	m.current = sess

	if err := transport.StartAnswer(ctx, pkg.OfferSDP); err != nil {
		m.teardownLocked(sess)
		return fmt.Errorf("failed to process offer: %w", err)
	}

	m.metrics.SessionStarted(domain.RoleResponder)
	m.publish(domain.Event{Type: domain.EventStateChanged, Payload: m.infoLocked()})
	m.logger.Infow("incoming offer accepted", "peer_id", pkg.SenderID)
	return nil
}

// SubmitAnswer feeds the peer's pasted answer into the pending initiator
// connection. Parse failures leave the session untouched.
func (m *SessionManager) SubmitAnswer(ctx context.Context, rawAnswer string) error {
	answer, err := signaling.DecodeAnswer(rawAnswer)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.ErrNoSession
	}
	if m.current.role != domain.RoleInitiator || m.current.state != domain.StateAwaitingAnswer {
		return domain.ErrInvalidSessionState
	}

	if err := m.current.transport.ApplyAnswer(ctx, answer); err != nil {
		return fmt.Errorf("failed to apply answer: %w", err)
	}
	// Connected arrives asynchronously via the transport callback.
	return nil
}

// AddRemoteCandidate feeds a manually pasted ICE candidate into the pending
// connection. Defensive: not needed under bundled signaling.
func (m *SessionManager) AddRemoteCandidate(ctx context.Context, rawCandidate string) error {
	candidate, err := signaling.DecodeCandidate(rawCandidate)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return domain.ErrNoSession
	}
	return m.current.transport.AddRemoteCandidate(candidate)
}

// SendText sends a plain chat message and persists it under the peer's log.
// Persistence is best effort: a failed write warns but does not unsend.
func (m *SessionManager) SendText(ctx context.Context, text string) error {
	if err := validation.ValidateMessageText(text); err != nil {
		return err
	}

	profile, err := m.profiles.LoadProfile(ctx)
	if err != nil {
		return domain.ErrNoProfile
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.state != domain.StateConnected {
		return domain.ErrNotConnected
	}

	payload := protocol.EncodeText(text)
	if err := m.current.transport.Send(payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	m.metrics.MessageSent(len(payload))

	message := domain.ChatMessage{
		Text:       text,
		Timestamp:  utils.FormatTimestamp(utils.Now()),
		Sender:     profile.UserID,
		SenderName: profile.DisplayName,
	}
	if err := m.history.Append(ctx, m.current.peerID, message); err != nil {
		m.logger.Warnw("failed to persist sent message", "peer_id", m.current.peerID, "error", err)
		m.publishPersistenceWarning(err)
	}
	return nil
}

// SendMedia validates, encodes, and sends a local file whole over the open
// channel. Only the text placeholder is persisted.
func (m *SessionManager) SendMedia(ctx context.Context, kind domain.MediaKind, filename string, data []byte) error {
	if utils.IsEmpty(filename) {
		return fmt.Errorf("filename is required")
	}

	profile, err := m.profiles.LoadProfile(ctx)
	if err != nil {
		return domain.ErrNoProfile
	}

	// Size is checked before the lock and before any transfer attempt.
	dataURL, err := m.media.EncodePayload(kind, filename, data)
	if err != nil {
		return err
	}

	payload, err := protocol.EncodeMedia(kind, dataURL, filename)
	if err != nil {
		return fmt.Errorf("failed to encode media message: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.current.state != domain.StateConnected {
		return domain.ErrNotConnected
	}

	if err := m.current.transport.Send(payload); err != nil {
		return fmt.Errorf("failed to send media: %w", err)
	}
	m.metrics.MediaTransferred(kind, len(data))

	message := domain.ChatMessage{
		Text:       domain.MediaPlaceholder(kind, filename),
		Timestamp:  utils.FormatTimestamp(utils.Now()),
		Sender:     profile.UserID,
		SenderName: profile.DisplayName,
	}
	if err := m.history.Append(ctx, m.current.peerID, message); err != nil {
		m.logger.Warnw("failed to persist media placeholder", "peer_id", m.current.peerID, "error", err)
		m.publishPersistenceWarning(err)
	}
	return nil
}

// Disconnect tears the session down to Idle. Calling it while already Idle
// is a no-op.
func (m *SessionManager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	m.teardownLocked(m.current)
	return nil
}

// Info returns a read-only snapshot of the session slot.
func (m *SessionManager) Info() domain.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.infoLocked()
}

// Subscribe registers a UI event listener. The returned cancel function must
// be called to release the channel.
func (m *SessionManager) Subscribe() (<-chan domain.Event, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan domain.Event, 64)
	m.subscribers[id] = ch

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if existing, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// callbacksFor builds transport callbacks bound to one session. Handlers
// ignore callbacks from superseded sessions: a late event from a torn-down
// transport must not touch the current slot.
func (m *SessionManager) callbacksFor(sess *session) ports.TransportCallbacks {
	return ports.TransportCallbacks{
		OnLocalDescription: func(desc webrtc.SessionDescription) {
			m.handleLocalDescription(sess, desc)
		},
		OnCandidate: func(candidate webrtc.ICECandidateInit) {
			m.handleCandidate(sess, candidate)
		},
		OnConnected: func() {
			m.handleConnected(sess)
		},
		OnData: func(payload []byte) {
			m.handleData(sess, payload)
		},
		OnClosed: func() {
			m.handleClosed(sess)
		},
		OnError: func(err error, fatal bool) {
			m.handleError(sess, err, fatal)
		},
	}
}

func (m *SessionManager) handleLocalDescription(sess *session, desc webrtc.SessionDescription) {
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != sess {
		return
	}

	switch {
	case sess.role == domain.RoleInitiator && desc.Type == webrtc.SDPTypeOffer:
		profile, err := m.profiles.LoadProfile(ctx)
		if err != nil {
			m.logger.Errorw("profile disappeared during handshake", "error", err)
			m.teardownLocked(sess)
			return
		}

		raw, err := signaling.EncodeOfferPackage(&signaling.OfferPackage{
			OfferSDP:          desc,
			SenderID:          profile.UserID,
			SenderDisplayName: profile.DisplayName,
			InitialMessage:    sess.firstMessage,
		})
		if err != nil {
			m.logger.Errorw("failed to encode offer package", "error", err)
			m.teardownLocked(sess)
			return
		}

		sess.localSignal = raw
		sess.state = domain.StateAwaitingAnswer
		m.publish(domain.Event{Type: domain.EventOfferReady, Payload: raw})
		m.publish(domain.Event{Type: domain.EventStateChanged, Payload: m.infoLocked()})
		m.logger.Infow("offer package ready", "peer_id", sess.peerID)

	case sess.role == domain.RoleResponder && desc.Type == webrtc.SDPTypeAnswer:
		raw, err := signaling.EncodeAnswer(desc)
		if err != nil {
			m.logger.Errorw("failed to encode answer", "error", err)
			m.teardownLocked(sess)
			return
		}

		sess.localSignal = raw
		m.publish(domain.Event{Type: domain.EventAnswerReady, Payload: raw})
		m.publish(domain.Event{Type: domain.EventStateChanged, Payload: m.infoLocked()})
		m.logger.Infow("answer ready", "peer_id", sess.peerID)

	default:
		m.logger.Warnw("unexpected local description",
			"role", sess.role,
			"type", desc.Type.String(),
		)
	}
}

// handleCandidate buffers candidates surfacing after the bundled description.
// Should not occur under bundled signaling but is handled defensively.
func (m *SessionManager) handleCandidate(sess *session, candidate webrtc.ICECandidateInit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != sess {
		return
	}

	raw, err := signaling.EncodeCandidate(candidate)
	if err != nil {
		m.logger.Warnw("failed to encode stray candidate", "error", err)
		return
	}
	sess.candidates = append(sess.candidates, raw)
	m.publish(domain.Event{Type: domain.EventICECandidate, Payload: raw})
}

func (m *SessionManager) handleConnected(sess *session) {
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != sess || sess.state == domain.StateConnected {
		return
	}

	sess.state = domain.StateConnected
	m.metrics.SessionConnected()

	// Identity exchange: the responder side only ever learned our raw ID
	// out-of-band, so announce the live display name in-band.
	profile, err := m.profiles.LoadProfile(ctx)
	if err == nil {
		if payload, encErr := protocol.EncodeProfileUpdate(profile.UserID, profile.DisplayName); encErr == nil {
			if sendErr := sess.transport.Send(payload); sendErr != nil {
				m.logger.Warnw("failed to send profile update", "error", sendErr)
			}
		}
	}

	// The initiator's queued first message becomes history only once the
	// session actually connects.
	if sess.role == domain.RoleInitiator && sess.firstMessage != "" && profile != nil {
		message := domain.ChatMessage{
			Text:       sess.firstMessage,
			Timestamp:  utils.FormatTimestamp(utils.Now()),
			Sender:     profile.UserID,
			SenderName: profile.DisplayName,
		}
		if err := m.history.Append(ctx, sess.peerID, message); err != nil {
			m.logger.Warnw("failed to persist first message", "peer_id", sess.peerID, "error", err)
			m.publishPersistenceWarning(err)
		}
		sess.firstMessage = ""
	}

	history, err := m.history.Load(ctx, sess.peerID)
	if err != nil {
		m.logger.Warnw("failed to load chat history", "peer_id", sess.peerID, "error", err)
		history = nil
	}

	m.publish(domain.Event{
		Type: domain.EventSessionConnected,
		Payload: map[string]interface{}{
			"peerId":   sess.peerID,
			"peerName": m.profiles.PreferredName(ctx, sess.peerID),
			"history":  history,
		},
	})
	m.publish(domain.Event{Type: domain.EventStateChanged, Payload: m.infoLocked()})
	m.logger.Infow("session connected", "peer_id", sess.peerID)
}

// handleData dispatches one inbound payload. Recognized tagged payloads are
// protocol messages; everything else is chat text persisted exactly once.
func (m *SessionManager) handleData(sess *session, payload []byte) {
	ctx := context.Background()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != sess {
		return
	}

	m.metrics.MessageReceived(len(payload))
	msg := protocol.Decode(payload)

	switch msg.Kind {
	case protocol.KindProfileUpdate:
		// Identity metadata only. Never persisted to chat history.
		if err := m.profiles.SavePeerIdentity(ctx, msg.ProfileUpdate.UserID, msg.ProfileUpdate.DisplayName); err != nil {
			m.logger.Warnw("failed to persist peer profile update", "error", err)
		}
		m.publish(domain.Event{
			Type: domain.EventPeerProfileUpdated,
			Payload: map[string]interface{}{
				"peerId":      msg.ProfileUpdate.UserID,
				"displayName": msg.ProfileUpdate.DisplayName,
			},
		})

	case protocol.KindMedia:
		kind := msg.Media.MediaKind()
		m.metrics.MediaTransferred(kind, len(msg.Media.DataURL))

		// The binary payload reaches the UI for inline rendering but only
		// the placeholder goes to history.
		m.publish(domain.Event{
			Type: domain.EventMediaReceived,
			Payload: domain.MediaPayload{
				Kind:     kind,
				Filename: msg.Media.Filename,
				DataURL:  msg.Media.DataURL,
				Sender:   sess.peerID,
			},
		})
		m.persistInbound(ctx, sess, domain.MediaPlaceholder(kind, msg.Media.Filename))

	default:
		m.persistInbound(ctx, sess, msg.Text)
	}
}

func (m *SessionManager) persistInbound(ctx context.Context, sess *session, text string) {
	message := domain.ChatMessage{
		Text:       text,
		Timestamp:  utils.FormatTimestamp(utils.Now()),
		Sender:     sess.peerID,
		SenderName: m.profiles.PreferredName(ctx, sess.peerID),
	}
	if err := m.history.Append(ctx, sess.peerID, message); err != nil {
		m.logger.Warnw("failed to persist received message", "peer_id", sess.peerID, "error", err)
		m.publishPersistenceWarning(err)
	}
	m.publish(domain.Event{Type: domain.EventMessageReceived, Payload: message})
}

func (m *SessionManager) handleClosed(sess *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != sess {
		return
	}
	m.logger.Infow("transport closed", "peer_id", sess.peerID)
	m.teardownLocked(sess)
}

func (m *SessionManager) handleError(sess *session, err error, fatal bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != sess {
		return
	}

	m.publish(domain.Event{
		Type: domain.EventSessionError,
		Payload: map[string]interface{}{
			"error": err.Error(),
			"fatal": fatal,
		},
	})

	if fatal {
		m.logger.Errorw("fatal transport error", "peer_id", sess.peerID, "error", err)
		m.teardownLocked(sess)
	} else {
		m.logger.Warnw("transport error", "peer_id", sess.peerID, "error", err)
	}
}

// teardownLocked destroys the slot and resets to Idle. Safe at any state.
func (m *SessionManager) teardownLocked(sess *session) {
	if m.current != sess {
		return
	}

	if sess.transport != nil {
		if err := sess.transport.Close(); err != nil {
			m.logger.Debugw("transport close", "error", err)
		}
	}
	sess.state = domain.StateClosed
	m.current = nil
	m.metrics.SessionClosed()

	m.publish(domain.Event{Type: domain.EventSessionClosed, Payload: map[string]interface{}{
		"peerId": sess.peerID,
		"state":  sess.state,
	}})
	m.publish(domain.Event{Type: domain.EventStateChanged, Payload: m.infoLocked()})
}

func (m *SessionManager) infoLocked() domain.SessionInfo {
	if m.current == nil {
		return domain.SessionInfo{State: domain.StateIdle}
	}

	candidates := make([]string, len(m.current.candidates))
	copy(candidates, m.current.candidates)

	return domain.SessionInfo{
		State:             m.current.state,
		Role:              m.current.role,
		PeerID:            m.current.peerID,
		PeerName:          m.profiles.PreferredName(context.Background(), m.current.peerID),
		LocalSignal:       m.current.localSignal,
		PendingCandidates: candidates,
	}
}

func (m *SessionManager) publishPersistenceWarning(err error) {
	m.publish(domain.Event{
		Type: domain.EventSessionError,
		Payload: map[string]interface{}{
			"error": fmt.Sprintf("message could not be saved: %v", err),
			"fatal": false,
		},
	})
}

// publish fans an event out to all subscribers without blocking: a stalled
// UI drops events rather than stalling the session.
func (m *SessionManager) publish(event domain.Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for id, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
			m.logger.Warnw("dropping event for slow subscriber", "subscriber", id, "event", event.Type)
		}
	}
}
