package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"peerchat/internal/core/domain"
	"peerchat/internal/core/protocol"
	"peerchat/internal/core/signaling"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	localUserID = domain.UserID("aaaabbbbccccddddeeeeffff")
	peerUserID  = domain.UserID("111122223333444455556666")
)

type sessionFixture struct {
	manager  *SessionManager
	profiles *memProfileRepo
	peers    *memPeerRepo
	history  *memHistoryRepo
	factory  *fakeFactory
	events   <-chan domain.Event
	cancel   func()
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	profiles := &memProfileRepo{profile: &domain.UserProfile{
		UserID:      localUserID,
		DisplayName: "Alice",
		CreatedAt:   time.Now(),
	}}
	peers := newMemPeerRepo()
	history := newMemHistoryRepo()
	factory := &fakeFactory{}

	profileService := NewProfileService(profiles, peers, logger)
	mediaService := NewMediaService(DefaultMaxImageBytes, DefaultMaxVideoBytes)
	manager := NewSessionManager(profileService, history, mediaService, factory, nopMetrics{}, logger)

	events, cancel := manager.Subscribe()
	t.Cleanup(cancel)

	return &sessionFixture{
		manager:  manager,
		profiles: profiles,
		peers:    peers,
		history:  history,
		factory:  factory,
		events:   events,
		cancel:   cancel,
	}
}

// drainEvents collects every event currently buffered.
func (f *sessionFixture) drainEvents() []domain.Event {
	var out []domain.Event
	for {
		select {
		case event := <-f.events:
			out = append(out, event)
		default:
			return out
		}
	}
}

func (f *sessionFixture) eventOfType(t *testing.T, events []domain.Event, eventType domain.EventType) domain.Event {
	t.Helper()
	for _, event := range events {
		if event.Type == eventType {
			return event
		}
	}
	t.Fatalf("no %s event among %d events", eventType, len(events))
	return domain.Event{}
}

func testOfferSDP() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\n"}
}

func testAnswerSDP() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\no=- 2 2 IN IP4 0.0.0.0\r\n"}
}

func TestStartAsInitiator_ProducesOfferPackage(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	err := fixture.manager.StartAsInitiator(ctx, peerUserID, "hey there")
	require.NoError(t, err)

	transport := fixture.factory.last()
	require.NotNil(t, transport)
	assert.True(t, transport.offerStarted)
	assert.Equal(t, domain.StateInitiating, fixture.manager.Info().State)

	transport.callbacks.OnLocalDescription(testOfferSDP())

	info := fixture.manager.Info()
	assert.Equal(t, domain.StateAwaitingAnswer, info.State)
	assert.Equal(t, domain.RoleInitiator, info.Role)
	require.NotEmpty(t, info.LocalSignal)

	pkg, err := signaling.DecodeOfferPackage(info.LocalSignal)
	require.NoError(t, err)
	assert.Equal(t, localUserID, pkg.SenderID)
	assert.Equal(t, "Alice", pkg.SenderDisplayName)
	assert.Equal(t, "hey there", pkg.InitialMessage)
	assert.Equal(t, webrtc.SDPTypeOffer, pkg.OfferSDP.Type)

	events := fixture.drainEvents()
	offerEvent := fixture.eventOfType(t, events, domain.EventOfferReady)
	assert.Equal(t, info.LocalSignal, offerEvent.Payload)
}

func TestStartAsInitiator_RequiresProfile(t *testing.T) {
	fixture := newSessionFixture(t)
	fixture.profiles.profile = nil

	err := fixture.manager.StartAsInitiator(context.Background(), peerUserID, "")
	assert.ErrorIs(t, err, domain.ErrNoProfile)
	assert.Equal(t, domain.StateIdle, fixture.manager.Info().State)
}

func TestStartAsInitiator_RejectsSecondSession(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.manager.StartAsInitiator(ctx, peerUserID, ""))

	err := fixture.manager.StartAsInitiator(ctx, "777788889999000011112222", "")
	assert.ErrorIs(t, err, domain.ErrSessionActive)

	info := fixture.manager.Info()
	assert.Equal(t, peerUserID, info.PeerID)
}

func TestStartAsInitiator_RejectsSelfChat(t *testing.T) {
	fixture := newSessionFixture(t)

	err := fixture.manager.StartAsInitiator(context.Background(), localUserID, "")
	assert.Error(t, err)
	assert.Equal(t, domain.StateIdle, fixture.manager.Info().State)
}

func TestAcceptIncomingOffer_MalformedPackageLeavesIdle(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	for _, raw := range []string{
		"not json at all",
		`{"senderId":"111122223333444455556666"}`,
		`{"offerSdp":{"type":"offer","sdp":"v=0"},"senderDisplayName":"Bob"}`,
	} {
		err := fixture.manager.AcceptIncomingOffer(ctx, raw)
		assert.Error(t, err, "package %q should be rejected", raw)
	}

	assert.Equal(t, domain.StateIdle, fixture.manager.Info().State)
	assert.Nil(t, fixture.factory.last())
}

func TestAcceptIncomingOffer_RecordsSenderAndFirstMessage(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	raw, err := signaling.EncodeOfferPackage(&signaling.OfferPackage{
		OfferSDP:          testOfferSDP(),
		SenderID:          peerUserID,
		SenderDisplayName: "Bob",
		InitialMessage:    "hello from Bob",
	})
	require.NoError(t, err)

	require.NoError(t, fixture.manager.AcceptIncomingOffer(ctx, raw))

	// The sender identity and the bundled message are down before connect.
	identity, err := fixture.peers.GetByID(ctx, peerUserID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", identity.SharedDisplayName)

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello from Bob", messages[0].Text)
	assert.Equal(t, peerUserID, messages[0].Sender)

	info := fixture.manager.Info()
	assert.Equal(t, domain.StateAwaitingOffer, info.State)
	assert.Equal(t, domain.RoleResponder, info.Role)

	transport := fixture.factory.last()
	require.NotNil(t, transport)
	assert.True(t, transport.answerStarted)
	assert.Equal(t, webrtc.SDPTypeOffer, transport.remoteOffer.Type)
}

func TestResponder_AnswerReady(t *testing.T) {
	fixture := newSessionFixture(t)

	raw, err := signaling.EncodeOfferPackage(&signaling.OfferPackage{
		OfferSDP:          testOfferSDP(),
		SenderID:          peerUserID,
		SenderDisplayName: "Bob",
	})
	require.NoError(t, err)
	require.NoError(t, fixture.manager.AcceptIncomingOffer(context.Background(), raw))

	transport := fixture.factory.last()
	transport.callbacks.OnLocalDescription(testAnswerSDP())

	info := fixture.manager.Info()
	require.NotEmpty(t, info.LocalSignal)

	answer, err := signaling.DecodeAnswer(info.LocalSignal)
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, answer.Type)

	events := fixture.drainEvents()
	fixture.eventOfType(t, events, domain.EventAnswerReady)
}

func TestSubmitAnswer_OnlyValidAwaitingAnswer(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	rawAnswer, err := signaling.EncodeAnswer(testAnswerSDP())
	require.NoError(t, err)

	// No session at all.
	assert.ErrorIs(t, fixture.manager.SubmitAnswer(ctx, rawAnswer), domain.ErrNoSession)

	// Initiating but the offer is not out yet.
	require.NoError(t, fixture.manager.StartAsInitiator(ctx, peerUserID, ""))
	assert.ErrorIs(t, fixture.manager.SubmitAnswer(ctx, rawAnswer), domain.ErrInvalidSessionState)

	fixture.factory.last().callbacks.OnLocalDescription(testOfferSDP())
	require.NoError(t, fixture.manager.SubmitAnswer(ctx, rawAnswer))

	applied := fixture.factory.last().appliedAnswer
	require.NotNil(t, applied)
	assert.Equal(t, webrtc.SDPTypeAnswer, applied.Type)
}

func TestSubmitAnswer_MalformedRejectedWithoutStateChange(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.manager.StartAsInitiator(ctx, peerUserID, ""))
	fixture.factory.last().callbacks.OnLocalDescription(testOfferSDP())

	err := fixture.manager.SubmitAnswer(ctx, `{"type":"offer","sdp":"v=0"}`)
	assert.Error(t, err)
	assert.Equal(t, domain.StateAwaitingAnswer, fixture.manager.Info().State)
	assert.Nil(t, fixture.factory.last().appliedAnswer)
}

func TestConnected_SendsProfileUpdateAndReplaysHistory(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.manager.StartAsInitiator(ctx, peerUserID, "first!"))
	transport := fixture.factory.last()
	transport.callbacks.OnLocalDescription(testOfferSDP())
	fixture.drainEvents()

	transport.callbacks.OnConnected()

	info := fixture.manager.Info()
	assert.Equal(t, domain.StateConnected, info.State)

	// The first payload over the channel is our identity announcement.
	payloads := transport.sentPayloads()
	require.NotEmpty(t, payloads)
	decoded := protocol.Decode(payloads[0])
	require.Equal(t, protocol.KindProfileUpdate, decoded.Kind)
	assert.Equal(t, localUserID, decoded.ProfileUpdate.UserID)
	assert.Equal(t, "Alice", decoded.ProfileUpdate.DisplayName)

	// The queued first message is history now.
	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "first!", messages[0].Text)
	assert.Equal(t, localUserID, messages[0].Sender)

	events := fixture.drainEvents()
	connected := fixture.eventOfType(t, events, domain.EventSessionConnected)
	payload, ok := connected.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, peerUserID, payload["peerId"])
	history, ok := payload["history"].([]domain.ChatMessage)
	require.True(t, ok)
	assert.Len(t, history, 1)
}

func connectInitiator(t *testing.T, fixture *sessionFixture) *fakeTransport {
	t.Helper()
	require.NoError(t, fixture.manager.StartAsInitiator(context.Background(), peerUserID, ""))
	transport := fixture.factory.last()
	transport.callbacks.OnLocalDescription(testOfferSDP())
	transport.callbacks.OnConnected()
	fixture.drainEvents()
	return transport
}

func TestSendText_PersistsAndSends(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()
	transport := connectInitiator(t, fixture)

	require.NoError(t, fixture.manager.SendText(ctx, "hello"))

	payloads := transport.sentPayloads()
	// Index 0 is the profile announcement.
	require.Len(t, payloads, 2)
	assert.Equal(t, "hello", string(payloads[1]))

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Text)
	assert.Equal(t, localUserID, messages[0].Sender)
	assert.Equal(t, "Alice", messages[0].SenderName)
}

func TestSendText_RequiresConnection(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, fixture.manager.SendText(ctx, "hello"), domain.ErrNotConnected)

	require.NoError(t, fixture.manager.StartAsInitiator(ctx, peerUserID, ""))
	assert.ErrorIs(t, fixture.manager.SendText(ctx, "hello"), domain.ErrNotConnected)
}

func TestSendMedia_PersistsPlaceholderOnly(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()
	transport := connectInitiator(t, fixture)

	data := []byte{0x89, 0x50, 0x4e, 0x47}
	require.NoError(t, fixture.manager.SendMedia(ctx, domain.MediaImage, "photo.png", data))

	payloads := transport.sentPayloads()
	require.Len(t, payloads, 2)
	decoded := protocol.Decode(payloads[1])
	require.Equal(t, protocol.KindMedia, decoded.Kind)
	assert.Equal(t, "photo.png", decoded.Media.Filename)
	assert.Contains(t, decoded.Media.DataURL, "data:image/png;base64,")

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "[Media: Image - photo.png]", messages[0].Text)
	assert.NotContains(t, messages[0].Text, "base64")
}

func TestSendMedia_RejectsOversized(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()
	transport := connectInitiator(t, fixture)

	oversized := make([]byte, 6*1024*1024)
	err := fixture.manager.SendMedia(ctx, domain.MediaImage, "big.png", oversized)
	assert.ErrorIs(t, err, domain.ErrMediaTooLarge)

	// Nothing beyond the profile announcement went out.
	assert.Len(t, transport.sentPayloads(), 1)
}

func TestInboundText_PersistedWithPreferredName(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()
	transport := connectInitiator(t, fixture)

	profileService := NewProfileService(fixture.profiles, fixture.peers, zap.NewNop().Sugar())
	require.NoError(t, profileService.SavePeerIdentity(ctx, peerUserID, "Bob"))
	require.NoError(t, profileService.SetNickname(ctx, peerUserID, "Bobby"))

	transport.callbacks.OnData([]byte("hi Alice"))

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi Alice", messages[0].Text)
	assert.Equal(t, peerUserID, messages[0].Sender)
	assert.Equal(t, "Bobby", messages[0].SenderName)

	events := fixture.drainEvents()
	received := fixture.eventOfType(t, events, domain.EventMessageReceived)
	message, ok := received.Payload.(domain.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, "hi Alice", message.Text)
}

func TestInboundProfileUpdate_UpdatesPeerNotHistory(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()
	transport := connectInitiator(t, fixture)

	payload, err := protocol.EncodeProfileUpdate(peerUserID, "Robert")
	require.NoError(t, err)
	transport.callbacks.OnData(payload)

	identity, err := fixture.peers.GetByID(ctx, peerUserID)
	require.NoError(t, err)
	assert.Equal(t, "Robert", identity.SharedDisplayName)

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	events := fixture.drainEvents()
	fixture.eventOfType(t, events, domain.EventPeerProfileUpdated)
}

func TestInboundMedia_PlaceholderPersistedPayloadEmitted(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()
	transport := connectInitiator(t, fixture)

	payload, err := protocol.EncodeMedia(domain.MediaVideo, "data:video/mp4;base64,AAAA", "clip.mp4")
	require.NoError(t, err)
	transport.callbacks.OnData(payload)

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "[Media: Video - clip.mp4]", messages[0].Text)

	events := fixture.drainEvents()
	media := fixture.eventOfType(t, events, domain.EventMediaReceived)
	mediaPayload, ok := media.Payload.(domain.MediaPayload)
	require.True(t, ok)
	assert.Equal(t, domain.MediaVideo, mediaPayload.Kind)
	assert.Equal(t, "clip.mp4", mediaPayload.Filename)
	assert.Equal(t, "data:video/mp4;base64,AAAA", mediaPayload.DataURL)
}

func TestInboundUnknownStructured_TreatedAsText(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()
	transport := connectInitiator(t, fixture)

	raw := `{"type":"something-else","text":"sneaky"}`
	transport.callbacks.OnData([]byte(raw))

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	// The payload lands verbatim; no field extraction from unknown shapes.
	assert.Equal(t, raw, messages[0].Text)

	var check map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(messages[0].Text), &check))
}

func TestPersistenceFailure_WarnsButKeepsMessageFlowing(t *testing.T) {
	fixture := newSessionFixture(t)
	transport := connectInitiator(t, fixture)

	fixture.history.appendErr = errors.New("disk full")
	transport.callbacks.OnData([]byte("still delivered"))

	events := fixture.drainEvents()
	received := fixture.eventOfType(t, events, domain.EventMessageReceived)
	message := received.Payload.(domain.ChatMessage)
	assert.Equal(t, "still delivered", message.Text)

	warning := fixture.eventOfType(t, events, domain.EventSessionError)
	payload := warning.Payload.(map[string]interface{})
	assert.Equal(t, false, payload["fatal"])
}

func TestDisconnect_Idempotent(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	// Idle: no-op.
	require.NoError(t, fixture.manager.Disconnect(ctx))

	transport := connectInitiator(t, fixture)
	require.NoError(t, fixture.manager.Disconnect(ctx))
	assert.True(t, transport.closed)
	assert.Equal(t, domain.StateIdle, fixture.manager.Info().State)

	require.NoError(t, fixture.manager.Disconnect(ctx))
	assert.Equal(t, domain.StateIdle, fixture.manager.Info().State)
}

func TestDisconnect_ReportsClosedThenIdle(t *testing.T) {
	fixture := newSessionFixture(t)
	connectInitiator(t, fixture)
	fixture.drainEvents()

	require.NoError(t, fixture.manager.Disconnect(context.Background()))

	events := fixture.drainEvents()
	closed := fixture.eventOfType(t, events, domain.EventSessionClosed)
	payload, ok := closed.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, domain.StateClosed, payload["state"])
	assert.Equal(t, peerUserID, payload["peerId"])

	changed := fixture.eventOfType(t, events, domain.EventStateChanged)
	info, ok := changed.Payload.(domain.SessionInfo)
	require.True(t, ok)
	assert.Equal(t, domain.StateIdle, info.State)
}

func TestFatalTransportError_TearsDown(t *testing.T) {
	fixture := newSessionFixture(t)
	transport := connectInitiator(t, fixture)

	transport.callbacks.OnError(errors.New("ice failed"), true)

	assert.Equal(t, domain.StateIdle, fixture.manager.Info().State)
	assert.True(t, transport.closed)

	events := fixture.drainEvents()
	fixture.eventOfType(t, events, domain.EventSessionError)
	fixture.eventOfType(t, events, domain.EventSessionClosed)
}

func TestNonFatalTransportError_KeepsSession(t *testing.T) {
	fixture := newSessionFixture(t)
	transport := connectInitiator(t, fixture)

	transport.callbacks.OnError(errors.New("transient"), false)

	assert.Equal(t, domain.StateConnected, fixture.manager.Info().State)
	assert.False(t, transport.closed)
}

func TestStaleCallbacks_Ignored(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	stale := connectInitiator(t, fixture)
	require.NoError(t, fixture.manager.Disconnect(ctx))
	fixture.drainEvents()

	// Callbacks from the torn-down transport must not touch the fresh slot.
	require.NoError(t, fixture.manager.StartAsInitiator(ctx, peerUserID, ""))
	stale.callbacks.OnClosed()
	stale.callbacks.OnData([]byte("ghost"))

	assert.Equal(t, domain.StateInitiating, fixture.manager.Info().State)

	messages, err := fixture.history.Load(ctx, peerUserID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRemoteClose_ResetsToIdle(t *testing.T) {
	fixture := newSessionFixture(t)
	transport := connectInitiator(t, fixture)

	transport.callbacks.OnClosed()

	assert.Equal(t, domain.StateIdle, fixture.manager.Info().State)
	events := fixture.drainEvents()
	fixture.eventOfType(t, events, domain.EventSessionClosed)
}

func TestStrayCandidate_BufferedAndEmitted(t *testing.T) {
	fixture := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.manager.StartAsInitiator(ctx, peerUserID, ""))
	transport := fixture.factory.last()

	transport.callbacks.OnCandidate(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"})

	info := fixture.manager.Info()
	require.Len(t, info.PendingCandidates, 1)

	events := fixture.drainEvents()
	fixture.eventOfType(t, events, domain.EventICECandidate)
}
