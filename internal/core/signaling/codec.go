// Package signaling serializes the copy-pasteable payloads exchanged
// out-of-band during the manual handshake: the offer package, the raw
// answer, and raw ICE candidates.
package signaling

import (
	"encoding/json"
	"fmt"

	"peerchat/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// OfferPackage bundles the initiator's session description with its identity
// and an optional first chat message, so a single copy/paste carries
// everything the responder needs.
type OfferPackage struct {
	OfferSDP          webrtc.SessionDescription `json:"offerSdp"`
	SenderID          domain.UserID             `json:"senderId"`
	SenderDisplayName string                    `json:"senderDisplayName"`
	InitialMessage    string                    `json:"initialMessage,omitempty"`
}

// EncodeOfferPackage serializes an offer package to the JSON text the user
// hands to their peer.
func EncodeOfferPackage(pkg *OfferPackage) (string, error) {
	if pkg.OfferSDP.Type != webrtc.SDPTypeOffer || pkg.OfferSDP.SDP == "" {
		return "", fmt.Errorf("offer package requires an offer description")
	}
	if pkg.SenderID == "" {
		return "", fmt.Errorf("offer package requires senderId")
	}
	if pkg.SenderDisplayName == "" {
		return "", fmt.Errorf("offer package requires senderDisplayName")
	}

	data, err := json.Marshal(pkg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal offer package: %w", err)
	}
	return string(data), nil
}

// DecodeOfferPackage parses and validates an incoming offer package. All
// required fields must be present; a partial package is rejected whole.
func DecodeOfferPackage(raw string) (*OfferPackage, error) {
	var pkg OfferPackage
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		return nil, fmt.Errorf("offer package is not valid JSON: %w", err)
	}

	if pkg.OfferSDP.SDP == "" {
		return nil, fmt.Errorf("offer package is missing offerSdp")
	}
	if pkg.OfferSDP.Type != webrtc.SDPTypeOffer {
		return nil, fmt.Errorf("offerSdp is not an offer (got %q)", pkg.OfferSDP.Type)
	}
	if pkg.SenderID == "" {
		return nil, fmt.Errorf("offer package is missing senderId")
	}
	if pkg.SenderDisplayName == "" {
		return nil, fmt.Errorf("offer package is missing senderDisplayName")
	}

	return &pkg, nil
}

// EncodeAnswer serializes an answer description. Answers travel raw, without
// package wrapping: the initiator already knows who it is talking to.
func EncodeAnswer(desc webrtc.SessionDescription) (string, error) {
	if desc.Type != webrtc.SDPTypeAnswer || desc.SDP == "" {
		return "", fmt.Errorf("not an answer description")
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal answer: %w", err)
	}
	return string(data), nil
}

// DecodeAnswer parses and validates a raw answer description.
func DecodeAnswer(raw string) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("answer is not valid JSON: %w", err)
	}
	if desc.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("answer is missing sdp")
	}
	if desc.Type != webrtc.SDPTypeAnswer {
		return webrtc.SessionDescription{}, fmt.Errorf("description is not an answer (got %q)", desc.Type)
	}
	return desc, nil
}

// EncodeCandidate serializes an ICE candidate for the manual exchange. Only
// relevant if a peer signals incrementally despite the bundled workflow.
func EncodeCandidate(candidate webrtc.ICECandidateInit) (string, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return "", fmt.Errorf("failed to marshal candidate: %w", err)
	}
	return string(data), nil
}

// DecodeCandidate parses a raw ICE candidate object.
func DecodeCandidate(raw string) (webrtc.ICECandidateInit, error) {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(raw), &candidate); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("candidate is not valid JSON: %w", err)
	}
	if candidate.Candidate == "" {
		return webrtc.ICECandidateInit{}, fmt.Errorf("candidate is missing candidate field")
	}
	return candidate, nil
}
