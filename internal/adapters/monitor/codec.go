package monitor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opengolfcoach/bridge/internal/domain/model"
)

// Response codes of the launch monitor protocol.
const (
	codeShotAck   = 200
	codeHandshake = 201
	codeProbe     = 202
)

// MessageKind tags a decoded inbound message.
type MessageKind int

// Inbound message kinds. Anything that does not decode to one of these is a
// protocol error.
const (
	KindShot MessageKind = iota
	KindHeartbeat
)

// envelope is the wire shape of inbound monitor messages. Pointer fields
// distinguish absent from zero so required-field validation is strict.
type envelope struct {
	DeviceID        string           `json:"DeviceID"`
	Units           string           `json:"Units"`
	ShotNumber      int              `json:"ShotNumber"`
	APIVersion      string           `json:"APIversion"`
	BallData        *ballData        `json:"BallData"`
	ClubData        *clubData        `json:"ClubData"`
	ShotDataOptions *shotDataOptions `json:"ShotDataOptions"`
}

type ballData struct {
	Speed     *float64 `json:"Speed"`
	VLA       *float64 `json:"VLA"`
	HLA       *float64 `json:"HLA"`
	TotalSpin *float64 `json:"TotalSpin"`
	SpinAxis  *float64 `json:"SpinAxis"`
	BackSpin  *float64 `json:"BackSpin"`
	SideSpin  *float64 `json:"SideSpin"`
}

type clubData struct {
	Speed         *float64 `json:"Speed"`
	Path          *float64 `json:"Path"`
	FaceToTarget  *float64 `json:"FaceToTarget"`
	AngleOfAttack *float64 `json:"AngleOfAttack"`
}

type shotDataOptions struct {
	ContainsBallData     *bool `json:"ContainsBallData"`
	ContainsClubData     *bool `json:"ContainsClubData"`
	LaunchMonitorIsReady *bool `json:"LaunchMonitorIsReady"`
	IsHeartBeat          *bool `json:"IsHeartBeat"`
}

// response is the wire shape of outbound acknowledgements.
type response struct {
	Code    int    `json:"Code"`
	GameID  string `json:"GameId,omitempty"`
	Message string `json:"Message,omitempty"`
}

// DecodeMessage validates one line of the monitor protocol and, for shot
// messages, produces the transient raw frame. Frames missing required ball
// fields are rejected as ErrProtocol rather than best-effort parsed.
func DecodeMessage(line []byte) (*model.RawShotFrame, MessageKind, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, 0, fmt.Errorf("%w: invalid JSON: %v", ErrProtocol, err)
	}

	if opts := env.ShotDataOptions; opts != nil {
		if isTrue(opts.IsHeartBeat) {
			return nil, KindHeartbeat, nil
		}
		// A ready signal without ball data is liveness, not a shot.
		if isTrue(opts.LaunchMonitorIsReady) && !isTrue(opts.ContainsBallData) && env.BallData == nil {
			return nil, KindHeartbeat, nil
		}
	}

	ball := env.BallData
	if ball == nil {
		return nil, 0, fmt.Errorf("%w: message carries no ball data", ErrProtocol)
	}
	switch {
	case ball.Speed == nil:
		return nil, 0, fmt.Errorf("%w: BallData.Speed missing", ErrProtocol)
	case ball.VLA == nil:
		return nil, 0, fmt.Errorf("%w: BallData.VLA missing", ErrProtocol)
	case ball.HLA == nil:
		return nil, 0, fmt.Errorf("%w: BallData.HLA missing", ErrProtocol)
	case ball.TotalSpin == nil:
		return nil, 0, fmt.Errorf("%w: BallData.TotalSpin missing", ErrProtocol)
	case ball.SpinAxis == nil:
		return nil, 0, fmt.Errorf("%w: BallData.SpinAxis missing", ErrProtocol)
	}

	frame := &model.RawShotFrame{
		BallSpeed:  *ball.Speed,
		VLA:        *ball.VLA,
		HLA:        *ball.HLA,
		TotalSpin:  *ball.TotalSpin,
		SpinAxis:   *ball.SpinAxis,
		Backspin:   ball.BackSpin,
		Sidespin:   ball.SideSpin,
		Imperial:   imperialUnits(env.Units),
		DeviceID:   env.DeviceID,
		ShotNumber: env.ShotNumber,
	}
	if club := env.ClubData; club != nil {
		frame.ClubSpeed = club.Speed
		frame.ClubPath = club.Path
		frame.FaceToTarget = club.FaceToTarget
		frame.AngleOfAttack = club.AngleOfAttack
	}
	return frame, KindShot, nil
}

// imperialUnits reports whether the frame's speeds are mph. The protocol
// defaults to imperial when the field is absent.
func imperialUnits(units string) bool {
	if units == "" {
		return true
	}
	return strings.Contains(units, "Yards") || strings.Contains(units, "MPH")
}

func isTrue(p *bool) bool {
	return p != nil && *p
}

// EncodeHandshake renders the greeting sent on connect.
func EncodeHandshake(gameID string) []byte {
	return encodeResponse(response{Code: codeHandshake, GameID: gameID})
}

// EncodeShotAck renders the acknowledgement for a received message.
func EncodeShotAck() []byte {
	return encodeResponse(response{Code: codeShotAck, Message: "shot received"})
}

// EncodeProbe renders the keepalive probe sent when the session goes idle.
func EncodeProbe() []byte {
	return encodeResponse(response{Code: codeProbe, Message: "keepalive"})
}

func encodeResponse(r response) []byte {
	payload, _ := json.Marshal(r)
	return append(payload, '\n')
}
