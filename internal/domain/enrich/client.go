package enrich

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/opengolfcoach/bridge/internal/domain/model"
)

// maxResponseLine bounds one calculator reply on the wire.
const maxResponseLine = 64 * 1024

// calculatorRequest is the canonical shot JSON the calculator accepts.
type calculatorRequest struct {
	BallSpeedMPS float64  `json:"ball_speed_meters_per_second"`
	VLADeg       float64  `json:"vertical_launch_angle_degrees"`
	HLADeg       float64  `json:"horizontal_launch_angle_degrees"`
	TotalSpinRPM float64  `json:"total_spin_rpm"`
	SpinAxisDeg  float64  `json:"spin_axis_degrees"`
	BackspinRPM  *float64 `json:"backspin_rpm,omitempty"`
	SidespinRPM  *float64 `json:"sidespin_rpm,omitempty"`
	ClubSpeedMPS *float64 `json:"club_speed_meters_per_second,omitempty"`
	ClubPathDeg  *float64 `json:"club_path_degrees,omitempty"`
	FaceDeg      *float64 `json:"face_to_target_degrees,omitempty"`
	AttackDeg    *float64 `json:"angle_of_attack_degrees,omitempty"`
}

// calculatorResponse mirrors the calculator's reply. Only the SI fields are
// consumed; display conversion happens in the mapper.
type calculatorResponse struct {
	OpenGolfCoach *struct {
		CarryM          float64 `json:"carry_distance_meters"`
		TotalM          float64 `json:"total_distance_meters"`
		OfflineM        float64 `json:"offline_distance_meters"`
		PeakHeightM     float64 `json:"peak_height_meters"`
		HangTimeS       float64 `json:"hang_time_seconds"`
		DescentDeg      float64 `json:"descent_angle_degrees"`
		BackspinRPM     float64 `json:"backspin_rpm"`
		SidespinRPM     float64 `json:"sidespin_rpm"`
		ShotName        string  `json:"shot_name"`
		ShotRank        string  `json:"shot_rank"`
		EstClubSpeedMPS float64 `json:"estimated_club_speed_meters_per_second"`
		EstSmashFactor  float64 `json:"estimated_smash_factor"`
		EstAttackDeg    float64 `json:"estimated_attack_angle_degrees"`
	} `json:"open_golf_coach"`
}

// TCPCalculator speaks the calculator's newline-delimited JSON protocol.
// Each call opens a fresh connection, like the reference client: the
// calculator treats one request-response pair as one session.
type TCPCalculator struct {
	addr   string
	dialer net.Dialer
}

// NewTCPCalculator creates a client for the calculator at addr.
func NewTCPCalculator(addr string) *TCPCalculator {
	return &TCPCalculator{addr: addr}
}

// Calculate sends rec and parses the enriched reply. The ctx deadline bounds
// dialing, writing and reading.
func (c *TCPCalculator) Calculate(ctx context.Context, rec model.CanonicalShotRecord) (*model.DerivedMetrics, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrCalculator, c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCalculator, err)
		}
	} else {
		_ = conn.SetDeadline(time.Now().Add(defaultTimeout))
	}

	req := calculatorRequest{
		BallSpeedMPS: rec.BallSpeedMPS,
		VLADeg:       rec.VLADeg,
		HLADeg:       rec.HLADeg,
		TotalSpinRPM: rec.TotalSpinRPM,
		SpinAxisDeg:  rec.SpinAxisDeg,
		BackspinRPM:  rec.BackspinRPM,
		SidespinRPM:  rec.SidespinRPM,
		ClubSpeedMPS: rec.ClubSpeedMPS,
		ClubPathDeg:  rec.ClubPathDeg,
		FaceDeg:      rec.FaceToTargetDeg,
		AttackDeg:    rec.AngleOfAttackDeg,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrCalculator, err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("%w: send: %v", ErrCalculator, err)
	}

	reader := bufio.NewReaderSize(conn, maxResponseLine)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("%w: read: %v", ErrCalculator, err)
	}

	var resp calculatorResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrCalculator, err)
	}
	if resp.OpenGolfCoach == nil {
		return nil, fmt.Errorf("%w: response missing derived values", ErrCalculator)
	}

	d := resp.OpenGolfCoach
	return &model.DerivedMetrics{
		CarryM:          d.CarryM,
		TotalM:          d.TotalM,
		OfflineM:        d.OfflineM,
		PeakHeightM:     d.PeakHeightM,
		HangTimeS:       d.HangTimeS,
		DescentDeg:      d.DescentDeg,
		BackspinRPM:     d.BackspinRPM,
		SidespinRPM:     d.SidespinRPM,
		ShotName:        d.ShotName,
		ShotRank:        d.ShotRank,
		EstClubSpeedMPS: d.EstClubSpeedMPS,
		EstSmashFactor:  d.EstSmashFactor,
		EstAttackDeg:    d.EstAttackDeg,
	}, nil
}
