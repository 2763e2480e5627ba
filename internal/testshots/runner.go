package testshots

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/logger"
)

// Default runner configuration constants.
const (
	defaultShotCount = 5
	defaultInterval  = 2 * time.Second
	defaultTimeout   = 5 * time.Second
)

// Config controls a replay run.
type Config struct {
	// Addr is the bridge listener address, e.g. "localhost:921".
	Addr string

	// NumShots is how many shots to send.
	NumShots int

	// Interval is the pause between shots.
	Interval time.Duration

	// Timeout bounds each network operation.
	Timeout time.Duration

	// Metric sends frames in SI units instead of the protocol's default
	// imperial units.
	Metric bool

	// Reference replays the documented contract example instead of
	// random shots.
	Reference bool

	// Heartbeats interleaves a heartbeat before every shot.
	Heartbeats bool
}

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:921"
	}
	if c.NumShots <= 0 {
		c.NumShots = defaultShotCount
	}
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// wireFrame mirrors the monitor protocol's shot message.
type wireFrame struct {
	DeviceID        string       `json:"DeviceID"`
	Units           string       `json:"Units"`
	ShotNumber      int          `json:"ShotNumber"`
	BallData        wireBall     `json:"BallData"`
	ShotDataOptions wireShotOpts `json:"ShotDataOptions"`
}

type wireBall struct {
	Speed     float64 `json:"Speed"`
	VLA       float64 `json:"VLA"`
	HLA       float64 `json:"HLA"`
	TotalSpin float64 `json:"TotalSpin"`
	SpinAxis  float64 `json:"SpinAxis"`
}

type wireShotOpts struct {
	ContainsBallData     bool `json:"ContainsBallData"`
	LaunchMonitorIsReady bool `json:"LaunchMonitorIsReady"`
	IsHeartBeat          bool `json:"IsHeartBeat"`
}

type wireAck struct {
	Code   int    `json:"Code"`
	GameID string `json:"GameId"`
}

// Runner replays synthetic shots into a running bridge over the monitor
// protocol, exercising the exact path real hardware takes.
type Runner struct {
	cfg    Config
	logger logger.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg Config) *Runner {
	cfg.applyDefaults()
	return &Runner{
		cfg:    cfg,
		logger: logger.Get().Named("testshots"),
	}
}

// Run connects, completes the handshake, and sends the configured shots.
func (r *Runner) Run(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", r.cfg.Addr)
	if err != nil {
		return fmt.Errorf("connecting to bridge: %w", err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	greeting, err := r.readAck(conn, reader)
	if err != nil {
		return fmt.Errorf("reading greeting: %w", err)
	}
	if greeting.Code != 201 {
		return fmt.Errorf("unexpected greeting code %d", greeting.Code)
	}
	r.logger.Info(ctx, "connected to bridge",
		logger.String("addr", r.cfg.Addr),
		logger.String("game", greeting.GameID),
	)

	for i := 1; i <= r.cfg.NumShots; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.cfg.Heartbeats {
			if err := r.send(conn, r.heartbeatFrame()); err != nil {
				return fmt.Errorf("sending heartbeat: %w", err)
			}
			if _, err := r.readAck(conn, reader); err != nil {
				return fmt.Errorf("reading heartbeat ack: %w", err)
			}
		}

		shot := RandomShot()
		if r.cfg.Reference {
			shot = ReferenceShot()
		}
		if err := r.send(conn, r.shotFrame(shot, i)); err != nil {
			return fmt.Errorf("sending shot %d: %w", i, err)
		}
		ack, err := r.readAck(conn, reader)
		if err != nil {
			return fmt.Errorf("reading shot %d ack: %w", i, err)
		}
		r.logger.Info(ctx, "shot acknowledged",
			logger.Int("shot", i),
			logger.Int("code", ack.Code),
			logger.Float64("ball_speed_mps", shot.BallSpeedMPS),
		)

		if i < r.cfg.NumShots {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.Interval):
			}
		}
	}

	r.logger.Info(ctx, "replay complete", logger.Int("shots", r.cfg.NumShots))
	return nil
}

func (r *Runner) shotFrame(shot Shot, n int) wireFrame {
	frame := wireFrame{
		DeviceID:   "testshots",
		ShotNumber: n,
		BallData: wireBall{
			Speed:     shot.BallSpeedMPS,
			VLA:       shot.VLADeg,
			HLA:       shot.HLADeg,
			TotalSpin: shot.TotalSpinRPM,
			SpinAxis:  shot.SpinAxisDeg,
		},
		ShotDataOptions: wireShotOpts{
			ContainsBallData:     true,
			LaunchMonitorIsReady: true,
		},
	}
	if r.cfg.Metric {
		frame.Units = "Meters"
	} else {
		frame.Units = "MPH"
		frame.BallData.Speed = shot.BallSpeedMPS * model.MPHPerMPS
	}
	return frame
}

func (r *Runner) heartbeatFrame() wireFrame {
	return wireFrame{
		DeviceID: "testshots",
		ShotDataOptions: wireShotOpts{
			LaunchMonitorIsReady: true,
			IsHeartBeat:          true,
		},
	}
}

func (r *Runner) send(conn net.Conn, frame wireFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	if err := conn.SetWriteDeadline(time.Now().Add(r.cfg.Timeout)); err != nil {
		return err
	}
	_, err = conn.Write(payload)
	return err
}

func (r *Runner) readAck(conn net.Conn, reader *bufio.Reader) (wireAck, error) {
	if err := conn.SetReadDeadline(time.Now().Add(r.cfg.Timeout)); err != nil {
		return wireAck{}, err
	}
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return wireAck{}, err
	}
	var ack wireAck
	if err := json.Unmarshal(line, &ack); err != nil {
		return wireAck{}, fmt.Errorf("invalid ack: %w", err)
	}
	return ack, nil
}
