package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/logger"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

const (
	// textInputKind is the OBS input kind created for each data point.
	textInputKind = "text_gdiplus_v3"

	defaultSourcePrefix   = "OGC_"
	defaultDialTimeout    = 5 * time.Second
	defaultRequestTimeout = 5 * time.Second
	defaultBackoffMin     = 1 * time.Second
	defaultBackoffMax     = 30 * time.Second
)

// Option configures a Publisher.
type Option func(*Publisher)

// WithPassword sets the obs-websocket authentication password.
func WithPassword(password string) Option {
	return func(p *Publisher) {
		p.password = password
	}
}

// WithSourcePrefix sets the prefix prepended to every managed source name.
func WithSourcePrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithScene pins source creation to a named scene instead of the
// current program scene.
func WithScene(scene string) Option {
	return func(p *Publisher) {
		p.scene = scene
	}
}

// WithBackoff overrides the reconnect backoff bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(p *Publisher) {
		if min > 0 {
			p.backoffMin = min
		}
		if max >= min && max > 0 {
			p.backoffMax = max
		}
	}
}

// WithRequestTimeout overrides the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.requestTimeout = d
		}
	}
}

// WithLogger sets the logger used by the publisher.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// Publisher maintains a websocket session to an OBS instance and keeps one
// text source per enabled data point up to date. All socket traffic runs on
// a single goroutine; callers hand it work through a pending slot that keeps
// only the most recent shot, so a display outage never backs up the pipeline.
type Publisher struct {
	url            string
	password       string
	prefix         string
	scene          string
	dialTimeout    time.Duration
	requestTimeout time.Duration
	backoffMin     time.Duration
	backoffMax     time.Duration
	logger         logger.Logger

	pendingMu sync.Mutex
	pending   []model.DataPointValue
	ensureIDs []string

	kick chan struct{}

	connMu    sync.Mutex
	connected bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewPublisher creates a publisher for the given websocket URL, for
// example "ws://localhost:4455".
func NewPublisher(url string, opts ...Option) *Publisher {
	p := &Publisher{
		url:            url,
		prefix:         defaultSourcePrefix,
		dialTimeout:    defaultDialTimeout,
		requestTimeout: defaultRequestTimeout,
		backoffMin:     defaultBackoffMin,
		backoffMax:     defaultBackoffMax,
		kick:           make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logger.Get().Named("display")
	}

	return p
}

// Start launches the connection loop. It returns immediately; the first
// connection attempt happens in the background.
func (p *Publisher) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop tears down the connection loop and waits for it to exit.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.done
}

// Connected reports whether an identified websocket session is live.
func (p *Publisher) Connected() bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.connected
}

// EnsureSources registers the data point ids whose text sources must exist
// in OBS. Sources are created lazily once a session is identified and
// re-checked after every reconnect.
func (p *Publisher) EnsureSources(ids []string) {
	p.pendingMu.Lock()
	p.ensureIDs = append([]string(nil), ids...)
	p.pendingMu.Unlock()
	p.wake()
}

// Publish schedules the given values for display. If an older shot is still
// waiting it is discarded; only the most recent shot survives an outage.
func (p *Publisher) Publish(values []model.DataPointValue) {
	p.pendingMu.Lock()
	p.pending = append([]model.DataPointValue(nil), values...)
	p.pendingMu.Unlock()
	p.wake()
}

// SourceName returns the OBS input name for a data point id.
func (p *Publisher) SourceName(id string) string {
	return p.prefix + id
}

func (p *Publisher) wake() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *Publisher) setConnected(v bool) {
	p.connMu.Lock()
	p.connected = v
	p.connMu.Unlock()
	metrics.UpdatePublisherConnected(v)
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.done)

	backoff := p.backoffMin
	for {
		conn, err := p.connect(ctx)
		if err != nil {
			if !p.sleep(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > p.backoffMax {
				backoff = p.backoffMax
			}
			metrics.RecordPublisherReconnect()
			continue
		}
		backoff = p.backoffMin
		p.setConnected(true)
		p.logger.Info(ctx, "display connected", logger.String("url", p.url))

		alive := p.serve(ctx, conn)
		conn.Close()
		p.setConnected(false)
		if !alive {
			return
		}
		p.logger.Warn(ctx, "display connection lost, reconnecting")
		metrics.RecordPublisherReconnect()
	}
}

// sleep waits for the given duration unless stopped first. It returns false
// when the loop should exit.
func (p *Publisher) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-p.stopCh:
		return false
	case <-t.C:
		return true
	}
}

// serve runs the identified session until it fails or the publisher stops.
// It returns true when the loop should reconnect and false on shutdown.
func (p *Publisher) serve(ctx context.Context, conn *websocket.Conn) bool {
	sess := &session{conn: conn, timeout: p.requestTimeout}

	scene, err := p.resolveScene(sess)
	if err != nil {
		p.logger.Warn(ctx, "resolving display scene", logger.Error(err))
		return true
	}
	if err := p.ensurePending(ctx, sess, scene); err != nil {
		p.logger.Warn(ctx, "ensuring display sources", logger.Error(err))
		return true
	}
	if err := p.flushPending(sess); err != nil {
		metrics.RecordPublishError()
		p.logger.Warn(ctx, "publishing to display", logger.Error(err))
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-p.stopCh:
			return false
		case <-p.kick:
			if err := p.ensurePending(ctx, sess, scene); err != nil {
				p.logger.Warn(ctx, "ensuring display sources", logger.Error(err))
				return true
			}
			if err := p.flushPending(sess); err != nil {
				metrics.RecordPublishError()
				p.logger.Warn(ctx, "publishing to display", logger.Error(err))
				return true
			}
		}
	}
}

func (p *Publisher) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: p.dialTimeout}
	conn, _, err := dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing display: %w", err)
	}

	if err := p.identify(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (p *Publisher) identify(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(p.requestTimeout))

	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("%w: reading hello: %v", ErrIdentification, err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("%w: unexpected opcode %d before hello", ErrIdentification, hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		return fmt.Errorf("%w: decoding hello: %v", ErrIdentification, err)
	}

	id := identifyData{RPCVersion: rpcVersion, EventSubscriptions: 0}
	if hd.Authentication != nil {
		id.Authentication = authToken(p.password, hd.Authentication.Salt, hd.Authentication.Challenge)
	}
	payload, err := encodeMessage(opIdentify, id)
	if err != nil {
		return fmt.Errorf("%w: encoding identify: %v", ErrIdentification, err)
	}
	conn.SetWriteDeadline(time.Now().Add(p.requestTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: sending identify: %v", ErrIdentification, err)
	}

	conn.SetReadDeadline(time.Now().Add(p.requestTimeout))
	var identified message
	if err := conn.ReadJSON(&identified); err != nil {
		return fmt.Errorf("%w: reading identified: %v", ErrIdentification, err)
	}
	if identified.Op != opIdentified {
		return fmt.Errorf("%w: unexpected opcode %d after identify", ErrIdentification, identified.Op)
	}
	return nil
}

func (p *Publisher) resolveScene(sess *session) (string, error) {
	if p.scene != "" {
		return p.scene, nil
	}
	resp, err := sess.request("GetCurrentProgramScene", nil)
	if err != nil {
		return "", err
	}
	var scene struct {
		CurrentProgramSceneName string `json:"currentProgramSceneName"`
	}
	if err := json.Unmarshal(resp, &scene); err != nil {
		return "", fmt.Errorf("decoding scene response: %w", err)
	}
	return scene.CurrentProgramSceneName, nil
}

// ensurePending creates any registered source that does not exist yet.
// Existing sources are left untouched so user styling in OBS survives.
func (p *Publisher) ensurePending(ctx context.Context, sess *session, scene string) error {
	p.pendingMu.Lock()
	ids := p.ensureIDs
	p.ensureIDs = nil
	p.pendingMu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	ensured := 0
	for _, id := range ids {
		name := p.SourceName(id)
		_, err := sess.request("GetInputSettings", map[string]interface{}{
			"inputName": name,
		})
		if err == nil {
			continue
		}
		_, err = sess.request("CreateInput", map[string]interface{}{
			"sceneName": scene,
			"inputName": name,
			"inputKind": textInputKind,
			"inputSettings": map[string]interface{}{
				"text": "",
			},
			"sceneItemEnabled": true,
		})
		if err != nil {
			p.pendingMu.Lock()
			p.ensureIDs = ids
			p.pendingMu.Unlock()
			return fmt.Errorf("creating source %s: %w", name, err)
		}
		ensured++
		p.logger.Info(ctx, "created display source", logger.String("source", name))
	}
	metrics.RecordSourcesEnsured(ensured)
	return nil
}

// flushPending sends the waiting shot, if any, as one request batch so the
// display never shows values from two different shots at once.
func (p *Publisher) flushPending(sess *session) error {
	p.pendingMu.Lock()
	values := p.pending
	p.pending = nil
	p.pendingMu.Unlock()
	if len(values) == 0 {
		return nil
	}

	entries := make([]batchEntry, 0, len(values))
	for _, v := range values {
		entries = append(entries, batchEntry{
			RequestType: "SetInputSettings",
			RequestData: map[string]interface{}{
				"inputName": p.SourceName(v.ID),
				"inputSettings": map[string]interface{}{
					"text": v.Text,
				},
				"overlay": true,
			},
		})
	}

	if err := sess.requestBatch(entries); err != nil {
		p.pendingMu.Lock()
		if p.pending == nil {
			p.pending = values
		}
		p.pendingMu.Unlock()
		return err
	}
	metrics.RecordPublish()
	return nil
}

// session wraps a websocket connection with synchronous request plumbing.
// With events unsubscribed the server only ever sends responses, so reads
// stay strictly request ordered.
type session struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *session) request(reqType string, data interface{}) (json.RawMessage, error) {
	id := uuid.New().String()
	payload, err := encodeMessage(opRequest, requestData{
		RequestType: reqType,
		RequestID:   id,
		RequestData: data,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", reqType, err)
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("%w: sending %s: %v", ErrNotConnected, reqType, err)
	}

	deadline := time.Now().Add(s.timeout)
	for {
		s.conn.SetReadDeadline(deadline)
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("%w: awaiting %s response: %v", ErrNotConnected, reqType, err)
		}
		if msg.Op != opRequestResponse {
			continue
		}
		var resp requestResponseData
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", reqType, err)
		}
		if resp.RequestID != id {
			continue
		}
		if !resp.RequestStatus.Result {
			return nil, fmt.Errorf("%w: %s: code %d %s",
				ErrRequestFailed, reqType, resp.RequestStatus.Code, resp.RequestStatus.Comment)
		}
		return resp.ResponseData, nil
	}
}

func (s *session) requestBatch(entries []batchEntry) error {
	id := uuid.New().String()
	payload, err := encodeMessage(opRequestBatch, requestBatchData{
		RequestID:     id,
		HaltOnFailure: false,
		Requests:      entries,
	})
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: sending batch: %v", ErrNotConnected, err)
	}

	deadline := time.Now().Add(s.timeout)
	for {
		s.conn.SetReadDeadline(deadline)
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("%w: awaiting batch response: %v", ErrNotConnected, err)
		}
		if msg.Op != opRequestBatchResponse {
			continue
		}
		var resp requestBatchResponseData
		if err := json.Unmarshal(msg.D, &resp); err != nil {
			return fmt.Errorf("decoding batch response: %w", err)
		}
		if resp.RequestID != id {
			continue
		}
		for _, r := range resp.Results {
			if !r.RequestStatus.Result {
				return fmt.Errorf("%w: %s in batch: code %d %s",
					ErrRequestFailed, r.RequestType, r.RequestStatus.Code, r.RequestStatus.Comment)
			}
		}
		return nil
	}
}
