package natsengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Header names.
const (
	HeaderOpID      = "Rxq-Op-Id"
	HeaderSeq       = "Rxq-Seq"
	HeaderIRVersion = "Rxq-Ir-Version"
	HeaderError     = "Rxq-Error"
)

// DefaultTimeout bounds metadata query round trips.
const DefaultTimeout = 5 * time.Second

// ErrRemote wraps failures reported by the serving side.
var ErrRemote = errors.New("remote engine error")

// Conn is the part of *nats.Conn the client uses.
type Conn interface {
	PublishMsg(m *nats.Msg) error
	RequestMsgWithContext(ctx context.Context, m *nats.Msg) (*nats.Msg, error)
}

// Engine implements engine.Engine over NATS.
type Engine struct {
	conn    Conn
	prefix  string
	timeout time.Duration
	msgID   func() string
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the metadata query timeout. Default: DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMsgID replaces the UUID message id source, for tests.
func WithMsgID(f func() string) Option {
	return func(e *Engine) {
		if f != nil {
			e.msgID = f
		}
	}
}

// New returns an Engine publishing under prefix.
func New(conn Conn, prefix string, opts ...Option) (*Engine, error) {
	if conn == nil {
		return nil, operation.Required("conn")
	}
	if prefix == "" {
		return nil, operation.Required("prefix")
	}
	e := &Engine{
		conn:    conn,
		prefix:  prefix,
		timeout: DefaultTimeout,
		msgID:   func() string { return uuid.NewString() },
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Connect dials url with reconnects enabled.
func Connect(url, name string, timeout time.Duration) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return nc, nil
}

// Subject returns the subject operations of kind are published on.
func Subject(prefix string, kind operation.Kind) string {
	return prefix + "." + string(kind)
}

// Dispatch publishes op. Metadata queries wait for the reply.
func (e *Engine) Dispatch(ctx context.Context, op operation.Operation) (ir.Value, error) {
	msg, err := e.message(ctx, op)
	if err != nil {
		return nil, err
	}

	if op.Kind() != operation.KindMetadataQuery {
		if err := e.conn.PublishMsg(msg); err != nil {
			return nil, fmt.Errorf("publish %s: %w", msg.Subject, err)
		}
		e.logger.Debug("published operation", "subject", msg.Subject, "msg_id", msg.Header.Get(nats.MsgIdHdr))
		return ir.Null{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	reply, err := e.conn.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", msg.Subject, err)
	}
	return decodeReply(reply)
}

func (e *Engine) message(ctx context.Context, op operation.Operation) (*nats.Msg, error) {
	if op == nil {
		return nil, operation.Required("operation")
	}
	body, err := operation.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", op.Kind(), err)
	}
	id, err := operation.ID(op)
	if err != nil {
		return nil, err
	}

	msg := nats.NewMsg(Subject(e.prefix, op.Kind()))
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, e.msgID())
	msg.Header.Set(HeaderOpID, id)
	msg.Header.Set(HeaderIRVersion, ir.IRVersion)
	if seq, ok := engine.SeqFrom(ctx); ok {
		msg.Header.Set(HeaderSeq, strconv.FormatInt(seq, 10))
	}
	return msg, nil
}

func decodeReply(reply *nats.Msg) (ir.Value, error) {
	if msg := reply.Header.Get(HeaderError); msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemote, msg)
	}
	v, err := ir.UnmarshalValue(reply.Data)
	if err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return v, nil
}
