package natsengine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Handler dispatches operations received over NATS to a local engine.
type Handler struct {
	target     engine.Engine
	constraint string
	logger     *slog.Logger
}

// NewHandler returns a Handler for target. Messages whose IR version does
// not satisfy constraint are rejected; an empty constraint accepts all.
func NewHandler(target engine.Engine, constraint string, logger *slog.Logger) (*Handler, error) {
	if target == nil {
		return nil, operation.Required("target")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{target: target, constraint: constraint, logger: logger}, nil
}

// Handle decodes msg, dispatches it and returns the reply to send.
// The reply is built even for published messages; Serve only sends it
// when msg has a reply subject.
func (h *Handler) Handle(ctx context.Context, msg *nats.Msg) *nats.Msg {
	result, err := h.handle(ctx, msg)
	reply := nats.NewMsg(msg.Reply)
	if err != nil {
		h.logger.Warn("operation rejected", "subject", msg.Subject, "error", err)
		reply.Header.Set(HeaderError, err.Error())
		return reply
	}
	data, err := ir.MarshalCanonical(ir.OrNull(result))
	if err != nil {
		reply.Header.Set(HeaderError, err.Error())
		return reply
	}
	reply.Data = data
	return reply
}

func (h *Handler) handle(ctx context.Context, msg *nats.Msg) (ir.Value, error) {
	version := msg.Header.Get(HeaderIRVersion)
	if version == "" {
		version = ir.IRVersion
	}
	if err := engine.CheckVersion(version, h.constraint); err != nil {
		return nil, err
	}
	op, err := operation.Unmarshal(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	if want := msg.Header.Get(HeaderOpID); want != "" {
		if got, err := operation.ID(op); err != nil || got != want {
			return nil, fmt.Errorf("operation id mismatch: header %s", want)
		}
	}
	if raw := msg.Header.Get(HeaderSeq); raw != "" {
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s header %q", HeaderSeq, raw)
		}
		ctx = engine.WithSeq(ctx, seq)
	}
	h.logger.Debug("dispatch remote operation", "subject", msg.Subject, "kind", string(op.Kind()))
	return h.target.Dispatch(ctx, op)
}

// Serve subscribes h to every operation subject under prefix. Messages are
// handled one at a time on the subscription's goroutine, so the target sees
// operations in arrival order.
func Serve(ctx context.Context, nc *nats.Conn, prefix string, h *Handler) (*nats.Subscription, error) {
	return nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
		reply := h.Handle(ctx, msg)
		if msg.Reply == "" {
			return
		}
		if err := msg.RespondMsg(reply); err != nil {
			h.logger.Warn("reply failed", "subject", msg.Subject, "error", err)
		}
	})
}
