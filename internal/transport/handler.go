package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/rendis/leadtap/internal/engine/session"
	"github.com/rendis/leadtap/internal/model"
)

// Coordinator is the session surface the handler drives.
type Coordinator interface {
	Start(ctx context.Context, opts model.StartOptions) error
	Stop()
	Status() session.Snapshot
}

// Clearer wipes stored records and settings.
type Clearer interface {
	ClearAll(ctx context.Context) error
}

// Handler dispatches inbound command envelopes to a Coordinator.
type Handler struct {
	coord Coordinator
	store Clearer
	log   *zap.Logger
}

func NewHandler(coord Coordinator, store Clearer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{coord: coord, store: store, log: log}
}

// Handle answers one command. Every command gets exactly one reply: an
// ERROR envelope on failure, STATUS_RESPONSE otherwise. ctx bounds any
// session the command starts.
func (h *Handler) Handle(ctx context.Context, env Envelope) Envelope {
	h.log.Debug("message received", zap.String("type", string(env.Type)))

	switch env.Type {
	case KindStart:
		var opts model.StartOptions
		if err := env.Into(&opts); err != nil {
			return errorEnvelope(err.Error())
		}
		if err := h.coord.Start(ctx, opts); err != nil {
			h.log.Warn("start rejected", zap.Error(err))
			return errorEnvelope(userMessage(err))
		}
	case KindStop:
		h.coord.Stop()
	case KindStatus:
	case KindClear:
		if h.coord.Status().Status == model.StatusRunning {
			return errorEnvelope("cannot clear data while scraping is in progress")
		}
		if err := h.store.ClearAll(ctx); err != nil {
			h.log.Error("clearing data", zap.Error(err))
			return errorEnvelope(fmt.Sprintf("clearing data: %v", err))
		}
	default:
		return errorEnvelope(fmt.Sprintf("%s is not a command", env.Type))
	}
	return h.status()
}

func (h *Handler) status() Envelope {
	snap := h.coord.Status()
	return mustNew(KindStatusOK, ProgressPayload{Count: snap.Count, Status: snap.Status})
}

func userMessage(err error) string {
	if errors.Is(err, session.ErrAlreadyRunning) {
		return "Scraping is already in progress"
	}
	return err.Error()
}

// Bridge forwards session events to w as envelopes.
func Bridge(w *Writer, log *zap.Logger) session.Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return func(e session.Event) {
		if err := w.Send(FromEvent(e)); err != nil {
			log.Warn("forwarding session event", zap.String("kind", string(e.Kind)), zap.Error(err))
		}
	}
}

// Serve reads command frames from r until EOF or ctx is done and writes one
// reply per command to w. Malformed frames are answered with ERROR.
func Serve(ctx context.Context, r io.Reader, w *Writer, h *Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var reply Envelope
		env, err := Decode(data)
		if err != nil {
			reply = errorEnvelope(err.Error())
		} else {
			reply = h.Handle(ctx, env)
		}
		if err := w.Send(reply); err != nil {
			return err
		}
	}
}
