package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/rendis/leadtap/internal/engine/dom/htmlpage"
	"github.com/rendis/leadtap/internal/engine/scraper"
	"github.com/rendis/leadtap/internal/engine/session"
	_ "github.com/rendis/leadtap/internal/engine/sites/directory"
	"github.com/rendis/leadtap/internal/engine/storage"
	"github.com/rendis/leadtap/internal/model"
)

// TestFrame_RoundTripAndLimits checks the length prefix, clean EOF and the
// size guard.
func TestFrame_RoundTripAndLimits(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte(`{"type":"GET_STATUS"}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if got := binary.LittleEndian.Uint32(buf.Bytes()[:4]); got != 21 {
		t.Fatalf("length prefix = %d, want 21", got)
	}

	data, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(data) != `{"type":"GET_STATUS"}` {
		t.Errorf("frame = %q", data)
	}
	if _, err := ReadFrame(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame on empty stream = %v, want EOF", err)
	}

	var big bytes.Buffer
	binary.Write(&big, binary.LittleEndian, uint32(MaxFrameSize+1))
	if _, err := ReadFrame(&big); err == nil {
		t.Error("oversized frame accepted")
	}

	var short bytes.Buffer
	binary.Write(&short, binary.LittleEndian, uint32(10))
	short.WriteString("abc")
	if _, err := ReadFrame(&short); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("truncated frame error = %v, want unexpected EOF", err)
	}
}

// TestDecode checks discriminator validation and payload access.
func TestDecode(t *testing.T) {
	t.Parallel()

	env, err := Decode([]byte(`{"type":"START_SCRAPING","payload":{"maxResults":5,"delayBetweenScrolls":100,"profile":"generic-listing"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var opts model.StartOptions
	if err := env.Into(&opts); err != nil {
		t.Fatalf("Into: %v", err)
	}
	if opts.MaxResults != 5 || opts.DelayBetweenScrollsMs != 100 || opts.Profile != model.ProfileListing {
		t.Errorf("options = %+v", opts)
	}

	if _, err := Decode([]byte(`{"type":"REBOOT"}`)); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind error = %v", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("Decode accepted garbage")
	}

	stop, err := Decode([]byte(`{"type":"STOP_SCRAPING"}`))
	if err != nil {
		t.Fatalf("Decode stop: %v", err)
	}
	if err := stop.Into(&opts); err == nil {
		t.Error("Into succeeded without payload")
	}
}

// TestFromEvent checks the event to envelope mapping.
func TestFromEvent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		event session.Event
		want  string
	}{
		{session.Event{Kind: session.EventProgress, Count: 2, Status: model.StatusRunning},
			`{"type":"SCRAPE_PROGRESS","payload":{"count":2,"status":"running"}}`},
		{session.Event{Kind: session.EventProgress, Count: 2, Status: model.StatusStopped},
			`{"type":"SCRAPE_PROGRESS","payload":{"count":2,"status":"stopped"}}`},
		{session.Event{Kind: session.EventDone, Total: 3, Status: model.StatusCompleted},
			`{"type":"SCRAPE_DONE","payload":{"total":3}}`},
		{session.Event{Kind: session.EventError, Message: "boom", Status: model.StatusError},
			`{"type":"ERROR","payload":{"message":"boom"}}`},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		if err := NewWriter(&buf).Send(FromEvent(tc.event)); err != nil {
			t.Fatalf("Send: %v", err)
		}
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if string(got) != tc.want {
			t.Errorf("FromEvent(%+v) = %s, want %s", tc.event, got, tc.want)
		}
	}
}

type fakeCoordinator struct {
	startErr error
	started  int
	stopped  int
	snap     session.Snapshot
}

func (f *fakeCoordinator) Start(context.Context, model.StartOptions) error {
	f.started++
	return f.startErr
}
func (f *fakeCoordinator) Stop() { f.stopped++ }
func (f *fakeCoordinator) Status() session.Snapshot { return f.snap }

type fakeClearer struct{ cleared int }

func (f *fakeClearer) ClearAll(context.Context) error {
	f.cleared++
	return nil
}

func mustEnvelope(t *testing.T, k Kind, payload any) Envelope {
	t.Helper()
	env, err := New(k, payload)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return env
}

func errorMessage(t *testing.T, env Envelope) string {
	t.Helper()
	if env.Type != KindError {
		t.Fatalf("reply type = %s, want ERROR", env.Type)
	}
	var p ErrorPayload
	if err := env.Into(&p); err != nil {
		t.Fatalf("Into: %v", err)
	}
	return p.Message
}

// TestHandler_Commands checks dispatch and the reply of each command.
func TestHandler_Commands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	coord := &fakeCoordinator{snap: session.Snapshot{Status: model.StatusIdle}}
	clr := &fakeClearer{}
	h := NewHandler(coord, clr, zaptest.NewLogger(t))

	reply := h.Handle(ctx, mustEnvelope(t, KindStart, model.StartOptions{MaxResults: 5, Profile: model.ProfileListing}))
	if reply.Type != KindStatusOK || coord.started != 1 {
		t.Errorf("start reply = %s, started %d", reply.Type, coord.started)
	}

	coord.startErr = session.ErrAlreadyRunning
	reply = h.Handle(ctx, mustEnvelope(t, KindStart, model.StartOptions{MaxResults: 5, Profile: model.ProfileListing}))
	if msg := errorMessage(t, reply); msg != "Scraping is already in progress" {
		t.Errorf("duplicate start message = %q", msg)
	}

	if reply := h.Handle(ctx, Envelope{Type: KindStart}); reply.Type != KindError {
		t.Errorf("start without payload reply = %s", reply.Type)
	}

	h.Handle(ctx, Envelope{Type: KindStop})
	if coord.stopped != 1 {
		t.Errorf("stopped = %d, want 1", coord.stopped)
	}

	coord.snap = session.Snapshot{Status: model.StatusRunning, Count: 4}
	reply = h.Handle(ctx, Envelope{Type: KindStatus})
	var p ProgressPayload
	if err := reply.Into(&p); err != nil {
		t.Fatalf("Into: %v", err)
	}
	if p.Count != 4 || p.Status != model.StatusRunning {
		t.Errorf("status payload = %+v", p)
	}

	if reply := h.Handle(ctx, Envelope{Type: KindClear}); reply.Type != KindError || clr.cleared != 0 {
		t.Errorf("clear while running: reply %s, cleared %d", reply.Type, clr.cleared)
	}
	coord.snap.Status = model.StatusCompleted
	if reply := h.Handle(ctx, Envelope{Type: KindClear}); reply.Type != KindStatusOK || clr.cleared != 1 {
		t.Errorf("clear: reply %s, cleared %d", reply.Type, clr.cleared)
	}

	if reply := h.Handle(ctx, Envelope{Type: KindDone}); reply.Type != KindError {
		t.Errorf("event sent as command: reply %s", reply.Type)
	}
}

// TestServe_EndToEnd runs a directory session through the framed protocol.
func TestServe_EndToEnd(t *testing.T) {
	t.Parallel()

	var markup strings.Builder
	markup.WriteString("<html><body>")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&markup, `<div class="listing"><h3>Shop %d</h3></div>`, i)
	}
	markup.WriteString("</body></html>")
	page, err := htmlpage.New("https://directory.example/", markup.String(), htmlpage.Options{})
	if err != nil {
		t.Fatalf("htmlpage.New: %v", err)
	}

	var out bytes.Buffer
	w := NewWriter(&out)
	log := zaptest.NewLogger(t)
	repo := storage.NewRepository(storage.NewMemory())
	coord := session.New(page, repo,
		session.WithLogger(log),
		session.WithTimings(scraper.Timings{Yield: time.Millisecond}),
		session.WithListener(Bridge(w, log)))

	var in bytes.Buffer
	start, err := Encode(KindStart, model.StartOptions{MaxResults: 10, Profile: model.ProfileListing})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	WriteFrame(&in, start)
	WriteFrame(&in, []byte(`{"type":"NOPE"}`))

	ctx := context.Background()
	if err := Serve(ctx, &in, w, NewHandler(coord, repo, log)); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := coord.Wait(waitCtx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	var kinds []Kind
	var counts []int
	total := -1
	for {
		data, err := ReadFrame(&out)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		env, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		kinds = append(kinds, env.Type)
		switch env.Type {
		case KindProgress:
			var p ProgressPayload
			env.Into(&p)
			counts = append(counts, p.Count)
		case KindDone:
			var p DonePayload
			env.Into(&p)
			total = p.Total
		}
	}

	if fmt.Sprint(counts) != "[1 2 3]" {
		t.Errorf("progress counts = %v, want [1 2 3]", counts)
	}
	if total != 3 {
		t.Errorf("done total = %d, want 3", total)
	}
	if n := countKind(kinds, KindStatusOK); n != 1 {
		t.Errorf("status replies = %d, want 1 (kinds %v)", n, kinds)
	}
	if n := countKind(kinds, KindError); n != 1 {
		t.Errorf("error replies = %d, want 1 (kinds %v)", n, kinds)
	}
}

func countKind(kinds []Kind, k Kind) int {
	n := 0
	for _, got := range kinds {
		if got == k {
			n++
		}
	}
	return n
}
