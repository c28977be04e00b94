// Package host carries commands between the front-end and the backend over a
// pair of byte streams, one JSON object per line.
//
// Requests look like {"id": "...", "cmd": "get_accounts", "args": {...}}.
// Responses echo the id and carry either "result" or "error". Once the
// backend is ready the host writes {"event": "ready"}; if initialization
// failed it writes {"event": "failed", "error": "..."} and Serve returns.
package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tomyedwab/ledger/commands"
)

// maxLineSize bounds a single request line.
const maxLineSize = 1 << 20

type Dispatcher interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) commands.Response
}

// Connect is called once the backend reports ready and returns the
// dispatcher requests are sent to.
type Connect func() (Dispatcher, error)

type Request struct {
	ID      string          `json:"id"`
	Command string          `json:"cmd"`
	Args    json.RawMessage `json:"args,omitempty"`
}

type Response struct {
	ID string `json:"id"`
	commands.Response
}

type Event struct {
	Event string `json:"event"`
	Error string `json:"error,omitempty"`
}

type Host struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	writeMu sync.Mutex
}

func New(in io.Reader, out io.Writer, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{in: in, out: out, logger: logger}
}

// Serve waits for ready, connects, and then dispatches requests until the
// input ends or ctx is cancelled. Requests run concurrently; Serve waits for
// in-flight requests before returning.
func (h *Host) Serve(ctx context.Context, ready <-chan struct{}, connect Connect) error {
	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	dispatcher, err := connect()
	if err != nil {
		h.write(Event{Event: "failed", Error: err.Error()})
		return fmt.Errorf("backend unavailable: %w", err)
	}
	if err := h.write(Event{Event: "ready"}); err != nil {
		return err
	}
	h.logger.Info("Host ready")

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(h.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read requests: %w", err)
					}
				default:
				}
				h.logger.Info("Input closed, stopping host")
				return nil
			}
			if len(line) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.handle(ctx, dispatcher, line)
			}()
		}
	}
}

func (h *Host) handle(ctx context.Context, dispatcher Dispatcher, line []byte) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		h.logger.Warn("Malformed request", "error", err)
		h.write(Response{Response: commands.Response{Error: fmt.Sprintf("malformed request: %v", err)}})
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Command == "" {
		h.write(Response{ID: req.ID, Response: commands.Response{Error: "missing cmd"}})
		return
	}

	logger := h.logger.With("request_id", req.ID, "command", req.Command)
	logger.Debug("Dispatching request")
	resp := dispatcher.Invoke(ctx, req.Command, req.Args)
	if err := h.write(Response{ID: req.ID, Response: resp}); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

func (h *Host) write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		// A result that cannot be encoded still gets an answer.
		resp, ok := v.(Response)
		if !ok {
			return err
		}
		data, err = json.Marshal(Response{ID: resp.ID, Response: commands.Response{Error: fmt.Sprintf("encode result: %v", err)}})
		if err != nil {
			return err
		}
	}
	data = append(data, '\n')

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_, err = h.out.Write(data)
	return err
}
