package host

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/ledger/accounts"
	"github.com/tomyedwab/ledger/commands"
	"github.com/tomyedwab/ledger/database"
)

type echoDispatcher struct {
	mu    sync.Mutex
	calls []string
}

func (d *echoDispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) commands.Response {
	d.mu.Lock()
	d.calls = append(d.calls, name)
	d.mu.Unlock()
	if name == "fail" {
		return commands.Response{Error: "boom"}
	}
	return commands.Response{Result: map[string]string{"cmd": name}}
}

type outputLine struct {
	ID     string          `json:"id"`
	Event  string          `json:"event"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func readLines(t *testing.T, out *bytes.Buffer) []outputLine {
	t.Helper()
	var lines []outputLine
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var line outputLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line), scanner.Text())
		lines = append(lines, line)
	}
	return lines
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func TestServeDispatchesRequests(t *testing.T) {
	in := strings.NewReader(strings.Join([]string{
		`{"id": "1", "cmd": "get_accounts"}`,
		``,
		`{"id": "2", "cmd": "fail", "args": {"x": 1}}`,
		`{"cmd": "anonymous"}`,
		`not json`,
		`{"id": "5"}`,
	}, "\n"))
	var out bytes.Buffer
	dispatcher := &echoDispatcher{}

	h := New(in, &out, nil)
	err := h.Serve(context.Background(), closedChan(), func() (Dispatcher, error) { return dispatcher, nil })
	require.NoError(t, err)

	lines := readLines(t, &out)
	require.Len(t, lines, 6)
	assert.Equal(t, "ready", lines[0].Event)

	byID := map[string]outputLine{}
	var anonymous, malformed int
	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line.Error, "malformed request"):
			malformed++
		case line.ID != "" && line.ID != "1" && line.ID != "2" && line.ID != "5":
			anonymous++
			assert.JSONEq(t, `{"cmd": "anonymous"}`, string(line.Result))
		default:
			byID[line.ID] = line
		}
	}
	assert.Equal(t, 1, malformed)
	assert.Equal(t, 1, anonymous, "requests without an id get a generated one")
	assert.JSONEq(t, `{"cmd": "get_accounts"}`, string(byID["1"].Result))
	assert.Equal(t, "boom", byID["2"].Error)
	assert.Equal(t, "missing cmd", byID["5"].Error)

	assert.ElementsMatch(t, []string{"get_accounts", "fail", "anonymous"}, dispatcher.calls)
}

func TestServeWaitsForReady(t *testing.T) {
	ready := make(chan struct{})
	var out bytes.Buffer
	connected := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		h := New(strings.NewReader(`{"id": "1", "cmd": "get_accounts"}`), &out, nil)
		done <- h.Serve(context.Background(), ready, func() (Dispatcher, error) {
			close(connected)
			return &echoDispatcher{}, nil
		})
	}()

	select {
	case <-connected:
		t.Fatal("connected before ready")
	case <-time.After(50 * time.Millisecond):
	}

	close(ready)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	lines := readLines(t, &out)
	require.Len(t, lines, 2)
	assert.Equal(t, "ready", lines[0].Event)
}

func TestServeReportsFailedBackend(t *testing.T) {
	var out bytes.Buffer
	h := New(strings.NewReader(`{"id": "1", "cmd": "get_accounts"}`), &out, nil)

	err := h.Serve(context.Background(), closedChan(), func() (Dispatcher, error) {
		return nil, errors.New("disk full")
	})
	require.Error(t, err)

	lines := readLines(t, &out)
	require.Len(t, lines, 1)
	assert.Equal(t, "failed", lines[0].Event)
	assert.Equal(t, "disk full", lines[0].Error)
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	h := New(strings.NewReader(""), &out, nil)
	err := h.Serve(ctx, make(chan struct{}), func() (Dispatcher, error) {
		t.Fatal("connect must not be called")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestServeWithLedgerCommands(t *testing.T) {
	db, err := database.Open(context.Background(), database.Options{
		Path: filepath.Join(t.TempDir(), "ledger-app.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.GetDB().Exec(`INSERT INTO accounts (id, name, account_type, balance, currency, description)
		VALUES (1, 'Checking', 'checking', 1000.50, 'USD', NULL),
		       (2, 'Savings', 'savings', 500.00, 'USD', 'emergency fund')`)
	require.NoError(t, err)

	registry := commands.NewRegistry(nil)
	commands.RegisterAccounts(registry, accounts.NewRepository(db, nil, nil), nil)

	var out bytes.Buffer
	h := New(strings.NewReader(`{"id": "a", "cmd": "get_accounts"}`+"\n"), &out, nil)
	require.NoError(t, h.Serve(context.Background(), closedChan(), func() (Dispatcher, error) { return registry, nil }))

	lines := readLines(t, &out)
	require.Len(t, lines, 2)
	assert.Equal(t, "a", lines[1].ID)
	assert.Empty(t, lines[1].Error)

	var got []accounts.Account
	require.NoError(t, json.Unmarshal(lines[1].Result, &got))
	require.Len(t, got, 2)
	for _, a := range got {
		switch a.ID {
		case 1:
			assert.Nil(t, a.Description)
		case 2:
			require.NotNil(t, a.Description)
			assert.Equal(t, "emergency fund", *a.Description)
		default:
			t.Errorf("unexpected account %d", a.ID)
		}
	}
}
