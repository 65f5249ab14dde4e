package bridge_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/danielacorner/frame-host-2/internal/audio/bridge"
)

// startMic launches a test WebSocket server that writes each element of
// chunks as one binary frame, then closes the connection.
func startMic(t *testing.T, chunks [][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		for _, c := range chunks {
			if err := conn.Write(r.Context(), websocket.MessageBinary, c); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "done")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSource_StreamsChunksThenCloses(t *testing.T) {
	t.Parallel()

	want := [][]byte{{1, 2, 3}, {4, 5}, {6, 7, 8, 9}}
	srv := startMic(t, want)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := bridge.New(wsURL(srv))
	defer src.Close()

	if !src.HasPermission() {
		t.Fatal("HasPermission() = false, want true")
	}

	stream, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got [][]byte
	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				if len(got) != len(want) {
					t.Fatalf("received %d chunks, want %d", len(got), len(want))
				}
				for i := range want {
					if !bytes.Equal(got[i], want[i]) {
						t.Errorf("chunk %d = %v, want %v", i, got[i], want[i])
					}
				}
				return
			}
			got = append(got, chunk)
		case <-ctx.Done():
			t.Fatal("timed out waiting for the stream to close")
		}
	}
}

func TestSource_SingleUse(t *testing.T) {
	t.Parallel()

	srv := startMic(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := bridge.New(wsURL(srv))
	defer src.Close()

	if _, err := src.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := src.Start(ctx); err == nil {
		t.Fatal("second Start: err=nil, want error")
	}
}

func TestSource_StopClosesStream(t *testing.T) {
	t.Parallel()

	// A server that never sends keeps the stream open until Stop.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		// Hold the connection open until the client goes away.
		conn.Read(r.Context())
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := bridge.New(wsURL(srv))
	stream, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case _, ok := <-stream:
		if ok {
			t.Fatal("received a chunk after Stop, want closed stream")
		}
	case <-ctx.Done():
		t.Fatal("stream not closed after Stop")
	}
}

func TestSource_StopWithQueuedAudio(t *testing.T) {
	t.Parallel()

	// Flood far more frames than the chunk channel buffers, then hold the
	// connection open: with no consumer the read loop ends up parked on a
	// full channel, and Stop must still end the stream.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		for i := 0; i < 128; i++ {
			if err := conn.Write(r.Context(), websocket.MessageBinary, []byte{byte(i)}); err != nil {
				return
			}
		}
		conn.Read(r.Context())
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := bridge.New(wsURL(srv))
	stream, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Let the flood fill the buffer before stopping; nothing consumes.
	time.Sleep(100 * time.Millisecond)
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-ctx.Done():
			t.Fatal("stream not closed after Stop with queued audio")
		}
	}
}

func TestStart_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	src := bridge.New("ws://127.0.0.1:1/audio")
	if _, err := src.Start(ctx); err == nil {
		t.Fatal("Start against unreachable bridge: err=nil, want error")
	}
}
