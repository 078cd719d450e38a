package forward

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

// hijackedConn adapts a hijacked client connection's buffered reader (which
// may already hold bytes read past the request headers) together with its
// raw net.Conn into a single io.ReadWriteCloser.
type hijackedConn struct {
	reader *bufio.Reader
	conn   net.Conn
}

func (h hijackedConn) Read(p []byte) (int, error)  { return h.reader.Read(p) }
func (h hijackedConn) Write(p []byte) (int, error) { return h.conn.Write(p) }
func (h hijackedConn) Close() error                { return h.conn.Close() }

// upgrade handles a request carrying an Upgrade header. No pack library
// exposes a protocol-agnostic upgrade hook (gorilla/websocket only models
// the WebSocket sub-protocol handshake), so both sides are used at the raw
// connection level: the client connection is hijacked, and the upstream
// connection is the 101 response's writable Body:
//  1. a companion request with an empty body is sent to the upstream
//  2. the client connection is hijacked and the upstream's status/headers
//     are written to it with an empty body
//  3. a background goroutine copies bytes bidirectionally until either
//     side closes
func upgrade(w http.ResponseWriter, req *http.Request, client *http.Client, dest *url.URL) (int, error) {
	companion, err := http.NewRequest(req.Method, dest.String(), http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("building upgrade companion request: %w", err)
	}
	companion.Header = req.Header.Clone()

	upstreamResp, err := client.Do(companion)
	if err != nil {
		return 0, fmt.Errorf("dispatching upgrade request: %w", err)
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		upstreamResp.Body.Close()
		return 0, fmt.Errorf("response writer does not support hijacking")
	}

	upstreamConn, ok := upstreamResp.Body.(io.ReadWriteCloser)
	if !ok {
		upstreamResp.Body.Close()
		return 0, fmt.Errorf("upstream connection does not support bidirectional I/O after upgrade")
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		upstreamConn.Close()
		return 0, fmt.Errorf("hijacking client connection: %w", err)
	}

	if err := writeSwitchingResponse(clientBuf.Writer, upstreamResp); err != nil {
		clientConn.Close()
		upstreamConn.Close()
		return 0, fmt.Errorf("writing switching response: %w", err)
	}

	go pumpTunnel(hijackedConn{reader: clientBuf.Reader, conn: clientConn}, upstreamConn)
	return upstreamResp.StatusCode, nil
}

// writeSwitchingResponse writes upstream's status line and headers to the
// client with an empty body. It cannot use http.Response.Write directly:
// for a 101 response the Body is the live hijacked connection, and Write
// would try to drain it as content before the tunnel ever starts.
func writeSwitchingResponse(w *bufio.Writer, upstreamResp *http.Response) error {
	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", upstreamResp.StatusCode, http.StatusText(upstreamResp.StatusCode))
	if _, err := w.WriteString(statusLine); err != nil {
		return err
	}
	if err := upstreamResp.Header.Write(w); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

func pumpTunnel(clientConn, upstreamConn io.ReadWriteCloser) {
	defer clientConn.Close()
	defer upstreamConn.Close()

	done := make(chan struct{}, 2)
	go func() {
		_, err := io.Copy(upstreamConn, clientConn)
		if err != nil {
			log.Warn().Err(err).Msg("upgrade tunnel: client to upstream copy ended")
		}
		done <- struct{}{}
	}()
	go func() {
		_, err := io.Copy(clientConn, upstreamConn)
		if err != nil {
			log.Warn().Err(err).Msg("upgrade tunnel: upstream to client copy ended")
		}
		done <- struct{}{}
	}()
	<-done
}
