package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-wayfinder/pkg/pipeline"
)

const watchReadTimeout = 60 * time.Second

// ResultsURL returns the results stream URL for a dashboard address
// such as "localhost:8080".
func ResultsURL(addr string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/results"}
	return u.String()
}

// Watch connects to a dashboard results stream and calls fn for every
// frame report until ctx is done or the connection drops.
func Watch(ctx context.Context, wsURL string, fn func(pipeline.Report)) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", wsURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		conn.SetReadDeadline(time.Now().Add(watchReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type != "frame" {
			continue
		}
		var rep pipeline.Report
		if err := json.Unmarshal(env.Data, &rep); err != nil {
			return errors.Join(errors.New("web: malformed frame report"), err)
		}
		fn(rep)
	}
}
