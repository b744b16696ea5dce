package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"audiencepulse/internal/modkit/httpkit"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/services/pulse/domain"
)

// StreamOptions configures the job event websocket
type StreamOptions struct {
	// Origins allowed to connect; "*" allows any. Requests without an Origin header pass
	Origins    []string
	PingPeriod time.Duration
	WriteWait  time.Duration
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.PingPeriod <= 0 {
		o.PingPeriod = 30 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	return o
}

type streamer struct {
	svc  domain.ServicePort
	opts StreamOptions
	up   websocket.Upgrader
}

func newStreamer(s domain.ServicePort, o StreamOptions) *streamer {
	o = o.withDefaults()
	st := &streamer{svc: s, opts: o}
	st.up = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     st.checkOrigin,
	}
	return st
}

func (st *streamer) checkOrigin(r *stdhttp.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range st.opts.Origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// swagger:route GET /pulse/jobs/{id}/stream Pulse pulseStream
// @Summary Websocket of job state transitions, closed after the terminal event
// @Tags Pulse
// @Param id path string true "Job id"
// @Router /pulse/jobs/{id}/stream [get]
func (st *streamer) serve(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	// the stream outlives the request timeout
	ctx := context.WithoutCancel(r.Context())
	id := chi.URLParam(r, "id")

	events, stop, err := st.svc.Subscribe(ctx, id)
	if err != nil {
		httpkit.Handle(func(*stdhttp.Request) httpkit.Response { return httpkit.Error(err) })(w, r)
		return
	}
	defer stop()

	conn, err := st.up.Upgrade(w, r, nil)
	if err != nil {
		logger.C(ctx).Debug().Err(err).Str("job_id", id).Msg("stream upgrade failed")
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(2 * st.opts.PingPeriod))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(2 * st.opts.PingPeriod))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(st.opts.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(st.opts.WriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(st.opts.WriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.C(ctx).Debug().Err(err).Str("job_id", id).Msg("stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(st.opts.WriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
