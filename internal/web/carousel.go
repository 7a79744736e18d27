package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Zachkp/folio/internal/carousel"
)

var errBadCommand = errors.New("bad carousel command")

// actionSwipe is a whole drag reported at release: start and end in one
// request.
const actionSwipe carousel.Action = "swipe"

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
	maxMessage = 4096
)

// envelope is the JSON frame sent to socket clients that ask for
// format=json.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// commandFrom builds a command from request values. get returns "" for a
// missing key.
func commandFrom(action string, get func(string) string) (carousel.Command, error) {
	cmd := carousel.Command{Action: carousel.Action(action)}
	var err error
	switch cmd.Action {
	case carousel.ActionGoTo:
		cmd.Index, err = strconv.Atoi(get("i"))
	case carousel.ActionSwipeEnd, actionSwipe:
		if cmd.Offset, err = parseFloat(get("offset")); err == nil {
			cmd.Velocity, err = parseFloat(get("velocity"))
		}
	case carousel.ActionView:
		cmd.View = get("mode")
	}
	if err != nil {
		return carousel.Command{}, fmt.Errorf("%w: %s: %v", errBadCommand, action, err)
	}
	return cmd, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// decodeCommand reads a socket message. Values may be strings (htmx ws
// extension) or JSON numbers.
func decodeCommand(data []byte) (carousel.Command, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return carousel.Command{}, fmt.Errorf("%w: %v", errBadCommand, err)
	}
	get := func(key string) string {
		switch v := raw[key].(type) {
		case nil:
			return ""
		case string:
			return v
		default:
			return fmt.Sprint(v)
		}
	}
	return commandFrom(get("action"), get)
}

func (s *Server) exec(sess *carousel.Session, cmd carousel.Command) (carousel.Snapshot, error) {
	if cmd.Action == actionSwipe {
		if _, err := sess.Do(carousel.Command{Action: carousel.ActionSwipeStart}); err != nil {
			return carousel.Snapshot{}, err
		}
		cmd.Action = carousel.ActionSwipeEnd
	}
	return sess.Do(cmd)
}

// carouselCommand runs an HTMX command and answers with the new fragment.
func (s *Server) carouselCommand(c *gin.Context) {
	sess, err := s.carousels.Get(c.Param("sid"))
	if err != nil {
		s.commandError(c, err)
		return
	}
	cmd, err := commandFrom(c.Param("action"), c.Request.FormValue)
	if err != nil {
		s.commandError(c, err)
		return
	}
	snap, err := s.exec(sess, cmd)
	if err != nil {
		s.commandError(c, err)
		return
	}
	name, v, err := s.fragment(snap)
	if err != nil {
		s.commandError(c, err)
		return
	}
	c.HTML(http.StatusOK, name, v)
}

func (s *Server) commandError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusGone {
		// the session expired; reloading the page mounts fresh carousels
		c.Header("HX-Refresh", "true")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("carousel command", zap.Error(err))
	}
	c.String(status, err.Error())
}

func (s *Server) carouselState(c *gin.Context) {
	sess, err := s.carousels.Get(c.Param("sid"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	sess.Touch()
	c.JSON(http.StatusOK, sess.Snapshot())
}

// carouselSocket streams every change of a session, autoplay included, and
// accepts commands. The session is closed when the socket goes away.
func (s *Server) carouselSocket(c *gin.Context) {
	sess, err := s.carousels.Get(c.Param("sid"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	asJSON := c.Query("format") == "json"
	log := s.logger.With(zap.String("session", sess.ID))
	log.Debug("ws connected", zap.Bool("json", asJSON))

	updates, stop := sess.Watch()
	errs := make(chan error, 8)
	done := make(chan struct{})
	go s.readCommands(conn, sess, errs, done, log)

	defer func() {
		stop()
		conn.Close()
		<-done
		s.carousels.Close(sess.ID)
		log.Debug("ws disconnected")
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.writeSnapshot(conn, sess.Snapshot(), asJSON); err != nil {
		log.Debug("ws write", zap.Error(err))
		return
	}
	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := s.writeSnapshot(conn, snap, asJSON); err != nil {
				log.Debug("ws write", zap.Error(err))
				return
			}
		case err := <-errs:
			if !asJSON {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(envelope{Type: "error", Data: err.Error()}); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeSnapshot sends snap as a JSON envelope or as the rendered fragment,
// which the htmx ws extension swaps in by element id.
func (s *Server) writeSnapshot(conn *websocket.Conn, snap carousel.Snapshot, asJSON bool) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if asJSON {
		return conn.WriteJSON(envelope{Type: "state", Data: snap})
	}
	name, v, err := s.fragment(snap)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, buf.Bytes())
}

// readCommands runs commands from the socket until it fails. Command errors
// are reported to the writer; they do not end the connection.
func (s *Server) readCommands(conn *websocket.Conn, sess *carousel.Session, errs chan<- error, done chan<- struct{}, log *zap.Logger) {
	defer close(done)
	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("ws read", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		cmd, err := decodeCommand(data)
		if err == nil {
			_, err = s.exec(sess, cmd)
		}
		if errors.Is(err, carousel.ErrClosed) {
			return
		}
		if err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	}
}
