package simulator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/telescopiosnaescola/argus/internal/timesync"
	"github.com/telescopiosnaescola/argus/pkg/api"
	"github.com/telescopiosnaescola/argus/pkg/astro"
	"github.com/telescopiosnaescola/argus/pkg/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The client dials with a Cookie header, not an Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socketClient is one connected realtime channel. writeMu serializes
// request replies with broadcast pushes.
type socketClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (sc *socketClient) send(msg realtime.Message) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.conn.WriteJSON(msg)
}

// handleSocket upgrades the connection and serves the realtime message
// loop until the peer disconnects.
func (s *Server) handleSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	client := &socketClient{conn: conn}
	s.addSocket(client)
	defer func() {
		s.removeSocket(client)
		_ = conn.Close()
	}()

	s.logger.Debug("Realtime channel opened", zap.String("email", c.GetString(ctxEmail)))

	for {
		var msg realtime.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.dispatchSocket(client, msg)
	}
}

func (s *Server) dispatchSocket(client *socketClient, msg realtime.Message) {
	switch msg.Type {
	case realtime.TypeCheckCoord:
		s.answerCoordCheck(client, msg, realtime.TypeCoordChecked, false)
	case realtime.TypeCheckCoordOnDate:
		s.answerCoordCheck(client, msg, realtime.TypeCoordCheckedOnDate, true)
	case realtime.TypeCheckTelescopeStatus:
		s.answerTelescopeStatus(client, msg)
	default:
		s.logger.Debug("Ignoring unknown realtime message", zap.String("type", msg.Type))
	}
}

func (s *Server) answerCoordCheck(client *socketClient, msg realtime.Message, replyType string, onDate bool) {
	reply := func(allowed bool, text string) {
		payload, _ := json.Marshal(realtime.CoordCheckResponse{Allowed: allowed, Message: text})
		if err := client.send(realtime.Message{Type: replyType, ID: msg.ID, Payload: payload}); err != nil {
			s.logger.Debug("Failed to send coordinate verdict", zap.Error(err))
		}
	}

	var req realtime.CoordCheckRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		reply(false, "malformed coordinate check request")
		return
	}

	ra, errRA := strconv.ParseFloat(strings.TrimSpace(req.RA), 64)
	dec, errDEC := strconv.ParseFloat(strings.TrimSpace(req.DEC), 64)
	if errRA != nil || errDEC != nil {
		reply(false, "coordinates must be decimal degrees")
		return
	}

	at := time.Now().UTC()
	if onDate {
		parsed, err := time.Parse(timesync.DateTimeLocal, req.Date)
		if err != nil {
			reply(false, "date is not a valid datetime")
			return
		}
		at = parsed.UTC()
	}

	allowed, distance := s.checkObservable(ra, dec, at)
	if allowed {
		reply(true, "coordinate is observable")
		return
	}
	reply(false, fmt.Sprintf("target not observable, %.1f degrees from zenith", distance))
}

func (s *Server) answerTelescopeStatus(client *socketClient, msg realtime.Message) {
	payload, _ := json.Marshal(s.store.telescopeStatus())
	if err := client.send(realtime.Message{Type: realtime.TypeTelescopeStatus, ID: msg.ID, Payload: payload}); err != nil {
		s.logger.Debug("Failed to send telescope status", zap.Error(err))
	}
}

func (s *Server) addSocket(client *socketClient) {
	s.socketMu.Lock()
	defer s.socketMu.Unlock()
	s.sockets[client] = struct{}{}
}

func (s *Server) removeSocket(client *socketClient) {
	s.socketMu.Lock()
	defer s.socketMu.Unlock()
	delete(s.sockets, client)
}

// pushTelescopeStatus broadcasts the current telescope register to every
// connected realtime channel.
func (s *Server) pushTelescopeStatus() {
	payload, _ := json.Marshal(s.store.telescopeStatus())
	msg := realtime.Message{Type: realtime.TypeTelescopeStatus, Payload: payload}

	s.socketMu.Lock()
	clients := make([]*socketClient, 0, len(s.sockets))
	for client := range s.sockets {
		clients = append(clients, client)
	}
	s.socketMu.Unlock()

	for _, client := range clients {
		if err := client.send(msg); err != nil {
			s.logger.Debug("Dropping broadcast to dead socket", zap.Error(err))
		}
	}
}

// executePlan drives the simulated telescope through one observation:
// slew, one exposure per filter, back to idle. Every register change is
// broadcast over the realtime channel.
func (s *Server) executePlan(plan api.ObservationPlan) {
	s.logger.Info("Executing plan", zap.Int("plan_id", plan.ID), zap.String("name", plan.Name))

	alt := astro.Altitude(time.Now().UTC(), plan.RA, plan.DEC, s.config.SiteLatitude, s.config.SiteLongitude)

	s.store.setTelescope(func(t *api.TelescopeStatus) {
		t.Status = "sending observation"
		t.RA = plan.RA
		t.DEC = plan.DEC
		t.Alt = alt
		t.ExecutingPlanID = plan.ID
		t.ExecutingPlanName = plan.Name
		t.Operation = "slewing to target"
	})
	s.pushTelescopeStatus()
	time.Sleep(s.config.SlewDuration)

	filters := plan.FilterList()
	for _, filter := range filters {
		s.store.setTelescope(func(t *api.TelescopeStatus) {
			t.Status = "executing observation"
			t.Operation = fmt.Sprintf("exposing %s filter for %.1fs", filter, plan.ExpTime)
		})
		s.pushTelescopeStatus()
		time.Sleep(time.Duration(plan.ExpTime*float64(time.Second)) + s.config.ExposureOverhead)
	}

	outputs := make([]string, 0, len(filters)+1)
	for _, filter := range filters {
		outputs = append(outputs, fmt.Sprintf("plan_%d_%s.fits", plan.ID, strings.ToLower(filter)))
	}
	outputs = append(outputs, fmt.Sprintf("plan_%d_preview.gif", plan.ID))

	s.store.markExecuted(plan.ID, time.Now().UTC().Format(time.RFC3339), strings.Join(outputs, ","))

	s.store.setTelescope(func(t *api.TelescopeStatus) {
		t.Status = "idle"
		t.ExecutingPlanID = 0
		t.ExecutingPlanName = ""
		t.Operation = ""
	})
	s.pushTelescopeStatus()

	s.logger.Info("Plan executed", zap.Int("plan_id", plan.ID), zap.Strings("outputs", outputs))
}
