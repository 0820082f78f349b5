package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/estufa-core/internal/device"
	"github.com/nerrad567/estufa-core/internal/link"
)

// brokerStatus is the mqtt_status object of GET /broker/status.
type brokerStatus struct {
	Connected bool               `json:"connected"`
	State     link.State         `json:"state"`
	Broker    string             `json:"broker"`
	Port      int                `json:"port"`
	LastError string             `json:"last_error,omitempty"`
	Since     time.Time          `json:"since"`
	Topics    []link.TopicHealth `json:"topics"`
}

// commandRequest is the body of POST /broker/command. The web tier has
// sent both session_id and sessao_id over time; session_id wins.
type commandRequest struct {
	DeviceType string `json:"device_type"`
	Command    string `json:"command"`
	SessionID  *int64 `json:"session_id"`
	SessaoID   *int64 `json:"sessao_id"`
}

func (s *Server) handleBrokerStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.link.Status()

	topics, err := s.link.Topics(r.Context())
	if err != nil {
		s.logger.Error("loading topic health", "error", err)
		writeInternalError(w, "failed to load broker status")
		return
	}
	if topics == nil {
		topics = []link.TopicHealth{}
	}

	writeOK(w, map[string]any{
		"mqtt_status": brokerStatus{
			Connected: snap.Connected,
			State:     snap.State,
			Broker:    snap.Broker,
			Port:      snap.Port,
			LastError: snap.LastError,
			Since:     snap.Since,
			Topics:    topics,
		},
	})
}

func (s *Server) handleBrokerCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sessionID := req.SessionID
	if sessionID == nil {
		sessionID = req.SessaoID
	}

	var userRef string
	if claims := claimsFromContext(r.Context()); claims != nil {
		userRef = claims.Subject
	}

	cmd, err := s.commands.Send(r.Context(), device.Request{
		Class:     req.DeviceType,
		Command:   req.Command,
		SessionID: sessionID,
		UserRef:   userRef,
	})
	if err != nil {
		if !device.IsValidation(err) {
			s.logger.Warn("manual command failed",
				"device_type", req.DeviceType,
				"command", req.Command,
				"user", userRef,
				"error", err,
			)
		}
		writeCommandError(w, err)
		return
	}

	s.logger.Info("manual command sent",
		"device_type", cmd.Class,
		"command", cmd.Command,
		"user", userRef,
		"command_id", cmd.ID,
	)
	writeOK(w, map[string]any{
		"message": "Comando enviado com sucesso",
		"command": cmd,
	})
}
