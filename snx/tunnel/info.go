package tunnel

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SessionInfo is the state of a running session as exposed by the info
// endpoint.
type SessionInfo struct {
	// Address is the tunnel address leased by the gateway.
	Address string `json:"address"`
	// SessionID is the current server side session id.
	SessionID string `json:"sessionId"`
	// Established reports whether the handshake has completed.
	Established bool `json:"established"`
}

// Info returns a snapshot of the session state.
func (s *TunnelSession) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		Address:     s.ipAddress,
		SessionID:   s.sessionID,
		Established: s.keepaliveInterval != 0,
	}
}

// ServeTunnelInfo starts a simple http server that exposes the state of
// the running session on localhost under /tunnel.
func ServeTunnelInfo(s *TunnelSession, port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/tunnel", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Add("Content-Type", "application/json")
		enc := json.NewEncoder(writer)
		if err := enc.Encode(s.Info()); err != nil {
			return
		}
	})
	if err := http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), mux); err != nil {
		return fmt.Errorf("ServeTunnelInfo: failed to start http server: %w", err)
	}
	return nil
}
