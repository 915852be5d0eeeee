package snx

import (
	"encoding/json"
	"fmt"
)

// ClientHello is the handshake request sent right after the transport is
// established, and again (with KeepAddress set) after every
// reauthentication to renew the address lease.
type ClientHello struct {
	ClientVersion        string           `json:"client_version"`
	ProtocolVersion      string           `json:"protocol_version"`
	ProtocolMinorVersion string           `json:"protocol_minor_version"`
	OfficeMode           OfficeMode       `json:"office_mode"`
	Optional             *OptionalRequest `json:"optional,omitempty"`
	Cookie               string           `json:"cookie"`
}

// OfficeMode carries the assigned (or requested) tunnel address.
type OfficeMode struct {
	IPAddr      string   `json:"ipaddr"`
	KeepAddress *string  `json:"keep_address,omitempty"`
	DNSServers  []string `json:"dns_servers,omitempty"`
	DNSSuffix   *string  `json:"dns_suffix,omitempty"`
}

type OptionalRequest struct {
	ClientType string `json:"client_type"`
}

// HelloReply is the gateway's answer to a ClientHello. The timeout values
// are decimal seconds encoded as strings.
type HelloReply struct {
	OfficeMode OfficeMode `json:"office_mode"`
	Timeouts   Timeouts   `json:"timeouts"`
}

type Timeouts struct {
	Authentication string `json:"authentication"`
	Keepalive      string `json:"keepalive"`
}

type KeepaliveRequest struct {
	ID string `json:"id"`
}

// ToPayload converts a typed control message into the generic payload map
// carried by a control packet.
func ToPayload(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ToPayload: failed to marshal message: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, fmt.Errorf("ToPayload: failed to convert message: %w", err)
	}
	return payload, nil
}

// FromPayload parses the generic payload map of a control packet into a
// typed control message.
func FromPayload(payload map[string]interface{}, v interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("FromPayload: failed to convert payload: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("FromPayload: failed to parse payload: %w", err)
	}
	return nil
}
