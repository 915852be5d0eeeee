package snx

// TunnelParams is the static configuration for a tunnel connection.
// It is filled in by the CLI and handed to the client as-is.
type TunnelParams struct {
	// ServerName is the hostname of the VPN gateway. The tunnel transport
	// always uses the standard TLS port 443.
	ServerName string
	// UserName and Password are the credentials for the initial
	// authentication exchange.
	UserName string
	Password string
	// TunName is the requested name of the virtual network interface.
	// Leave empty to let the OS pick one.
	TunName string
	// Reauth enables proactive credential renewal before the
	// server-declared session lifetime expires.
	Reauth bool
}
