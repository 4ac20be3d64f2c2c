// Package security provides TLS configuration types shared by the collector
// transports and the local metrics server.
package security

// Config holds security configuration
type Config struct {
	TLS TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig holds TLS configuration for the local server and outbound clients
type TLSConfig struct {
	Server ServerTLSConfig `json:"server,omitempty" yaml:"server,omitempty"`
	Client ClientTLSConfig `json:"client,omitempty" yaml:"client,omitempty"`
}

// ServerMTLSConfig holds mTLS configuration for servers (client certificate validation)
type ServerMTLSConfig struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	ClientCAFiles     []string `json:"clientCaFiles,omitempty" yaml:"clientCaFiles,omitempty"`
	RequireClientCert bool     `json:"requireClientCert,omitempty" yaml:"requireClientCert,omitempty"`
	AllowedClientCNs  []string `json:"allowedClientCns,omitempty" yaml:"allowedClientCns,omitempty"`
}

// ServerTLSConfig holds TLS configuration for the metrics and ingest server
type ServerTLSConfig struct {
	Enabled    bool             `json:"enabled" yaml:"enabled"`
	CertFile   string           `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile    string           `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	MinVersion string           `json:"minVersion,omitempty" yaml:"minVersion,omitempty"` // "1.2" or "1.3"
	MTLS       ServerMTLSConfig `json:"mtls,omitempty" yaml:"mtls,omitempty"`
}

// ClientMTLSConfig holds the client certificate presented to collectors
type ClientMTLSConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	CertFile string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
}

// ClientTLSConfig holds TLS configuration for outbound transports.
// The system CA bundle is always trusted; CAFiles are additional trusted CAs.
type ClientTLSConfig struct {
	Enabled            bool             `json:"enabled" yaml:"enabled"`
	CAFiles            []string         `json:"caFiles,omitempty" yaml:"caFiles,omitempty"`
	InsecureSkipVerify bool             `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"` // DEV/TEST ONLY
	MinVersion         string           `json:"minVersion,omitempty" yaml:"minVersion,omitempty"`
	MTLS               ClientMTLSConfig `json:"mtls,omitempty" yaml:"mtls,omitempty"`
}
