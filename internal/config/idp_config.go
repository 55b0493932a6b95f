package config

import "time"

type IdPConfig interface {
	GetIdPIssuerURL() string
	GetIdPClientID() string
	GetIdPClientSecret() string
	GetIdPTimeout() time.Duration
}

type IdP struct{}

var _ IdPConfig = IdP{}

// GetIdPIssuerURL returns the realm issuer, e.g.
// https://idp.example.com/realms/main
func (IdP) GetIdPIssuerURL() string {
	return GetEnv("IDP_ISSUER_URL", "http://localhost:8180/realms/main")
}

func (IdP) GetIdPClientID() string {
	return GetEnv("IDP_CLIENT_ID", "session-gateway")
}

func (IdP) GetIdPClientSecret() string {
	return GetEnv("IDP_CLIENT_SECRET", "")
}

func (IdP) GetIdPTimeout() time.Duration {
	return GetDurationEnv("IDP_TIMEOUT", 10*time.Second)
}
