package config

import (
	"os"

	"github.com/rauletepaz/account-verifactu/internal/aeat"
	"github.com/rauletepaz/account-verifactu/internal/record"
)

// Server is the process configuration, built once and passed down explicitly.
type Server struct {
	Addr string

	Environment aeat.Environment
	Mode        aeat.Mode
	Endpoints   aeat.Endpoints
	SOAPAction  string
	TLSVerify   bool

	// QRBase overrides the endpoint-derived verification base when set.
	QRBase string

	DatabaseDSN string

	JWTSigningKey string

	CredentialPath     string
	CredentialPassword string

	System record.SystemInfo
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	endpoints := aeat.DefaultEndpoints()
	if v := os.Getenv("VERIFACTU_ENDPOINT_PRODUCTION"); v != "" {
		endpoints.ProductionVerifiable = v
	}
	if v := os.Getenv("VERIFACTU_ENDPOINT_PRODUCTION_NONVERIFIABLE"); v != "" {
		endpoints.ProductionNonVerifiable = v
	}
	if v := os.Getenv("VERIFACTU_ENDPOINT_TEST"); v != "" {
		endpoints.TestVerifiable = v
	}
	if v := os.Getenv("VERIFACTU_ENDPOINT_TEST_NONVERIFIABLE"); v != "" {
		endpoints.TestNonVerifiable = v
	}

	env := aeat.EnvironmentTest
	if os.Getenv("VERIFACTU_ENVIRONMENT") == string(aeat.EnvironmentProduction) {
		env = aeat.EnvironmentProduction
	}
	mode := aeat.ModeVerifiable
	if os.Getenv("VERIFACTU_MODE") == string(aeat.ModeNonVerifiable) {
		mode = aeat.ModeNonVerifiable
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:               getenvDefault("VERIFACTU_ADDR", ":8080"),
		Environment:        env,
		Mode:               mode,
		Endpoints:          endpoints,
		SOAPAction:         os.Getenv("VERIFACTU_SOAP_ACTION"),
		TLSVerify:          os.Getenv("VERIFACTU_TLS_INSECURE") != "true",
		QRBase:             os.Getenv("VERIFACTU_QR_BASE"),
		DatabaseDSN:        os.Getenv("VERIFACTU_DB_DSN"),
		JWTSigningKey:      jwtSigningKey,
		CredentialPath:     os.Getenv("VERIFACTU_CERT_PATH"),
		CredentialPassword: os.Getenv("VERIFACTU_CERT_PASSWORD"),
		System: record.SystemInfo{
			SystemID:           getenvDefault("VERIFACTU_SYSTEM_ID", "77"),
			Version:            getenvDefault("VERIFACTU_SYSTEM_VERSION", "1.0"),
			InstallationNumber: getenvDefault("VERIFACTU_INSTALLATION_NUMBER", "1"),
		},
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
