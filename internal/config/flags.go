package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-auth-url accounts server base URL
//	-token-url token server endpoint
//	-cert-duration identity certificate validity (e.g., "1h")
//	-d sqlite database path
//	-watermarks watermark file path
//	-credentials credential file path (file store instead of keyring)
//	-keyring-service secret-service entry name
//	-interval sync interval (e.g., "5m")
//	-request-timeout outbound request timeout (e.g., "30s")
//	-push-rate record writes per second
//	-once run a single cycle and exit
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	var authServerURL string
	var tokenServerURL string
	var certDuration time.Duration
	var dbPath string
	var watermarkPath string
	var credentialsPath string
	var keyringService string
	var syncInterval time.Duration
	var requestTimeout time.Duration
	var pushRate float64
	var runOnce bool
	var jsonConfigPath string

	flag.StringVar(&authServerURL, "auth-url", "", "Accounts server base URL")
	flag.StringVar(&tokenServerURL, "token-url", "", "Token server endpoint")
	flag.DurationVar(&certDuration, "cert-duration", 0, "Identity certificate validity (e.g., 1h)")
	flag.StringVar(&dbPath, "d", "", "SQLite database path")
	flag.StringVar(&watermarkPath, "watermarks", "", "Watermark file path")
	flag.StringVar(&credentialsPath, "credentials", "", "Credential file path (use file store instead of keyring)")
	flag.StringVar(&keyringService, "keyring-service", "", "Secret-service entry name")
	flag.DurationVar(&syncInterval, "interval", 0, "Sync interval (e.g., 5m)")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 30s)")
	flag.Float64Var(&pushRate, "push-rate", 0, "Record writes per second")
	flag.BoolVar(&runOnce, "once", false, "Run a single sync cycle and exit")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	return &StructuredConfig{
		Account: Account{
			AuthServerURL:  authServerURL,
			TokenServerURL: tokenServerURL,
			CertDuration:   certDuration,
		},
		Sync: Sync{
			Interval:       syncInterval,
			RequestTimeout: requestTimeout,
			PushRate:       pushRate,
			RunOnce:        runOnce,
		},
		Storage: Storage{
			DBPath:          dbPath,
			WatermarkPath:   watermarkPath,
			CredentialsPath: credentialsPath,
			KeyringService:  keyringService,
		},
		JSONFilePath: jsonConfigPath,
	}
}
