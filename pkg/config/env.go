package config

import "time"

const EnvPrefix = "SHOPCORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SHOPCORE_APP_ENV"
	EnvPort     = "SHOPCORE_APP_PORT"
	EnvLogLevel = "SHOPCORE_LOG_LEVEL"

	EnvDBDSN  = "SHOPCORE_DB_DSN"
	EnvDBHost = "SHOPCORE_DB_HOST"
	EnvDBUser = "SHOPCORE_DB_USER"
	EnvDBName = "SHOPCORE_DB_NAME"

	EnvRedisURL = "SHOPCORE_REDIS_URL"

	EnvReservationTTL           = "SHOPCORE_RESERVATION_TTL"
	EnvReservationSweepInterval = "SHOPCORE_RESERVATION_SWEEP_INTERVAL"

	EnvGCPProjectID      = "SHOPCORE_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "SHOPCORE_PUBSUB_DOMAIN_TOPIC"
)

// DefaultReservationTTL is how long a hold survives without confirmation.
const DefaultReservationTTL = 30 * time.Minute

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
