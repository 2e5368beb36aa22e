package config

const (
	EnvPrefix = "licensecore"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LICENSECORE_DB_DSN"
	EnvDBHost = "LICENSECORE_DB_HOST"
	EnvDBUser = "LICENSECORE_DB_USER"
	EnvDBName = "LICENSECORE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
