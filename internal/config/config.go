package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrEnvVarNotFound error = errors.New("environment variable not found")

const (
	apiPortEnvKey       = "API_PORT"
	dbDriverEnvKey      = "DB_DRIVER"
	dbConnEnvKey        = "DB_CONNECTION_URL"
	sessionSecretEnvKey = "SESSION_SECRET"
	sessionSecureEnvKey = "SESSION_SECURE"
	jwtSecretEnvKey     = "JWT_SECRET"
	bcryptCostEnvKey    = "BCRYPT_COST"
	logLevelEnvKey      = "LOG_LEVEL"
	seedEnvKey          = "SEED_DEMO_DATA"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type App struct {
	Port            string
	DBDriver        string
	DBConnectionURL string
	SessionSecret   string
	SessionSecure   bool
	JWTSecret       string
	BcryptCost      int
	LogLevel        string
	SeedDemoData    bool
}

// NewAppConfig loads an optional .env file and reads the application
// settings from the environment.
func NewAppConfig() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return App{}, fmt.Errorf("load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(apiPortEnvKey, "5000")
	v.SetDefault(dbDriverEnvKey, DriverPostgres)
	v.SetDefault(bcryptCostEnvKey, 12)
	v.SetDefault(logLevelEnvKey, "info")
	v.SetDefault(seedEnvKey, false)
	v.SetDefault(sessionSecureEnvKey, false)

	return newApp(v)
}

func newApp(v *viper.Viper) (App, error) {
	for _, key := range []string{dbConnEnvKey, sessionSecretEnvKey, jwtSecretEnvKey} {
		if !v.IsSet(key) || v.GetString(key) == "" {
			return App{}, fmt.Errorf("%w: %s", ErrEnvVarNotFound, key)
		}
	}

	driver := v.GetString(dbDriverEnvKey)
	if driver != DriverPostgres && driver != DriverSQLite {
		return App{}, fmt.Errorf("unsupported %s %q", dbDriverEnvKey, driver)
	}

	return App{
		Port:            v.GetString(apiPortEnvKey),
		DBDriver:        driver,
		DBConnectionURL: v.GetString(dbConnEnvKey),
		SessionSecret:   v.GetString(sessionSecretEnvKey),
		SessionSecure:   v.GetBool(sessionSecureEnvKey),
		JWTSecret:       v.GetString(jwtSecretEnvKey),
		BcryptCost:      v.GetInt(bcryptCostEnvKey),
		LogLevel:        v.GetString(logLevelEnvKey),
		SeedDemoData:    v.GetBool(seedEnvKey),
	}, nil
}
