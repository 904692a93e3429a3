package dotenv

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvVar  = "TRANSFERJUICE_ENV"
	DevEnv  = "dev"
	ProdEnv = "prod"
)

// LoadDotEnvs loads the .env files following the convention:
// https://github.com/bkeepers/dotenv#what-other-env-files-can-i-use
// It only needs to be called once in the main function, other code reads env
// through os.Getenv during runtime.
func LoadDotEnvs() error {
	env := os.Getenv(EnvVar)
	if env == "" {
		env = DevEnv
	}

	// .env.[runtime_env].local has highest priority, usually contains
	// credentials and other sensitive information
	godotenv.Load(".env." + env + ".local")
	godotenv.Load(".env.local")
	// .env.[runtime_env] usually contains db connection information
	godotenv.Load(".env." + env)
	// .env contains shared variables, overwritten by any of the above
	godotenv.Load(".env")
	return nil
}
