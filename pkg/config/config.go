package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWKS     = "jwks"
	AuthDev      = "dev"
)

type Config struct {
	ServerPort  string
	Environment string

	FirebaseProject            string
	FirebaseServiceAccountJSON string
	FirebaseServiceAccountPath string

	StoreDriver   string
	MongoURL      string
	MongoDatabase string

	AuthMode       string
	JWKSURL        string
	TokenIssuer    string
	TokenAudience  string
	DevTokenSecret string
	DevTokenTTL    time.Duration

	AllowedOrigins []string
	WSSendBuffer   int
}

func Load() (*Config, error) {
	godotenv.Load()

	project := getEnv("FIREBASE_PROJECT_ID", "")

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		FirebaseProject:            project,
		FirebaseServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", "./firebase-adminsdk.json"),

		StoreDriver:   getEnv("STORE_DRIVER", StoreFirestore),
		MongoURL:      getEnv("MONGO_URL", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase: getEnv("MONGO_DATABASE", "tutorlink"),

		AuthMode: getEnv("AUTH_MODE", AuthFirebase),
		// Firebase ID tokens are signed by the securetoken service account.
		JWKSURL:        getEnv("JWKS_URL", "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"),
		TokenIssuer:    getEnv("TOKEN_ISSUER", "https://securetoken.google.com/"+project),
		TokenAudience:  getEnv("TOKEN_AUDIENCE", project),
		DevTokenSecret: getEnv("DEV_TOKEN_SECRET", "tutorlink-dev-secret"),
		DevTokenTTL:    time.Duration(getEnvAsInt64("DEV_TOKEN_TTL", 15*60)) * time.Second,

		AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", "*"),
		WSSendBuffer:   int(getEnvAsInt64("WS_SEND_BUFFER", 256)),
	}

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
