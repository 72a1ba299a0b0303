// Package config loads process configuration from the environment, the
// way the teacher's cmd/main.go files do with getEnv/getEnvInt, rather
// than through a config file or a library like viper: there is nothing in
// this repo's dependency surface that reaches for one, so none is added.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds one service's Postgres connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// DSN renders the libpq connection string used by database/sql + lib/pq.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// ChaosConfig holds the fault-injection toggles named in spec §6, used
// only by the Inventory Custodian to exercise the coordinator's timeout
// and crash-recovery paths (boundary scenarios 3 and 4).
type ChaosConfig struct {
	GremlinMode                 bool
	GremlinMinDelay             time.Duration
	GremlinMaxDelay             time.Duration
	SchrodingerMode             bool
	SchrodingerCrashProbability float64
}

// Config is the full set of environment-derived settings for one process.
type Config struct {
	ServiceName string
	Environment string

	DB DatabaseConfig

	RedisAddr    string
	KafkaBrokers []string

	HTTPPort string
	GRPCPort string

	// InventoryServiceHost is the order coordinator's dial target for the
	// Inventory gRPC service; empty in the inventory process itself.
	InventoryServiceHost string

	// CatalogServiceURL is the order coordinator's passthrough target for
	// GET /products and GET /products/:id/stock (§6); the catalog service
	// itself is out of scope.
	CatalogServiceURL string

	// ProtoPath is accepted for wire compatibility with deployments that
	// still point at a .proto descriptor directory; this implementation's
	// gRPC layer (common/grpcjson) has no descriptor to load, so the value
	// is carried but unused.
	ProtoPath string

	// BusDSN carries AZURE_SERVICE_BUS_CONNECTION_STRING. The bus transport
	// in this implementation is Kafka-only (see DESIGN.md); the value is
	// read and stored but not parsed or used, and KafkaBrokers alone
	// selects the brokers.
	BusDSN string

	Chaos ChaosConfig
}

// dbEnvDefaults lets each service pick its own default DSN pieces while
// sharing the same env var names, matching spec §6.
type dbEnvDefaults struct {
	host, port, name, user, password string
}

// Load reads the environment for serviceName, applying per-service
// defaults for the database connection.
func Load(serviceName string, dbDefaults dbEnvDefaults) Config {
	return Config{
		ServiceName: serviceName,
		Environment: getEnv("ENVIRONMENT", "development"),
		DB: DatabaseConfig{
			Host:     getEnv("DB_HOST", dbDefaults.host),
			Port:     getEnvInt("DB_PORT", mustAtoi(dbDefaults.port)),
			Name:     getEnv("DB_NAME", dbDefaults.name),
			User:     getEnv("DB_USER", dbDefaults.user),
			Password: getEnv("DB_PASSWORD", dbDefaults.password),
		},
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:         getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		GRPCPort:             getEnv("GRPC_PORT", "9090"),
		InventoryServiceHost: getEnv("INVENTORY_SERVICE_HOST", "localhost:9090"),
		CatalogServiceURL:    getEnv("CATALOG_SERVICE_URL", "http://localhost:8090"),
		ProtoPath:            getEnv("PROTO_PATH", ""),
		BusDSN:               getEnv("AZURE_SERVICE_BUS_CONNECTION_STRING", ""),
		Chaos: ChaosConfig{
			GremlinMode:                 getEnvBool("GREMLIN_MODE", false),
			GremlinMinDelay:             time.Duration(getEnvInt("GREMLIN_MIN_DELAY_MS", 0)) * time.Millisecond,
			GremlinMaxDelay:             time.Duration(getEnvInt("GREMLIN_MAX_DELAY_MS", 0)) * time.Millisecond,
			SchrodingerMode:             getEnvBool("SCHRODINGER_MODE", false),
			SchrodingerCrashProbability: getEnvFloat("SCHRODINGER_CRASH_PROBABILITY", 0),
		},
	}
}

// LoadOrderCoordinator loads the Order Coordinator's configuration.
func LoadOrderCoordinator() Config {
	return Load("order-coordinator", dbEnvDefaults{
		host: "localhost", port: "54321", name: "order_db", user: "order", password: "order",
	})
}

// LoadInventoryCustodian loads the Inventory Custodian's configuration.
func LoadInventoryCustodian() Config {
	return Load("inventory-custodian", dbEnvDefaults{
		host: "localhost", port: "54323", name: "inventory_db", user: "inventory", password: "inventory",
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic(err)
	}
	return n
}
