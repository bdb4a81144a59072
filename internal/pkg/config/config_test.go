package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  serviceName: order-service
  port: 9090
infra:
  mysqlDsn: "root@tcp(localhost:3306)/orders"
  kafkaBrokers:
    - "broker-1:9092"
    - "broker-2:9092"
order:
  paymentTimeout: 10s
  carrier: DHL
  businessRules:
    purchase_cap: "totalQuantity <= 50"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Infra.KafkaBrokers)
	assert.Equal(t, 10*time.Second, cfg.Order.PaymentTimeout.Std())
	assert.Equal(t, "DHL", cfg.Order.Carrier)
	assert.Equal(t, "totalQuantity <= 50", cfg.Order.BusinessRules["purchase_cap"])
}

func TestLoad_DefaultsSurviveSparseFile(t *testing.T) {
	path := writeConfig(t, `
infra:
  redisAddr: "localhost:6379"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "order-service", cfg.App.ServiceName)
	assert.Equal(t, 8084, cfg.App.Port)
	assert.Equal(t, 30*time.Second, cfg.Order.PaymentTimeout.Std())
	assert.Equal(t, 15*time.Minute, cfg.Order.PaymentDue.Std())
	assert.Equal(t, "order-notifications", cfg.Order.NotificationTopic)
	assert.Equal(t, "localhost:6379", cfg.Infra.RedisAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvFallback(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 7001
`)
	t.Setenv("ORDERFLOW_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.App.Port)
}
