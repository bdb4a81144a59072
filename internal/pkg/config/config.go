package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration, loaded once at startup.
type Config struct {
	App   App   `yaml:"app"`
	Infra Infra `yaml:"infra"`
	Order Order `yaml:"order"`
}

type App struct {
	ServiceName string `yaml:"serviceName"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
}

type Infra struct {
	MySQLDSN     string   `yaml:"mysqlDsn"`
	RedisAddr    string   `yaml:"redisAddr"`
	KafkaBrokers []string `yaml:"kafkaBrokers"`
	ZooKeeper    []string `yaml:"zookeeper"`
	Jaeger       Jaeger   `yaml:"jaeger"`
}

type Jaeger struct {
	Endpoint string `yaml:"endpoint"`
}

// Order holds the workflow knobs of the order service.
type Order struct {
	PaymentTimeout    Duration          `yaml:"paymentTimeout"`
	PaymentDue        Duration          `yaml:"paymentDue"`
	Carrier           string            `yaml:"carrier"`
	LowStockThreshold int               `yaml:"lowStockThreshold"`
	NotificationTopic string            `yaml:"notificationTopic"`
	ShipmentStatusURL string            `yaml:"shipmentStatusUrl"`
	Downstream        Downstream        `yaml:"downstream"`
	BusinessRules     map[string]string `yaml:"businessRules"`
}

// Downstream lists the base URLs of the collaborator services.
type Downstream struct {
	PaymentURL   string `yaml:"paymentUrl"`
	InventoryURL string `yaml:"inventoryUrl"`
	ShippingURL  string `yaml:"shippingUrl"`
	CustomerURL  string `yaml:"customerUrl"`
	ProductURL   string `yaml:"productUrl"`
}

// Load reads the YAML config from path, falling back to the ORDERFLOW_CONFIG
// environment variable when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ORDERFLOW_CONFIG")
	}
	if path == "" {
		path = "configs/config.yaml"
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: App{
			ServiceName: "order-service",
			Port:        8084,
			LogLevel:    "info",
		},
		Order: Order{
			PaymentTimeout:    Duration(30 * time.Second),
			PaymentDue:        Duration(15 * time.Minute),
			Carrier:           "UPS",
			LowStockThreshold: 5,
			NotificationTopic: "order-notifications",
		},
	}
}
