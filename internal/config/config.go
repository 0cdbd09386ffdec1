package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Http    HttpConfig    `yaml:"http"`
	Db      DbConfig      `yaml:"db"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Smtp    SmtpConfig    `yaml:"smtp"`
	HA      HAConfig      `yaml:"ha"`
	Product string        `yaml:"product"`
	Support SupportConfig `yaml:"support"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
	Checks  ChecksConfig  `yaml:"checks"`
}

type HttpConfig struct {
	Port int `yaml:"port"`
}

type DbConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type SmtpConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	User     string   `yaml:"user"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type HAConfig struct {
	Licensed bool   `yaml:"licensed"`
	Node     string `yaml:"node"`     // "A" or "B"
	PeerURL  string `yaml:"peer_url"` // base URL of the other controller's alertd
}

type SupportConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Serial       string `yaml:"serial"`
	ContactName  string `yaml:"contact_name"`
	ContactEmail string `yaml:"contact_email"`
	ContactPhone string `yaml:"contact_phone"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	File   string `yaml:"file"`   // empty means stdout only
}

type TracingConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CollectorEndpoint string `yaml:"collector_endpoint"`
}

type ChecksConfig struct {
	Mountpoints []string `yaml:"mountpoints"`
}

func Load() (Config, error) {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		// Default: try relative path from project root
		configPath = "configs/prod.yaml"

		// If that doesn't exist, try from cmd/alertd
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "../../configs/prod.yaml"
		}
	}

	byteYaml, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("could not read %s: %w", configPath, err)
	}

	var config Config
	if err := yaml.Unmarshal(byteYaml, &config); err != nil {
		return Config{}, fmt.Errorf("could not unmarshal config: %w", err)
	}

	// Secrets come from the environment when set.
	if pw := os.Getenv("NASMON_DB_PASSWORD"); pw != "" {
		config.Db.Password = pw
	}
	if pw := os.Getenv("NASMON_SMTP_PASSWORD"); pw != "" {
		config.Smtp.Password = pw
	}

	if config.Product == "" {
		config.Product = "CORE"
	}
	if config.HA.Node == "" {
		config.HA.Node = "A"
	}

	return config, nil
}

func GetSlackToken() string {
	return os.Getenv("SLACK_BOT_TOKEN")
}
