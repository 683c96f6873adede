package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration 让 time.Duration 可以从 YAML 的 "500ms" / "3s" 形式解析。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config 汇总了 order-service 的全部外部配置。
// 配置文件缺省时使用内置默认值，个别字段可被环境变量覆盖（见 Load）。
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Jaeger     JaegerConfig            `yaml:"jaeger"`
	Kafka      KafkaConfig             `yaml:"kafka"`
	MySQL      MySQLConfig             `yaml:"mysql"`
	Redis      RedisConfig             `yaml:"redis"`
	Inventory  InventoryConfig         `yaml:"inventory"`
	Nacos      NacosConfig             `yaml:"nacos"`
	Resilience map[string]PolicyConfig `yaml:"resilience"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metricsPort"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	NotificationTopic string   `yaml:"notificationTopic"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	CacheTTL Duration `yaml:"cacheTTL"`
}

// InventoryConfig 指定库存服务的访问方式。
// Nacos 开启时按 Service 名做服务发现，否则直连 URL。
type InventoryConfig struct {
	URL     string `yaml:"url"`
	Service string `yaml:"service"`
	Path    string `yaml:"path"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

// PolicyConfig 对应一个命名弹性策略（重试/限时/熔断/降级），
// 形式上对齐常见的 per-name 弹性配置（resilience.<name>.*）。
type PolicyConfig struct {
	MaxAttempts          int      `yaml:"maxAttempts"`
	WaitDuration         Duration `yaml:"waitDuration"`
	AttemptTimeout       Duration `yaml:"attemptTimeout"`
	FailureRateThreshold float64  `yaml:"failureRateThreshold"`
	SlidingWindowSize    int      `yaml:"slidingWindowSize"`
	MinimumCalls         int      `yaml:"minimumCalls"`
	OpenStateDuration    Duration `yaml:"openStateDuration"`
	HalfOpenMaxCalls     int      `yaml:"halfOpenMaxCalls"`
}

// Default 返回适合本地运行的一套默认配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, MetricsPort: 8081},
		Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			NotificationTopic: "notificationTopic",
		},
		MySQL: MySQLConfig{DSN: "root:root@tcp(localhost:3306)/orders?charset=utf8mb4&parseTime=True"},
		Redis: RedisConfig{Addr: "localhost:6379", CacheTTL: Duration(5 * time.Minute)},
		Inventory: InventoryConfig{
			URL:     "http://localhost:8082",
			Service: "inventory-service",
			Path:    "/api/inventory",
		},
		Nacos: NacosConfig{Addrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		Resilience: map[string]PolicyConfig{
			"inventory": {
				MaxAttempts:          3,
				WaitDuration:         Duration(500 * time.Millisecond),
				AttemptTimeout:       Duration(3 * time.Second),
				FailureRateThreshold: 0.5,
				SlidingWindowSize:    10,
				MinimumCalls:         5,
				OpenStateDuration:    Duration(10 * time.Second),
				HalfOpenMaxCalls:     2,
			},
		},
	}
}

// Load 读取 path 指定的 YAML 配置并与默认值合并。
// path 为空时尝试 CONFIG_PATH 环境变量，二者皆空则直接返回默认配置。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	// 常用的几个环境变量覆盖，和各服务 main 里的 getEnv 习惯保持一致
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		cfg.Jaeger.Endpoint = v
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitNonEmpty(v)
	}
	if v, ok := os.LookupEnv("MYSQL_DSN"); ok {
		cfg.MySQL.DSN = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("INVENTORY_URL"); ok {
		cfg.Inventory.URL = v
	}
	return cfg, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
