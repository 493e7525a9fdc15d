// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是服务的全部配置。文件为 YAML，环境变量优先级最高。
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	} `yaml:"app"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | console
	} `yaml:"log"`

	Infra struct {
		Jaeger struct {
			Endpoint    string  `yaml:"endpoint"`
			SampleRatio float64 `yaml:"sample_ratio"`
		} `yaml:"jaeger"`
		MySQL struct {
			Addr         string `yaml:"addr"`
			User         string `yaml:"user"`
			Password     string `yaml:"password"`
			Database     string `yaml:"database"`
			MaxOpenConns int    `yaml:"max_open_conns"`
			AutoMigrate  bool   `yaml:"auto_migrate"`
		} `yaml:"mysql"`
		Redis struct {
			Addrs    string `yaml:"addrs"`
			Password string `yaml:"password"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers string `yaml:"brokers"`
			Topic   string `yaml:"topic"`
		} `yaml:"kafka"`
		Zookeeper struct {
			Servers        string        `yaml:"servers"`
			SessionTimeout time.Duration `yaml:"session_timeout"`
			WriterLock     string        `yaml:"writer_lock"`
		} `yaml:"zookeeper"`
	} `yaml:"infra"`

	Nacos struct {
		ServerAddrs  string `yaml:"server_addrs"`
		Namespace    string `yaml:"namespace"`
		Group        string `yaml:"group"`
		ConfigDataID string `yaml:"config_data_id"`
	} `yaml:"nacos"`

	Settlement struct {
		BonusLevels       map[int]int64 `yaml:"bonus_levels"`
		CommissionBPS     map[int]int64 `yaml:"commission_bps"`
		QualificationRule string        `yaml:"qualification_rule"`
	} `yaml:"settlement"`

	Access struct {
		BootstrapAdmins []string `yaml:"bootstrap_admins"`
	} `yaml:"access"`

	Idempotency struct {
		TTL time.Duration `yaml:"ttl"`
	} `yaml:"idempotency"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return defaultConfig()
}

func setCurrentConfig(cfg *Config) {
	currentConfig.Store(cfg)
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "associate-ledger"
	cfg.App.Port = 8090
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Kafka.Topic = "associate-ledger-events"
	cfg.Infra.Zookeeper.SessionTimeout = 10 * time.Second
	cfg.Infra.Zookeeper.WriterLock = "associate-ledger-writer"
	cfg.Nacos.Group = "DEFAULT_GROUP"
	cfg.Idempotency.TTL = 24 * time.Hour
	return cfg
}

// ParseConfig 在默认值之上解析 YAML 文档
func ParseConfig(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := overlay(cfg, data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlay(cfg *Config, data []byte) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "parse yaml config")
	}
	return nil
}

// LoadConfig 读取配置文件，文件不存在时使用默认值，然后应用环境变量
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := overlay(cfg, data); err != nil {
			return nil, errors.WithMessagef(err, "config file %s", path)
		}
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 用环境变量覆盖基础设施地址
func applyEnv(cfg *Config) {
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", cfg.Infra.MySQL.Addr)
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.Infra.MySQL.Database)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Zookeeper.Servers = getEnv("ZOOKEEPER_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Nacos.ServerAddrs)
	cfg.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Nacos.Namespace)
	cfg.Nacos.Group = getEnv("NACOS_GROUP", cfg.Nacos.Group)
	if port, err := strconv.Atoi(getEnv("APP_PORT", "")); err == nil {
		cfg.App.Port = port
	}
}

// Validate 校验与部署相关的配置；结算表由领域层校验
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return errors.New("app.name is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.Errorf("app.port %d out of range", c.App.Port)
	}
	if c.Idempotency.TTL <= 0 {
		return errors.New("idempotency.ttl must be positive")
	}
	if c.Infra.MySQL.Addr != "" && c.Infra.MySQL.Database == "" {
		return errors.New("infra.mysql.database is required when infra.mysql.addr is set")
	}
	return nil
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
