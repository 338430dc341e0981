package config

import (
	"errors"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Log         struct {
		Level string `env:"LEVEL" envDefault:"info"`
	} `envPrefix:"LOG_"`
	Server struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
		APIKeyHash      string `env:"API_KEY_HASH"` // bcrypt 哈希，为空时本地 API 只开放只读接口
	} `envPrefix:"SERVER_"`
	Backend struct {
		BaseURL        string `env:"BASE_URL" envDefault:"http://localhost:8080"`
		RequestTimeout int    `env:"REQUEST_TIMEOUT" envDefault:"30"`
		Email          string `env:"EMAIL"`    // monitor 必填，见 LoadMonitorConfig
		Password       string `env:"PASSWORD"` // monitor 必填，见 LoadMonitorConfig
	} `envPrefix:"BACKEND_"`
	Poll struct {
		Interval int `env:"INTERVAL" envDefault:"300"` // 5 分钟
	} `envPrefix:"POLL_"`
	Escalation struct {
		OverdueDays int `env:"OVERDUE_DAYS" envDefault:"7"`
	} `envPrefix:"ESCALATION_"`
	Database struct {
		DSN            string `env:"DSN"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout   int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		MaxOpenConns   int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns   int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime    int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	Email struct {
		Recipients   []string `env:"RECIPIENTS" envSeparator:","`
		DashboardURL string   `env:"DASHBOARD_URL"`
		TemplateDir  string   `env:"TEMPLATE_DIR" envDefault:"./templates"`
		SMTP         struct {
			Username    string `env:"USERNAME"`
			Password    string `env:"PASSWORD"`
			Host        string `env:"HOST"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN"`
		Queue          string `env:"QUEUE" envDefault:"escalation_notices"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host             string `env:"HOST" envDefault:"localhost"`
		Port             int    `env:"PORT" envDefault:"6379"`
		Password         string `env:"PASSWORD"`
		ConnectTimeout   int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		SnapshotTTL      int    `env:"SNAPSHOT_TTL" envDefault:"900"` // 15 分钟
		OperationTimeout int    `env:"OPERATION_TIMEOUT" envDefault:"5"`
	} `envPrefix:"REDIS_"`
}

func LoadConfig() (*Config, error) {
	// .env 只在本地开发时存在，找不到不算错误
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := parse(cfg, env.Options{}); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadMonitorConfig 在 LoadConfig 的基础上要求配置登录后端的账号，
// CLI 可以用命令行参数提供账号，所以不走这里
func LoadMonitorConfig() (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	credentials := struct {
		Email    string `env:"EMAIL,required,notEmpty"`
		Password string `env:"PASSWORD,required,notEmpty"`
	}{}
	if err := parse(&credentials, env.Options{Prefix: "BACKEND_"}); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parse(v any, opts env.Options) error {
	if err := env.ParseWithOptions(v, opts); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return aggErr.Errors[0]
		}
		return err
	}
	return nil
}
