// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	AnalyticsAddress string `env:"ANALYTICS_ADDRESS"`
	// AllowNegativeStock разрешает создание заказов, уводящих остаток товара
	// в минус (остаток трактуется как предзаказ). При false такие заказы отклоняются.
	AllowNegativeStock bool `env:"ALLOW_NEGATIVE_STOCK" envDefault:"true"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAnalyticsAddress := cfg.AnalyticsAddress
	envAllowNegativeStock := cfg.AllowNegativeStock

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AnalyticsAddress, "t", "", "analytics collector address")
	flag.BoolVar(&cfg.AllowNegativeStock, "b", true, "allow order creation to drive product stock below zero")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAnalyticsAddress != "" {
		cfg.AnalyticsAddress = envAnalyticsAddress
	}
	if os.Getenv("ALLOW_NEGATIVE_STOCK") != "" {
		cfg.AllowNegativeStock = envAllowNegativeStock
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
