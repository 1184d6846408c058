package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	TelegramToken string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// AdminToken protects the campaign control endpoints and signs
	// export links.
	AdminToken string

	HTTPAddr      string
	BasePublicURL string
}

func FromEnv() (Config, error) {
	var c Config
	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	c.DBUser = strings.TrimSpace(os.Getenv("DB_USER"))
	if c.DBUser == "" {
		c.DBUser = "postgres"
	}
	c.DBPassword = strings.TrimSpace(os.Getenv("DB_PASSWORD"))
	c.DBHost = strings.TrimSpace(os.Getenv("DB_HOST"))
	if c.DBHost == "" {
		c.DBHost = "localhost"
	}
	c.DBPort = strings.TrimSpace(os.Getenv("DB_PORT"))
	if c.DBPort == "" {
		c.DBPort = "5432"
	}
	c.DBName = strings.TrimSpace(os.Getenv("DB_NAME"))

	c.AdminToken = strings.TrimSpace(os.Getenv("ADMIN_TOKEN"))
	if c.AdminToken == "" {
		c.AdminToken = "change-me"
	}

	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}

	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_PUBLIC_URL")), "/")

	if c.TelegramToken == "" {
		return c, fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	if c.DBName == "" {
		return c, fmt.Errorf("DB_NAME is empty")
	}

	return c, nil
}
