package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
	"time"
)

type Config struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	Timezone string `yaml:"timezone" env:"TIMEZONE" env-default:"UTC"`
	Listen   struct {
		BindIP    string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port      string `yaml:"port" env-default:"9100"`
		ApiKey    string `yaml:"key" env:"LISTEN_KEY" env-default:""`
		JwtSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:""`
		RateLimit int    `yaml:"rate_limit" env-default:"100"`
	} `yaml:"listen"`
	Storage struct {
		Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"mongo"`
	} `yaml:"storage"`
	Mongo struct {
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:""`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
		Database string `yaml:"database" env-default:"chatrelay"`
	} `yaml:"mongo"`
	Sqlite struct {
		Path string `yaml:"path" env-default:"./data/chatrelay.db"`
	} `yaml:"sqlite"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Addr     string `yaml:"addr" env-default:"localhost:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env-default:"0"`
	} `yaml:"redis"`
	Telegram struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		AdminId int64  `yaml:"admin_id" env-default:"0"`
		BotName string `yaml:"bot_name" env-default:"ChatRelayBot"`
	} `yaml:"telegram"`
	Retention struct {
		Days int `yaml:"days" env-default:"0"`
	} `yaml:"retention"`
	Websocket struct {
		MaxMessageSize int64    `yaml:"max_message_size" env-default:"1048576"`
		AllowedOrigins []string `yaml:"allowed_origins" env-default:"*"`
	} `yaml:"websocket"`
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
