package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"true"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"refledger"`
	// SchemaDir points at the external schema spec documents; when empty
	// the compiled-in defaults are provisioned.
	SchemaDir string `yaml:"schema_dir" env-default:""`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" env-default:"false"`
	ApiKey  string `yaml:"api_key" env-default:""`
	Country string `yaml:"country" env-default:"Russia"`
}

// ReferralConfig is the point and code policy. Defaults mirror the
// production program: 100/25 on redemption, 75 on activation, a 48 hour
// redemption window and 6-character uppercase codes.
type ReferralConfig struct {
	RedeemAward     int64 `yaml:"redeem_award" env-default:"100"`
	ReferrerAward   int64 `yaml:"referrer_award" env-default:"25"`
	ActivationBonus int64 `yaml:"activation_bonus" env-default:"75"`
	WindowHours     int   `yaml:"window_hours" env-default:"48"`
	CodeLength      int   `yaml:"code_length" env-default:"6"`
	CodeAttempts    int   `yaml:"code_attempts" env-default:"5"`
	DebitRetries    int   `yaml:"debit_retries" env-default:"3"`
	NormalizeCodes  bool  `yaml:"normalize_codes" env-default:"true"`
}

type Config struct {
	Mongo    MongoConfig    `yaml:"mongo"`
	Telegram TelegramConfig `yaml:"telegram"`
	Referral ReferralConfig `yaml:"referral"`
	Listen   Listen         `yaml:"listen"`
	Env      string         `yaml:"env" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
