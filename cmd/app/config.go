package main

import (
	"fmt"
	"strings"
	"time"

	"tornado_miniapp/internal/repository"
	"tornado_miniapp/internal/telegram"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `mapstructure:"database"`
	Server   ServerConfig      `mapstructure:"server"`

	TelegramAuth TelegramAuthConfig `mapstructure:"telegramAuth"`
	Rewards      RewardsConfig      `mapstructure:"rewards"`
	Ads          AdsConfig          `mapstructure:"ads"`
	Welcome      WelcomeConfig      `mapstructure:"welcome"`

	LogLevel string `mapstructure:"logLevel"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string  `mapstructure:"telegramBotToken"`
	BotUsername      string  `mapstructure:"botUsername"`
	DebugMode        bool    `mapstructure:"debugMode"`
	AdminIDs         []int64 `mapstructure:"adminIds"`
}

// RewardsConfig carries payout amounts in TON; they are converted to
// nano-TON at startup. TaskPricesTON is keyed by completion tier; when
// unset the stock price table applies.
type RewardsConfig struct {
	WatchAdTON         float64            `mapstructure:"watchAdTon"`
	WelcomeTON         float64            `mapstructure:"welcomeTon"`
	ReferralSignupTON  float64            `mapstructure:"referralSignupTon"`
	ReferralPercentage int                `mapstructure:"referralPercentage"`
	MinimumWithdrawTON float64            `mapstructure:"minimumWithdrawTon"`
	WithdrawalCooldown time.Duration      `mapstructure:"withdrawalCooldown"`
	TaskPricesTON      map[string]float64 `mapstructure:"taskPricesTon"`
}

type AdsConfig struct {
	VerifyURL string `mapstructure:"verifyUrl"`
}

type WelcomeConfig struct {
	Chats   []string                `mapstructure:"chats"`
	Message telegram.WelcomeMessage `mapstructure:"message"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("logLevel", "info")
	viper.SetDefault("rewards.watchAdTon", 0.001)
	viper.SetDefault("rewards.welcomeTon", 0.005)
	viper.SetDefault("rewards.referralSignupTon", 0.001)
	viper.SetDefault("rewards.referralPercentage", 10)
	viper.SetDefault("rewards.minimumWithdrawTon", 0.10)
	viper.SetDefault("rewards.withdrawalCooldown", 24*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
