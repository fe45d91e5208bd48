package config

import (
	"fmt"

	"github.com/spf13/viper"

	apperrors "github.com/frombarmars/flickshare-sub000/pkg/errors"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Points   PointsConfig   `mapstructure:"points"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type ChainConfig struct {
	Name               string `mapstructure:"name"`
	RPCURL             string `mapstructure:"rpc_url"`
	WSURL              string `mapstructure:"ws_url"`
	ChainID            uint64 `mapstructure:"chain_id"`
	ContractAddress    string `mapstructure:"contract_address"`
	StartBlock         int64  `mapstructure:"start_block"`
	ConfirmationBlocks int    `mapstructure:"confirmation_blocks"`
	BatchSize          int    `mapstructure:"batch_size"`
	TokenDecimals      int    `mapstructure:"token_decimals"`
	ReplayWindow       int64  `mapstructure:"replay_window"`
	ReplayCron         string `mapstructure:"replay_cron"`
	Enabled            bool   `mapstructure:"enabled"`
}

// PointsConfig holds the award amount for each ledger action type.
// SupportRate is points per whole token supported.
type PointsConfig struct {
	Checkin              int64 `mapstructure:"checkin"`
	ReviewSubmit         int64 `mapstructure:"review_submit"`
	SupportRate          int64 `mapstructure:"support_rate"`
	UniqueSupporterBonus int64 `mapstructure:"unique_supporter_bonus"`
	Follow               int64 `mapstructure:"follow"`
	Invite               int64 `mapstructure:"invite"`
	Invited              int64 `mapstructure:"invited"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("points.checkin", 5)
	v.SetDefault("points.review_submit", 10)
	v.SetDefault("points.support_rate", 20)
	v.SetDefault("points.unique_supporter_bonus", 50)
	v.SetDefault("points.follow", 20)
	v.SetDefault("points.invite", 30)
	v.SetDefault("points.invited", 15)
	v.SetDefault("chain.batch_size", 100)
	v.SetDefault("chain.confirmation_blocks", 2)
	v.SetDefault("chain.replay_window", 1000)
	v.SetDefault("chain.replay_cron", "0 */10 * * * *")

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.New(apperrors.ErrConfigLoad, "failed to read config file", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, apperrors.New(apperrors.ErrConfigLoad, "failed to unmarshal config", err)
	}

	return &config, nil
}
