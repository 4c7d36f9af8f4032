package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stake-plus/fundcomms/src/bot/components/ledger"
	"github.com/stake-plus/fundcomms/src/bot/components/pricing"
	"github.com/stake-plus/fundcomms/src/bot/data"
	"gorm.io/gorm"
)

type Config struct {
	Token           string
	GuildID         string
	ReviewerRoleID  string
	ReviewChannelID string
	PublicChannelID string
	LedgerChannelID string
	LedgerMode      ledger.Mode
	Goal            int64
	Increments      []decimal.Decimal
	SubmitCooldown  time.Duration
	APIAddr         string
	JWTSecret       string
	MySQLDSN        string
	RedisURL        string
}

// Load reads configuration from the settings table with environment
// fallbacks, following the database-first convention used across our bots.
func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("Failed to load settings: %v", err)
	}

	cfg := Config{
		Token:           setting("discord_token", "DISCORD_TOKEN", ""),
		GuildID:         setting("guild_id", "GUILD_ID", ""),
		ReviewerRoleID:  setting("reviewer_role_id", "REVIEWER_ROLE_ID", ""),
		ReviewChannelID: setting("review_channel_id", "REVIEW_CHANNEL_ID", ""),
		PublicChannelID: setting("public_channel_id", "PUBLIC_CHANNEL_ID", ""),
		LedgerChannelID: setting("ledger_channel_id", "LEDGER_CHANNEL_ID", ""),
		LedgerMode:      ledger.Mode(setting("ledger_mode", "LEDGER_MODE", string(ledger.ModeAppend))),
		APIAddr:         setting("api_addr", "API_ADDR", ":8090"),
		JWTSecret:       setting("jwt_secret", "JWT_SECRET", ""),
		SubmitCooldown:  30 * time.Second,
		MySQLDSN:        getenv("MYSQL_DSN", "fundcomms:fundcomms@tcp(127.0.0.1:3306)/fundcomms"),
		RedisURL:        getenv("REDIS_URL", "redis://127.0.0.1:6379/0"),
	}

	goalRaw := setting("donation_goal", "DONATION_GOAL", "100000")
	goal, err := strconv.ParseInt(goalRaw, 10, 64)
	if err != nil || goal <= 0 {
		log.Printf("Invalid donation_goal %q, using 100000", goalRaw)
		goal = 100000
	}
	cfg.Goal = goal

	menuRaw := setting("increment_menu", "INCREMENT_MENU", "5,7.5,10,15,20")
	menu, err := pricing.ParseMenu(menuRaw)
	if err != nil {
		log.Fatalf("Invalid increment_menu %q: %v", menuRaw, err)
	}
	cfg.Increments = menu

	return cfg
}

func setting(name, env, def string) string {
	if v := data.GetSetting(name); v != "" {
		return v
	}
	return getenv(env, def)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
