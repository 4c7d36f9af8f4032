package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stake-plus/fundcomms/src/api/webserver"
	"github.com/stake-plus/fundcomms/src/bot/bot"
	"github.com/stake-plus/fundcomms/src/bot/config"
	"github.com/stake-plus/fundcomms/src/bot/data"
)

func main() {
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "fundcomms:fundcomms@tcp(127.0.0.1:3306)/fundcomms"
	}

	db := data.MustMySQL(mysqlDSN)

	cfg := config.Load(db)
	if cfg.Token == "" {
		log.Fatal("discord_token not set in database or environment")
	}
	if cfg.ReviewChannelID == "" || cfg.PublicChannelID == "" || cfg.LedgerChannelID == "" {
		log.Fatal("review_channel_id, public_channel_id and ledger_channel_id must be set")
	}

	rdb := data.MustRedis(cfg.RedisURL)

	b, err := bot.New(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	if err := b.Start(); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	if cfg.JWTSecret != "" {
		go func() {
			g := webserver.New(cfg, b.Store(), b.Ledger())
			if err := g.Run(cfg.APIAddr); err != nil {
				log.Printf("ops api stopped: %v", err)
			}
		}()
	} else {
		log.Println("jwt_secret not set, ops API disabled")
	}

	log.Println("Fundraiser bot is running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	b.Stop()
	log.Println("Fundraiser bot stopped gracefully")
}
