package main

import (
	"os"

	"github.com/joho/godotenv"

	"campuschat/config"
	"campuschat/logger"
	"campuschat/service/gateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Infof("no .env file, using environment")
	}
	cfg := config.Load()

	if cfg.JWTSecret == "" {
		logger.Error("CHAT_JWT_SECRET is required")
		os.Exit(1)
	}

	roster := gateway.NewMemoryRoster()
	if cfg.RedisAddr != "" {
		r, err := gateway.NewRedisRoster(gateway.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.PresenceTTL,
		})
		if err != nil {
			logger.Errorf("redis roster: %v", err)
			os.Exit(1)
		}
		roster = r
		logger.Infof("presence store: redis %s", cfg.RedisAddr)
	}

	var bridge *gateway.Bridge
	if cfg.NatsURL != "" {
		b, err := gateway.NewBridge(cfg.NatsURL, cfg.NatsPrefix, cfg.NodeName)
		if err != nil {
			logger.Errorf("nats bridge: %v", err)
			os.Exit(1)
		}
		bridge = b
		defer bridge.Close()
		logger.Infof("delivery bridge: nats %s", cfg.NatsURL)
	}

	srv := gateway.NewServer(gateway.Options{
		Secret: []byte(cfg.JWTSecret),
		Roster: roster,
		Bridge: bridge,
	})

	logger.Infof("gateway listening on %s", cfg.Addr)
	if err := srv.Engine().Run(cfg.Addr); err != nil {
		logger.Errorf("server: %v", err)
		os.Exit(1)
	}
}
