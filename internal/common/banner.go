package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("PriceWatch", GetVersion())

	fmt.Printf("  Environment: %s\n", config.Environment)
	fmt.Printf("  Server:      http://%s:%d\n", config.Server.Host, config.Server.Port)
	fmt.Printf("  Storage:     %s\n", config.Storage.Badger.Path)
	fmt.Printf("  Scheduler:   enabled=%t interval=%s\n", config.Scheduler.Enabled, config.CrawlInterval())
	fmt.Println()

	logger.Info().
		Str("version", GetVersion()).
		Str("environment", config.Environment).
		Int("port", config.Server.Port).
		Msg("Application configuration loaded")
}
