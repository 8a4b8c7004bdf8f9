package bot

import (
	"context"
	"fmt"
	"sync"
)

// Bot is a main implementation of bot
type Bot struct {
	Configuration
	m       *sync.Mutex
	servers map[string]*server
}

// Serve opens gateway session and blocks until context is done
func (bot *Bot) Serve(ctx context.Context) error {
	err := bot.Discord.Open()
	if err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}

	bot.Log.Info("Running")

	<-ctx.Done()

	for _, m := range bot.Modules {
		m.Shutdown(&bot.Configuration)
	}

	return bot.Discord.Close()
}

// Connected returns true when gateway session is ready
func (bot *Bot) Connected() bool {
	bot.Discord.RLock()
	defer bot.Discord.RUnlock()

	return bot.Discord.DataReady
}
