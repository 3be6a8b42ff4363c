package notify

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	keyServerStarting = "server.starting"
	keyServerStarted  = "server.started"
	keyServerStopped  = "server.stopped"
	keyPlayerJoin     = "player.join"
	keyPlayerLeave    = "player.leave"
	keyAchievement    = "player.achievement"
)

var messages = map[language.Tag]map[string]string{
	language.English: {
		keyServerStarting: "Server \"%s\" starting",
		keyServerStarted:  "Server \"%s\" started",
		keyServerStopped:  "Server \"%s\" stopped",
		keyPlayerJoin:     "Player %s joined",
		keyPlayerLeave:    "Player %s left",
		keyAchievement:    "Player %s got achievement \"%s\"",
	},
	language.Russian: {
		keyServerStarting: "Сервер \"%s\" запускается",
		keyServerStarted:  "Сервер \"%s\" запущен",
		keyServerStopped:  "Сервер \"%s\" остановлен",
		keyPlayerJoin:     "Игрок %s присоединился",
		keyPlayerLeave:    "Игрок %s покинул игру",
		keyAchievement:    "Игрок %s получил достижение \"%s\"",
	},
}

func newCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, text := range msgs {
			_ = b.SetString(tag, key, text)
		}
	}
	return b
}

// ParseLang maps "EN"/"RU" (any case) to a language tag, defaulting to English.
func ParseLang(lang string) language.Tag {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ru":
		return language.Russian
	default:
		return language.English
	}
}

// NewPrinter returns a printer for lang backed by the notification catalogue.
func NewPrinter(lang string) *message.Printer {
	return message.NewPrinter(ParseLang(lang), message.Catalog(newCatalog()))
}
