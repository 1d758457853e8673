package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"store": map[string]interface{}{
			"driver":   DriverSQLite,
			"path":     "~/.reminderd/reminders.db",
			"table":    "reminders",
			"region":   "us-east-2",
			"endpoint": "",
			"timeout":  5, // seconds per store round trip
		},
		"scheduler": map[string]interface{}{
			"enabled":    true,
			"interval":   60,
			"batch_size": 500, // 0 means every due reminder in one tick
		},
		"http": map[string]interface{}{
			"addr":            ":8080",
			"allowed_origins": []string{"*"},
		},
		"mcp": map[string]interface{}{
			"principal_id": "",
			"roles":        []string{},
		},
		"notify": map[string]interface{}{
			"events": []string{"triggered", "successor_scheduled"},
			"telegram": map[string]interface{}{
				"enabled":   false,
				"bot_token": "",
				"chat_id":   "",
			},
			"kafka": map[string]interface{}{
				"enabled": false,
				"brokers": "localhost:9092",
				"topic":   "reminder-events",
			},
			"email": map[string]interface{}{
				"enabled":  false,
				"from":     "",
				"operator": "",
			},
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.reminderd/config.yaml"
}
