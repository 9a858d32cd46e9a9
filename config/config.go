package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("VITALINK_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("VITALINK_DEBUG") == "true"
}

func GetListenAddr() string {
	listen := os.Getenv("VITALINK_LISTEN")
	if listen == "" {
		listen = ":8000"
	}
	return listen
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("VITALINK_DB_FOLDER")
	if dbFolderPath == "" {
		if IsDebug() {
			return "db"
		}
		dbFolderPath = "/etc/vitalink"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("VITALINK_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

func GetMqttBroker() string {
	broker := os.Getenv("VITALINK_MQTT_BROKER")
	if broker == "" {
		broker = "tcp://127.0.0.1:1883"
	}
	return broker
}

func GetMqttClientId() string {
	clientId := os.Getenv("VITALINK_MQTT_CLIENT_ID")
	if clientId == "" {
		clientId = GetName() + "-dashboard"
	}
	return clientId
}

// GetTgBotToken returns the Telegram bot token, empty when alerting is
// not configured.
func GetTgBotToken() string {
	return os.Getenv("VITALINK_TG_TOKEN")
}

func GetTgBotChatId() int64 {
	raw := os.Getenv("VITALINK_TG_CHAT_ID")
	if raw == "" {
		return 0
	}
	chatId, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return chatId
}

func GetTgLang() string {
	lang := os.Getenv("VITALINK_TG_LANG")
	if lang == "" {
		lang = "en-US"
	}
	return lang
}
