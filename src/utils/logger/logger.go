package logger

import (
	"os"

	"github.com/arena-labs/syncer/src/utils/config"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

// Configures the process wide logger. Development mode prints colored text,
// otherwise every entry is a JSON line.
func Init(config *config.Config) (err error) {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)

	if config.IsDevelopment {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
		return
	}

	logger.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	return
}

// Entry tagged with the component name
func NewSublogger(tag string) *logrus.Entry {
	return logger.WithField("module", "arena."+tag)
}
