// Package obslog wraps logrus behind a small domain-specific Logger
// interface so risk plugins and the order manager log structured events
// by name instead of formatting strings by hand.
package obslog

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the capability the risk pipeline and order manager consume.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})

	// LogRiskDenial records a plugin deny (spec §4.2 short-circuit).
	LogRiskDenial(plugin, orderID, sessionID, reason string)
	// LogOrderRouted records an order sent to the market via FIX.
	LogOrderRouted(orderID, sessionID, ticker string, quantity float64)
	// LogInternalization records a completed internal cross (spec §4.8.1).
	LogInternalization(restingOrderID, incomingOrderID, ticker string, quantity float64)
	// LogDependencyFailure records a Store/MarketData/FIX failure that was
	// converted into a PolicyDeny or handled locally per spec §7.
	LogDependencyFailure(dependency, operation string, err error)
}

// Config controls the underlying logrus logger.
type Config struct {
	Level  string // debug, info, warn, error
	JSON   bool
	Output *os.File // defaults to os.Stdout when nil
}

type logrusLogger struct {
	logger *logrus.Logger
}

// New builds a Logger backed by logrus, formatted as JSON when
// Config.JSON is set (production) or as human-readable text otherwise
// (local/dev runs), following the teacher pack's logging setup.
func New(cfg Config) Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)

	return &logrusLogger{logger: l}
}

func (l *logrusLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.WithFields(fields).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.WithFields(fields).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.WithFields(fields).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.WithFields(fields).Error(msg)
}

func (l *logrusLogger) LogRiskDenial(plugin, orderID, sessionID, reason string) {
	l.logger.WithFields(logrus.Fields{
		"plugin":     plugin,
		"order_id":   orderID,
		"session_id": sessionID,
		"reason":     reason,
	}).Warn("order denied")
}

func (l *logrusLogger) LogOrderRouted(orderID, sessionID, ticker string, quantity float64) {
	l.logger.WithFields(logrus.Fields{
		"order_id":   orderID,
		"session_id": sessionID,
		"ticker":     ticker,
		"quantity":   quantity,
	}).Info("order routed to market")
}

func (l *logrusLogger) LogInternalization(restingOrderID, incomingOrderID, ticker string, quantity float64) {
	l.logger.WithFields(logrus.Fields{
		"resting_order_id":  restingOrderID,
		"incoming_order_id": incomingOrderID,
		"ticker":            ticker,
		"quantity":          quantity,
	}).Info("order internalized")
}

func (l *logrusLogger) LogDependencyFailure(dependency, operation string, err error) {
	l.logger.WithFields(logrus.Fields{
		"dependency": dependency,
		"operation":  operation,
		"error":      err.Error(),
	}).Error("dependency failure, treating as policy deny")
}
