package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// OTLPConfig holds configuration for OpenTelemetry log export
type OTLPConfig struct {
	Endpoint    string
	ServiceName string
}

// NewOTLPLoggerProvider creates a LoggerProvider that batches records to an
// OTLP/HTTP collector. Endpoint is host:port.
func NewOTLPLoggerProvider(ctx context.Context, config OTLPConfig, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter))}
	if res != nil {
		opts = append(opts, sdklog.WithResource(res))
	}
	return sdklog.NewLoggerProvider(opts...), nil
}

// OTelHook forwards logrus entries to an OpenTelemetry logger.
type OTelHook struct {
	logger otellog.Logger
	levels []logrus.Level
}

// NewOTelHook creates a hook emitting every entry at minLevel or more severe.
func NewOTelHook(provider otellog.LoggerProvider, name string, minLevel logrus.Level) *OTelHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, l := range logrus.AllLevels {
		if l <= minLevel {
			levels = append(levels, l)
		}
	}
	return &OTelHook{logger: provider.Logger(name), levels: levels}
}

// Levels implements logrus.Hook.
func (h *OTelHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook.
func (h *OTelHook) Fire(entry *logrus.Entry) error {
	var record otellog.Record
	record.SetTimestamp(entry.Time)
	record.SetObservedTimestamp(time.Now())
	record.SetSeverity(severityFor(entry.Level))
	record.SetSeverityText(entry.Level.String())
	record.SetBody(otellog.StringValue(entry.Message))

	for key, value := range entry.Data {
		record.AddAttributes(attributeFor(key, value))
	}

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.logger.Emit(ctx, record)
	return nil
}

func attributeFor(key string, value interface{}) otellog.KeyValue {
	switch v := value.(type) {
	case string:
		return otellog.String(key, v)
	case int:
		return otellog.Int(key, v)
	case int64:
		return otellog.Int64(key, v)
	case float64:
		return otellog.Float64(key, v)
	case bool:
		return otellog.Bool(key, v)
	case error:
		return otellog.String(key, v.Error())
	default:
		return otellog.String(key, fmt.Sprint(v))
	}
}

func severityFor(level logrus.Level) otellog.Severity {
	switch level {
	case logrus.TraceLevel:
		return otellog.SeverityTrace
	case logrus.DebugLevel:
		return otellog.SeverityDebug
	case logrus.InfoLevel:
		return otellog.SeverityInfo
	case logrus.WarnLevel:
		return otellog.SeverityWarn
	case logrus.ErrorLevel:
		return otellog.SeverityError
	case logrus.FatalLevel:
		return otellog.SeverityFatal
	case logrus.PanicLevel:
		return otellog.SeverityFatal4
	default:
		return otellog.SeverityInfo
	}
}
