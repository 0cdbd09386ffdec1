package tracing

import (
	"fmt"

	"nasmon/internal/config"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

// Init sets up the global Jaeger tracer. When tracing is disabled a
// no-op tracer is installed so span creation stays cheap.
func Init(cfg config.TracingConfig) (opentracing.Tracer, func(), error) {
	if !cfg.Enabled {
		tracer := opentracing.NoopTracer{}
		opentracing.SetGlobalTracer(tracer)
		return tracer, func() {}, nil
	}

	jcfg := jaegercfg.Configuration{
		ServiceName: "nasmon-alertd",
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:          false,
			CollectorEndpoint: cfg.CollectorEndpoint,
		},
	}

	jLogger := jaeger.StdLogger
	jMetricsFactory := metrics.NullFactory

	tracer, closer, err := jcfg.NewTracer(
		jaegercfg.Logger(jLogger),
		jaegercfg.Metrics(jMetricsFactory),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot initialize jaeger tracer for alertd: %v", err)
	}

	opentracing.SetGlobalTracer(tracer)

	return tracer, func() { closer.Close() }, nil
}
