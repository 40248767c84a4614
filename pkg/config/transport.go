package config

import (
	"context"
	"fmt"
	"github.com/Avi18971911/augur-go/pkg/augur"
	"github.com/Avi18971911/augur-go/pkg/transport"
	"github.com/Avi18971911/augur-go/pkg/transport/elasticsearch"
	"github.com/Avi18971911/augur-go/pkg/transport/memory"
	"github.com/Avi18971911/augur-go/pkg/transport/otlp"
	"go.uber.org/zap"
)

const (
	TransportOTLP          = "otlp"
	TransportElasticsearch = "elasticsearch"
	TransportMemory        = "memory"

	// HeaderPublicKey carries the DSN public key to the collector.
	HeaderPublicKey = "x-augur-key"
)

// NewTransport builds the transport named by Transport.Kind. OTLP is the default and sends to
// the DSN host unless an endpoint is configured.
func (c *Config) NewTransport(ctx context.Context, serviceName string, logger *zap.Logger) (transport.Transport, error) {
	switch c.Transport.Kind {
	case "", TransportOTLP:
		dsn, err := augur.ParseDsn(c.Dsn)
		if err != nil {
			return nil, err
		}
		endpoint := c.Transport.Endpoint
		if endpoint == "" {
			endpoint = dsn.HostPort()
		}
		t, err := otlp.NewTransport(ctx, otlp.Options{
			Endpoint:       endpoint,
			Protocol:       c.Transport.Protocol,
			Insecure:       c.Transport.Insecure || dsn.Scheme == "http",
			Headers:        map[string]string{HeaderPublicKey: dsn.PublicKey},
			BatchSize:      c.Transport.BatchSize,
			ServiceName:    serviceName,
			ServiceVersion: c.ResolveRelease(),
			Environment:    c.Environment,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case TransportElasticsearch:
		t, err := elasticsearch.NewTransport(ctx, elasticsearch.Options{
			Addresses: c.Transport.Addresses,
			BatchSize: c.Transport.BatchSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case TransportMemory:
		return memory.NewTransport(), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
}
