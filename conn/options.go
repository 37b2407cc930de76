package conn

import "github.com/10gen/mongo-go-query/msg"

func newConfig(opts ...Option) *config {
	cfg := &config{
		codec:  msg.NewWireProtocolCodec(),
		dialer: DialEndpoint,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.compressor != nil {
		cfg.codec = msg.NewCompressionCodec(cfg.codec, cfg.compressor)
	}

	return cfg
}

// Option configures a connection.
type Option func(*config)

type config struct {
	appName    string
	codec      msg.Codec
	compressor msg.Compressor
	dialer     EndpointDialer
}

// WithAppName sets the application name which gets
// sent to the server on first connection.
func WithAppName(name string) Option {
	return func(c *config) {
		c.appName = name
	}
}

// WithCodec sets the codec to use to encode and
// decode messages.
func WithCodec(codec msg.Codec) Option {
	return func(c *config) {
		c.codec = codec
	}
}

// WithCompressor wraps the codec such that messages are sent as
// compressed frames.
func WithCompressor(compressor msg.Compressor) Option {
	return func(c *config) {
		c.compressor = compressor
	}
}

// WithEndpointDialer defines the dialer for endpoints. Use this
// configuration option to enable things like TLS.
func WithEndpointDialer(dialer EndpointDialer) Option {
	return func(c *config) {
		c.dialer = dialer
	}
}
