package backend

import (
	"net/url"
	"testing"
	"time"

	// Packages
	logger "github.com/FileZen/filezen/pkg/logger"
	schema "github.com/FileZen/filezen/pkg/schema"
	aws "github.com/aws/aws-sdk-go-v2/aws"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"
	noop "go.opentelemetry.io/otel/trace/noop"
)

func Test_Opt_Bucket(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		opts  []Opt
		query url.Values
		err   bool
	}{
		{
			name:  "minio",
			url:   "s3://filezen",
			opts:  []Opt{WithEndpoint("http://localhost:9000"), WithRegion("us-east-1")},
			query: url.Values{"endpoint": {"http://localhost:9000"}, "s3ForcePathStyle": {"true"}, "disable_https": {"true"}, "region": {"us-east-1"}},
		},
		{
			name:  "tls endpoint",
			url:   "s3://filezen",
			opts:  []Opt{WithEndpoint("https://s3.example.com"), WithProfile("uploads")},
			query: url.Values{"endpoint": {"https://s3.example.com"}, "s3ForcePathStyle": {"true"}, "profile": {"uploads"}},
		},
		{
			name:  "public bucket",
			url:   "s3://filezen?region=eu-west-1",
			opts:  []Opt{WithAnonymous()},
			query: url.Values{"anonymous": {"true"}, "region": {"eu-west-1"}},
		},
		{
			name:  "local directory",
			url:   "file:///var/lib/filezen",
			opts:  []Opt{WithCreateDir()},
			query: url.Values{"create_dir": {"true"}},
		},
		{
			name:  "empty region clears",
			url:   "s3://filezen?region=eu-west-1",
			opts:  []Opt{WithRegion("")},
			query: url.Values{},
		},
		{name: "ftp endpoint", url: "s3://filezen", opts: []Opt{WithEndpoint("ftp://example.com")}, err: true},
		{name: "bad endpoint", url: "s3://filezen", opts: []Opt{WithEndpoint("://invalid")}, err: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)

			o, err := apply(u, tt.opts...)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.query, o.url.Query())
		})
	}
}

func Test_Opt_EndpointReplaced(t *testing.T) {
	u, err := url.Parse("s3://filezen")
	require.NoError(t, err)

	o, err := apply(u, WithEndpoint("http://localhost:9000"), WithEndpoint("https://s3.example.com"))
	require.NoError(t, err)
	assert.Empty(t, o.url.Query().Get("disable_https"))
	assert.Equal(t, "https://s3.example.com", o.endpoint)
}

func Test_Opt_Defaults(t *testing.T) {
	assert := assert.New(t)

	o, err := apply(nil, WithRegion("us-east-1"), WithCreateDir())
	require.NoError(t, err)
	assert.Nil(o.url)
	assert.Nil(o.awsConfig)
	assert.Nil(o.tracer)
	assert.False(o.anonymous)
	assert.Equal(int64(schema.MaxPayloadSize), o.maxSize)
	assert.Equal(DefaultSessionTTL, o.ttl)
	assert.NotNil(o.logger)
}

func Test_Opt_Runtime(t *testing.T) {
	assert := assert.New(t)

	tracer := noop.NewTracerProvider().Tracer("filezen")
	log := logger.Discard()
	o, err := apply(nil,
		WithAWSConfig(aws.Config{Region: "ap-south-1"}),
		WithTracer(tracer),
		WithMaxSize(0),
		WithSessionTTL(time.Minute),
		WithLogger(log),
	)
	require.NoError(t, err)
	if assert.NotNil(o.awsConfig) {
		assert.Equal("ap-south-1", o.awsConfig.Region)
	}
	assert.Equal(tracer, o.tracer)
	assert.Zero(o.maxSize)
	assert.Equal(time.Minute, o.ttl)
	assert.Equal(log, o.logger)

	_, err = apply(nil, WithLogger(nil))
	assert.Error(err)
}
