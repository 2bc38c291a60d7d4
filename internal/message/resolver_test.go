package message

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Greeter-Service/internal/config"
	xerrors "Greeter-Service/internal/errors"
	mysqlstore "Greeter-Service/internal/storage/mysql"
)

func strPtr(s string) *string { return &s }

type fakeRedis struct {
	value string
	err   error
	keys  []string
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.keys = append(f.keys, key)
	return redis.NewStringResult(f.value, f.err)
}

type fakeSettings struct {
	values map[string]string
	err    error
}

func (f *fakeSettings) Get(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.values[name]
	if !ok {
		return "", mysqlstore.ErrSettingNotFound
	}
	return value, nil
}

type countingSource struct {
	calls int
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Lookup(context.Context) (string, error) {
	c.calls++
	return "never", nil
}

func TestResolveFirstPresentWins(t *testing.T) {
	tail := &countingSource{}
	msg, err := Resolve(context.Background(),
		Static("flag", nil),
		Static("env", strPtr("hello world")),
		tail,
	)
	require.NoError(t, err)
	assert.Equal(t, Message{Value: "hello world", Source: "env"}, msg)
	assert.Zero(t, tail.calls)
}

func TestResolveEmptyStringIsAValue(t *testing.T) {
	msg, err := Resolve(context.Background(),
		Static("file", strPtr("")),
		NewRedisSource(&fakeRedis{value: "ignored"}, "greeter:message"),
	)
	require.NoError(t, err)
	assert.Equal(t, "", msg.Value)
	assert.Equal(t, "file", msg.Source)
}

func TestResolveMissingEverywhere(t *testing.T) {
	_, err := Resolve(context.Background(),
		Static("file", nil),
		NewRedisSource(&fakeRedis{err: redis.Nil}, "greeter:message"),
		NewMySQLSource(&fakeSettings{}, "message"),
	)
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConfigurationMissing, xerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "file, redis, mysql")
}

func TestResolveNoSources(t *testing.T) {
	_, err := Resolve(context.Background())
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConfigurationMissing, xerrors.CodeOf(err))
}

func TestResolveFallsThroughToRemoteSources(t *testing.T) {
	rc := &fakeRedis{err: redis.Nil}
	msg, err := Resolve(context.Background(),
		Static("file", nil),
		NewRedisSource(rc, "greeter:message"),
		NewMySQLSource(&fakeSettings{values: map[string]string{"message": "from mysql"}}, "message"),
	)
	require.NoError(t, err)
	assert.Equal(t, Message{Value: "from mysql", Source: "mysql"}, msg)
	assert.Equal(t, []string{"greeter:message"}, rc.keys)
}

func TestResolveRedisValue(t *testing.T) {
	msg, err := Resolve(context.Background(), NewRedisSource(&fakeRedis{value: "from redis"}, "k"))
	require.NoError(t, err)
	assert.Equal(t, Message{Value: "from redis", Source: "redis"}, msg)
}

func TestResolveSourceFailureStops(t *testing.T) {
	boom := stdErrors.New("connection reset")
	tail := &countingSource{}
	_, err := Resolve(context.Background(),
		NewRedisSource(&fakeRedis{err: boom}, "k"),
		tail,
	)
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeSourceFailure, xerrors.CodeOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, tail.calls)
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, NewMySQLSource(&fakeSettings{err: context.Canceled}, "message"))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeTimeout, xerrors.CodeOf(err))
	assert.Equal(t, xerrors.SeverityInfo, xerrors.SeverityOf(err))
	assert.False(t, xerrors.RetryableError(err))
}

func TestResolveDeadlineKeepsTimeoutAttributes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := Resolve(ctx, NewMySQLSource(&fakeSettings{err: context.DeadlineExceeded}, "message"))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeTimeout, xerrors.CodeOf(err))
	assert.Equal(t, xerrors.SeverityWarning, xerrors.SeverityOf(err))
	assert.True(t, xerrors.RetryableError(err))
}

func TestSourcesWithoutClients(t *testing.T) {
	_, err := NewRedisSource(nil, "k").Lookup(context.Background())
	assert.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))

	_, err = NewMySQLSource(nil, "message").Lookup(context.Background())
	assert.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))
}

func TestMySQLSourceOtherNotFoundIsAFailure(t *testing.T) {
	settings := &fakeSettings{err: xerrors.New(xerrors.CodeNotFound, "unknown database")}

	_, err := Resolve(context.Background(), NewMySQLSource(settings, "message"))
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeSourceFailure, xerrors.CodeOf(err))
}

func TestResolveConfigUsesInProcessLayers(t *testing.T) {
	cfg := config.Default()
	cfg.SetMessage("hello world", config.OriginFlag)

	msg, err := ResolveConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, Message{Value: "hello world", Source: config.OriginFlag}, msg)
}

func TestResolveConfigMissingMessage(t *testing.T) {
	_, err := ResolveConfig(context.Background(), config.Default())
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeConfigurationMissing, xerrors.CodeOf(err))
}

func TestOpenFailsOnUnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.Redis.Enabled = true
	cfg.Sources.Redis.Address = "127.0.0.1:1"

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeSourceFailure, xerrors.CodeOf(err))
}

func TestResolveConfigSkipsRemoteSourcesWhenSet(t *testing.T) {
	cfg := config.Default()
	cfg.SetMessage("hello world", config.OriginFlag)
	cfg.Sources.Redis.Enabled = true
	cfg.Sources.Redis.Address = "127.0.0.1:1"
	cfg.Sources.MySQL.Enabled = true
	cfg.Sources.MySQL.DSN = "greeter:secret@tcp(127.0.0.1:1)/greeter"

	chain, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, chain.Sources, 1)
	require.NoError(t, chain.Close())

	msg, err := ResolveConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, Message{Value: "hello world", Source: config.OriginFlag}, msg)
}

func TestResolveConfigEmptyFileValueSkipsRemoteSources(t *testing.T) {
	cfg := config.Default()
	cfg.SetMessage("", config.OriginFile)
	cfg.Sources.Redis.Enabled = true
	cfg.Sources.Redis.Address = "127.0.0.1:1"

	msg, err := ResolveConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, Message{Value: "", Source: config.OriginFile}, msg)
}

func TestOpenNilConfig(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}
