package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_CountsAndExpiresInOneScript(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := New(db, 2, time.Minute)

	mock.ExpectEval(incrWindowScript, []string{"ratelimit:registration:alice"}, int64(60000)).SetVal(int64(1))

	ok, err := l.Allow(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllow_OverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := New(db, 2, time.Minute)

	mock.ExpectEval(incrWindowScript, []string{"ratelimit:registration:alice"}, int64(60000)).SetVal(int64(2))
	ok, err := l.Allow(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectEval(incrWindowScript, []string{"ratelimit:registration:alice"}, int64(60000)).SetVal(int64(3))
	ok, err = l.Allow(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllow_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := New(db, 2, time.Minute)

	mock.ExpectEval(incrWindowScript, []string{"ratelimit:registration:alice"}, int64(60000)).SetErr(errors.New("connection refused"))

	ok, err := l.Allow(context.Background(), "alice")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllow_ZeroLimitDisables(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := New(db, 0, time.Minute)

	ok, err := l.Allow(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet(), "no redis calls when disabled")
}

func TestIncrWindowScript_SetsExpiryAtomically(t *testing.T) {
	// INCR and PEXPIRE must live in the same script so a failure between
	// them cannot leave a counter that never resets.
	assert.Contains(t, incrWindowScript, `redis.call("INCR", KEYS[1])`)
	assert.Contains(t, incrWindowScript, `redis.call("PEXPIRE", KEYS[1], ARGV[1])`)
}
