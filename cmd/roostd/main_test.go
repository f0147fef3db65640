package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/roost/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(redisURL string) *config.RoostConfig {
	cfg := config.Default()
	cfg.Redis.URL = redisURL
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Auth.Secret = "a-secret-that-is-long-enough"
	cfg.Log.Level = "error"
	cfg.Server.ShutdownTimeout = time.Second
	return cfg
}

func TestBuildRequiresSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig("redis://" + mr.Addr())
	cfg.Auth.Secret = ""

	_, _, err := build(context.Background(), cfg)
	assert.ErrorContains(t, err, "ROOST_JWT_SECRET")
}

func TestBuildRequiresRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, _, err := build(context.Background(), testConfig("redis://"+addr))
	assert.ErrorContains(t, err, "redis not accessible")
}

func TestRunStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig("redis://"+mr.Addr())) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
