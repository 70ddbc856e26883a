package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/MrEthical07/goAuthClient/internal/authtest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GOAUTHCLIENT_API__BASE_URL", "")
	t.Setenv("REDIS_ADDR", "")

	exiter := cli.OsExiter
	cli.OsExiter = func(int) {}
	t.Cleanup(func() { cli.OsExiter = exiter })

	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"sessionctl", "--env-file", ""}, args...))
	return out.String(), err
}

func TestAppCommands(t *testing.T) {
	app := App()
	assert.Equal(t, "sessionctl", app.Name)

	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"login", "call", "inspect", "stress"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestLoginAgainstFakeAPI(t *testing.T) {
	out, err := run(t, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "using fake auth API")
	assert.Contains(t, out, `"IsAuthenticated": true`)
	assert.Contains(t, out, "access token: ")
}

func TestLoginWrongPassword(t *testing.T) {
	out, err := run(t, "--password", "nope", "login")
	require.Error(t, err)
	assert.Contains(t, out, `"IsAuthenticated": false`)
}

func TestLoginRedisBackendFallsBackToMiniredis(t *testing.T) {
	out, err := run(t, "--store", "redis", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "using miniredis")
	assert.Contains(t, out, `"IsAuthenticated": true`)
}

func TestLoginCookieBackend(t *testing.T) {
	out, err := run(t, "--store", "cookie", "login")
	require.NoError(t, err)
	assert.Contains(t, out, `"IsAuthenticated": true`)
}

func TestCallRefreshesRevokedToken(t *testing.T) {
	out, err := run(t, "call", "--revoke", "--data", `{"n":1}`, "POST", "/api/echo")
	require.NoError(t, err)
	assert.Contains(t, out, "POST /api/echo -> 200 OK")
	assert.Contains(t, out, `\"n\":1`)
	assert.Contains(t, out, "refreshes: 1")
}

func TestCallRequiresMethodAndPath(t *testing.T) {
	_, err := run(t, "call", "GET")
	require.Error(t, err)
}

func TestCallRejectsInvalidBody(t *testing.T) {
	_, err := run(t, "call", "--data", "{", "POST", "/api/echo")
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	fake := authtest.NewServer()
	defer fake.Close()
	now := time.Now()

	out, err := run(t, "inspect", fake.Mint(now, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Contains(t, out, "valid:         true")
	assert.Contains(t, out, "expiring soon: false")

	out, err = run(t, "inspect", fake.Mint(now.Add(-time.Hour), now.Add(time.Minute)))
	require.NoError(t, err)
	assert.Contains(t, out, "expiring soon: true")

	out, err = run(t, "inspect", "not-a-token")
	require.NoError(t, err)
	assert.Contains(t, out, "valid:         false")
}

func TestStress(t *testing.T) {
	out, err := run(t, "stress", "--callers", "8", "--rounds", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "calls=24 failures=0 rounds=3")
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}
