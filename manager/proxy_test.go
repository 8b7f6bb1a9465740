package manager

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/config"
)

func seedModel(t *testing.T, store *config.Store) {
	t.Helper()
	saveModel(t, store, func(m *config.Model) {
		m.Containers = []config.ContainerEntry{{Name: "c1", Port: 9000}}
		m.Routes = []config.Route{{HostPort: 8000, Target: "c1"}}
	})
}

func TestStartEmptyModel(t *testing.T) {
	pm, runtime, _ := newTestManager(t)

	err := pm.Start(context.Background())
	var incomplete *ConfigIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "containers", incomplete.Missing)
	assert.Empty(t, runtime.containers, "no container may be created")
}

func TestStartWithoutRoutes(t *testing.T) {
	pm, _, store := newTestManager(t)
	saveModel(t, store, func(m *config.Model) {
		m.Containers = []config.ContainerEntry{{Name: "c1"}}
	})

	err := pm.Start(context.Background())
	var incomplete *ConfigIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "routes", incomplete.Missing)
}

func TestStartBuildsAndRuns(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)

	require.NoError(t, pm.Start(context.Background()))

	assert.True(t, runtime.networks["proxy-net"], "default network ensured")
	require.Len(t, runtime.builtTags, 1)
	assert.Equal(t, "proxy-manager:latest", runtime.builtTags[0])
	assert.Contains(t, runtime.builtConfs[0], "set $backend_addr c1:9000;")

	proxy, ok := runtime.containers["proxy-manager"]
	require.True(t, ok, "proxy container running")
	assert.Equal(t, "proxy-manager:latest", proxy.image)
	assert.Equal(t, "proxy-net", proxy.network)
	assert.Equal(t, []int{8000}, proxy.ports)
}

func TestStartIdempotent(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)

	require.NoError(t, pm.Start(context.Background()))
	require.NoError(t, pm.Start(context.Background()))

	assert.Len(t, runtime.builtTags, 1, "second start must not rebuild")
	assert.Len(t, runtime.runPorts, 1, "second start must not run a new container")
}

func TestStartEnsuresContainerNetworks(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	saveModel(t, store, func(m *config.Model) {
		m.Containers[0].Network = "app-net"
	})

	require.NoError(t, pm.Start(context.Background()))

	assert.True(t, runtime.networks["app-net"])
	assert.Contains(t, runtime.connected, "app-net", "proxy connected to the secondary network")
}

func TestStartSecondaryNetworkFailureIsWarning(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	saveModel(t, store, func(m *config.Model) {
		m.Containers[0].Network = "app-net"
	})
	runtime.connectErr["app-net"] = errors.New("endpoint busy")

	require.NoError(t, pm.Start(context.Background()))
	_, ok := runtime.containers["proxy-manager"]
	assert.True(t, ok, "proxy still running on its primary network")
}

func TestStartBuildFailureLeavesProxyAbsent(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	runtime.buildErr = errors.New("nginx.conf: syntax error")

	err := pm.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
	assert.Empty(t, runtime.containers)
}

func TestStopWhenNotRunning(t *testing.T) {
	pm, _, store := newTestManager(t)
	seedModel(t, store)

	running, err := pm.Stop(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
}

func TestStopRemovesProxy(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	require.NoError(t, pm.Start(context.Background()))

	running, err := pm.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, running)
	assert.Empty(t, runtime.containers)
}

func TestRestartWaitsForRemoval(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	require.NoError(t, pm.Start(context.Background()))

	runtime.lingerPolls = 3
	require.NoError(t, pm.Restart(context.Background()))

	_, ok := runtime.containers["proxy-manager"]
	assert.True(t, ok)
	assert.Len(t, runtime.builtTags, 2, "restart rebuilds the image")
}

func TestRestartTimesOutOnStuckRemoval(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	require.NoError(t, pm.Start(context.Background()))

	runtime.lingerPolls = 1 << 20
	pm.SettleTimeout = 5 * time.Millisecond

	err := pm.Restart(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still present")
}

func TestReloadRequiresRoutes(t *testing.T) {
	pm, _, store := newTestManager(t)
	saveModel(t, store, func(m *config.Model) {
		m.Containers = []config.ContainerEntry{{Name: "c1"}}
	})

	err := pm.Reload(context.Background())
	var incomplete *ConfigIncompleteError
	require.ErrorAs(t, err, &incomplete)
}

func TestStopPortPartialTeardown(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	saveModel(t, store, func(m *config.Model) {
		m.Containers = []config.ContainerEntry{{Name: "a"}, {Name: "b"}}
		m.Routes = []config.Route{
			{HostPort: 8000, Target: "a"},
			{HostPort: 8001, Target: "b"},
		}
	})
	require.NoError(t, pm.Start(context.Background()))

	require.NoError(t, pm.StopPort(context.Background(), 8000))

	model, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []config.Route{{HostPort: 8001, Target: "b"}}, model.Routes)

	proxy, ok := runtime.containers["proxy-manager"]
	require.True(t, ok, "proxy reloaded, not stopped")
	assert.Equal(t, []int{8001}, proxy.ports)
}

func TestStopPortLastRouteStopsProxy(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	require.NoError(t, pm.Start(context.Background()))

	require.NoError(t, pm.StopPort(context.Background(), 8000))

	model, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, model.Routes)
	assert.Empty(t, runtime.containers, "no pointless rebuild with zero routes")
}

func TestStopPortUnknownRoute(t *testing.T) {
	pm, _, store := newTestManager(t)
	seedModel(t, store)

	err := pm.StopPort(context.Background(), 9999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9999")
}

func TestStatus(t *testing.T) {
	pm, _, store := newTestManager(t)
	saveModel(t, store, func(m *config.Model) {
		m.Containers = []config.ContainerEntry{{Name: "c1", Port: 9000}}
		m.Routes = []config.Route{
			{HostPort: 8000, Target: "c1"},
			{HostPort: 8001, Target: "gone"},
		}
	})

	status, err := pm.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Running)
	require.Len(t, status.Routes, 2)
	assert.True(t, status.Routes[0].TargetKnown)
	assert.Equal(t, 9000, status.Routes[0].InternalPort)
	assert.False(t, status.Routes[1].TargetKnown)

	require.NoError(t, pm.Start(context.Background()))
	status, err = pm.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "running", status.State)
}

func TestStrictModeFailsStartOnDanglingRoute(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	saveModel(t, store, func(m *config.Model) {
		m.Containers = []config.ContainerEntry{{Name: "c1"}}
		m.Routes = []config.Route{{HostPort: 8000, Target: "gone"}}
	})
	pm.Strict = true

	err := pm.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
	assert.Empty(t, runtime.containers)
}

func TestJoinPorts(t *testing.T) {
	assert.Equal(t, "", joinPorts(nil))
	assert.Equal(t, "8000", joinPorts([]int{8000}))
	assert.Equal(t, "8000, 8001, 9090", joinPorts([]int{8000, 8001, 9090}))
}

func TestLogs(t *testing.T) {
	pm, runtime, store := newTestManager(t)
	seedModel(t, store)
	require.NoError(t, pm.Start(context.Background()))
	runtime.logOutput = "GET / 200\n"

	var buf bytes.Buffer
	require.NoError(t, pm.Logs(context.Background(), false, 100, &buf))
	assert.Equal(t, "GET / 200\n", buf.String())
}
