package manager

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"switchboard/config"
	"switchboard/docker"
)

// fakeRuntime is an in-memory stand-in for the Docker daemon.
type fakeRuntime struct {
	mu sync.Mutex

	containers map[string]*fakeContainer
	networks   map[string]bool

	// external containers visible to discovery and network auto-detection
	// but not managed by the lifecycle controller.
	external         []docker.ContainerSummary
	externalNetworks map[string]string

	builtTags  []string
	builtConfs []string
	runPorts   [][]int

	buildErr   error
	connectErr map[string]error
	connected  []string

	// lingerPolls makes a stopped container stay visible for N existence
	// checks, emulating slow daemon-side removal.
	lingerPolls   int
	lingerPending map[string]int

	logOutput string
}

type fakeContainer struct {
	image   string
	network string
	ports   []int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		containers:       map[string]*fakeContainer{},
		networks:         map[string]bool{},
		externalNetworks: map[string]string{},
		connectErr:       map[string]error{},
		lingerPending:    map[string]int{},
	}
}

func (f *fakeRuntime) ContainerExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if remaining, ok := f.lingerPending[name]; ok {
		if remaining > 0 {
			f.lingerPending[name] = remaining - 1
			return true, nil
		}
		delete(f.lingerPending, name)
	}
	_, ok := f.containers[name]
	return ok, nil
}

func (f *fakeRuntime) ContainerStatus(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[name]; !ok {
		return "", fmt.Errorf("container %s: %w", name, docker.ErrNotFound)
	}
	return "running", nil
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]docker.ContainerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := append([]docker.ContainerSummary{}, f.external...)
	for name := range f.containers {
		result = append(result, docker.ContainerSummary{Name: name, State: "running"})
	}
	return result, nil
}

func (f *fakeRuntime) ContainerNetwork(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if network, ok := f.externalNetworks[name]; ok {
		return network, nil
	}
	return "", fmt.Errorf("container %s: %w", name, docker.ErrNotFound)
}

func (f *fakeRuntime) RunContainer(ctx context.Context, image, name, network string, hostPorts []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[name] = &fakeContainer{image: image, network: network, ports: hostPorts}
	f.runPorts = append(f.runPorts, hostPorts)
	return nil
}

func (f *fakeRuntime) StopAndRemoveContainer(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[name]; !ok {
		return fmt.Errorf("container %s: %w", name, docker.ErrNotFound)
	}
	delete(f.containers, name)
	if f.lingerPolls > 0 {
		f.lingerPending[name] = f.lingerPolls
	}
	return nil
}

func (f *fakeRuntime) NetworkNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.networks))
	for name := range f.networks {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeRuntime) ListNetworks(ctx context.Context) ([]docker.NetworkSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]docker.NetworkSummary, 0, len(f.networks))
	for name := range f.networks {
		result = append(result, docker.NetworkSummary{Name: name, Driver: "bridge", Scope: "local"})
	}
	return result, nil
}

func (f *fakeRuntime) CreateNetwork(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[name] = true
	return nil
}

func (f *fakeRuntime) ConnectNetwork(ctx context.Context, networkName, containerName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.connectErr[networkName]; ok {
		return err
	}
	f.connected = append(f.connected, networkName)
	return nil
}

func (f *fakeRuntime) BuildImage(ctx context.Context, dir, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return f.buildErr
	}
	conf, err := os.ReadFile(filepath.Join(dir, "nginx.conf"))
	if err != nil {
		return err
	}
	f.builtTags = append(f.builtTags, tag)
	f.builtConfs = append(f.builtConfs, string(conf))
	return nil
}

func (f *fakeRuntime) ContainerLogs(ctx context.Context, name string, follow bool, tail int, out io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[name]; !ok {
		return fmt.Errorf("container %s: %w", name, docker.ErrNotFound)
	}
	_, err := io.WriteString(out, f.logOutput)
	return err
}

// newTestManager builds a ProxyManager over a temp-dir store and a fake
// runtime, with fast poll timings.
func newTestManager(t *testing.T) (*ProxyManager, *fakeRuntime, *config.Store) {
	t.Helper()
	store := config.NewStore(t.TempDir())
	runtime := newFakeRuntime()
	pm := NewProxyManager(store, runtime)
	pm.PollInterval = time.Millisecond
	return pm, runtime, store
}

func saveModel(t *testing.T, store *config.Store, mutate func(*config.Model)) {
	t.Helper()
	model, err := store.Load()
	require.NoError(t, err)
	mutate(model)
	require.NoError(t, store.Save(model))
}
