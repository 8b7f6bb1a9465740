// Package nginx turns the registry Model into the proxy's nginx
// configuration and the Docker build recipe that bakes it into an image.
// Generation is pure: the same Model always yields byte-identical output.
package nginx

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"switchboard/config"
)

// Options controls how dangling routes are treated. Lenient (the default)
// silently skips a route whose target container is gone; Strict fails
// generation instead.
type Options struct {
	Strict bool
}

const serverBlock = `    server {
        listen %d;

        set $backend_addr %s:%d;
        location / {
            proxy_pass http://$backend_addr;
            proxy_set_header Host $host;
            proxy_set_header X-Real-IP $remote_addr;
            proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
            resolver 127.0.0.11 valid=30s;
            proxy_next_upstream error timeout http_502 http_503 http_504;
            proxy_intercept_errors on;
            error_page 502 503 504 =503 /fallback_%d;
        }

        location = /fallback_%d {
            default_type text/plain;
            return 503 'Service temporarily unavailable - container %s is not running';
        }
    }`

// Generate renders the nginx configuration for every resolvable route.
// Upstream addresses go through a variable plus the embedded Docker DNS
// resolver, so a backend recreated with a new address is picked up without
// restarting the proxy.
func Generate(model *config.Model, opts Options) (string, error) {
	servers := make([]string, 0, len(model.Routes))

	for _, route := range model.Routes {
		// A route's target is always a container name, never a label.
		var target *config.ContainerEntry
		for i := range model.Containers {
			if model.Containers[i].Name == route.Target {
				target = &model.Containers[i]
				break
			}
		}
		if target == nil {
			if opts.Strict {
				return "", fmt.Errorf("route %d -> %s: target container not in registry", route.HostPort, route.Target)
			}
			continue
		}

		servers = append(servers, fmt.Sprintf(serverBlock,
			route.HostPort,
			target.Name, target.InternalPort(),
			route.HostPort,
			route.HostPort, target.Name,
		))
	}

	conf := fmt.Sprintf(`events {}

http {
    resolver 127.0.0.11 valid=30s;
%s
}
`, strings.Join(servers, "\n\n"))
	return conf, nil
}

// Dockerfile renders the build recipe: a stock nginx base image with the
// generated configuration installed and every host port declared.
func Dockerfile(hostPorts []int) string {
	ports := make([]string, 0, len(hostPorts))
	for _, p := range hostPorts {
		ports = append(ports, strconv.Itoa(p))
	}

	return fmt.Sprintf(`FROM nginx:stable-alpine
COPY nginx.conf /etc/nginx/nginx.conf
EXPOSE %s
CMD ["nginx", "-g", "daemon off;"]
`, strings.Join(ports, " "))
}

// BuildContext is everything the image build needs, regenerated from
// scratch on every build.
type BuildContext struct {
	NginxConf  string
	Dockerfile string
}

// NewBuildContext generates the configuration and recipe for a Model.
func NewBuildContext(model *config.Model, opts Options) (*BuildContext, error) {
	conf, err := Generate(model, opts)
	if err != nil {
		return nil, err
	}
	return &BuildContext{
		NginxConf:  conf,
		Dockerfile: Dockerfile(model.HostPorts()),
	}, nil
}

// WriteTo materializes the build context into dir, creating it if needed.
func (b *BuildContext) WriteTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create build dir %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nginx.conf"), []byte(b.NginxConf), 0o644); err != nil {
		return fmt.Errorf("failed to write nginx.conf: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(b.Dockerfile), 0o644); err != nil {
		return fmt.Errorf("failed to write Dockerfile: %w", err)
	}
	return nil
}
