package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
)

// BuildImage builds dir (which must contain a Dockerfile) into an image with
// the given tag, removing intermediate containers on success. The daemon's
// error message is surfaced verbatim when the build fails.
func (c *Client) BuildImage(ctx context.Context, dir, tag string) error {
	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := c.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", tag, err)
	}
	defer resp.Body.Close()

	// The response is a JSON message stream; draining it is what actually
	// waits for the build, and any build step failure arrives as an error
	// message inside the stream.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("build of %s failed: %w", tag, err)
	}
	return nil
}

// demuxLogs copies a multiplexed docker log stream to out, keeping stdout
// and stderr interleaved in arrival order.
func demuxLogs(out io.Writer, src io.Reader) error {
	if _, err := stdcopy.StdCopy(out, out, src); err != nil && err != io.EOF {
		return fmt.Errorf("failed to stream logs: %w", err)
	}
	return nil
}
