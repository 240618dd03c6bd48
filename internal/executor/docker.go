package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/dyluth/warren/internal/config"
	dockerpkg "github.com/dyluth/warren/internal/docker"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// containerAPI is the subset of the Docker client the executor drives.
type containerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options types.ContainerLogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
}

// Docker runs each task in an ephemeral container of the primary agent's image.
// The task succeeds iff the container exits 0; its logs are the output.
type Docker struct {
	api          containerAPI
	instanceName string
	defaultImage string
	agents       map[string]config.Agent
}

// NewDocker creates a Docker executor.
func NewDocker(api containerAPI, instanceName, defaultImage string, agents map[string]config.Agent) *Docker {
	return &Docker{
		api:          api,
		instanceName: instanceName,
		defaultImage: defaultImage,
		agents:       agents,
	}
}

// Execute creates, starts and waits for the worker container, then collects its
// logs and removes it.
func (d *Docker) Execute(ctx context.Context, req Request) (Result, error) {
	agent := d.agents[req.Primary.ID]

	image := agent.Image
	if image == "" {
		image = d.defaultImage
	}
	if image == "" {
		return Result{}, fmt.Errorf("no worker image configured for agent %s", req.Primary.ID)
	}

	supporting := make([]string, 0, len(req.Supporting))
	for _, s := range req.Supporting {
		supporting = append(supporting, s.ID)
	}

	containerConfig := &container.Config{
		Image: image,
		Cmd:   agent.Command,
		Env: append([]string{
			fmt.Sprintf("WARREN_INSTANCE_NAME=%s", d.instanceName),
			fmt.Sprintf("WARREN_AGENT_ID=%s", req.Primary.ID),
			fmt.Sprintf("WARREN_TASK_ID=%s", req.TaskID),
			fmt.Sprintf("WARREN_TASK_TYPE=%s", req.Type),
			fmt.Sprintf("WARREN_TASK_COMPLEXITY=%s", req.Complexity),
			fmt.Sprintf("WARREN_TASK_TEXT=%s", req.Text),
			fmt.Sprintf("WARREN_SUPPORTING_AGENTS=%s", strings.Join(supporting, ",")),
		}, agent.Environment...),
		Labels: dockerpkg.BuildLabels(d.instanceName, dockerpkg.ComponentWorker, req.Primary.ID, req.TaskID),
	}

	hostConfig := &container.HostConfig{
		AutoRemove: false, // removed explicitly after logs are read
	}

	name := dockerpkg.WorkerContainerName(d.instanceName, req.Primary.ID, req.TaskID)

	resp, err := d.api.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create worker container: %w", err)
	}
	defer d.remove(resp.ID)

	if err := d.api.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return Result{}, fmt.Errorf("failed to start worker container: %w", err)
	}

	statusCh, errCh := d.api.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)

	var exitCode int64
	select {
	case err := <-errCh:
		return Result{}, fmt.Errorf("failed waiting for worker container %s: %w", name, err)
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs := d.logs(ctx, resp.ID)

	if exitCode != 0 {
		return Result{
			Success: false,
			Output:  fmt.Sprintf("worker container exited with code %d\n\nLogs:\n%s", exitCode, logs),
		}, nil
	}

	return Result{Success: true, Output: logs}, nil
}

// logs returns the last 100 lines of the worker's stdout and stderr.
func (d *Docker) logs(ctx context.Context, containerID string) string {
	reader, err := d.api.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "100",
	})
	if err != nil {
		return fmt.Sprintf("(failed to retrieve logs: %v)", err)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return fmt.Sprintf("(failed to read logs: %v)", err)
	}

	out := strings.TrimRight(stdout.String(), "\n")
	if stderr.Len() > 0 {
		out += "\n" + strings.TrimRight(stderr.String(), "\n")
	}
	return out
}

func (d *Docker) remove(containerID string) {
	if err := d.api.ContainerRemove(context.Background(), containerID, types.ContainerRemoveOptions{Force: true}); err != nil {
		log.Printf("[Executor] Failed to remove worker container %s: %v", containerID, err)
	}
}
