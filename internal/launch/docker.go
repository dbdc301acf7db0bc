package launch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/Paintersrp/warden/internal/registry"
)

// ContainerSpec describes an agent run executed inside a container.
type ContainerSpec struct {
	Image   string
	Command []string
	Env     map[string]string
	Workdir string
	Ports   []string
	Task    string
	Model   string
}

// DockerLauncher runs agents in containers. The container runtime owns the
// process lifecycle, so runs are registered as sidecars: the registry holds
// the container's host pid but no child handle.
type DockerLauncher struct {
	reg *registry.Registry
	log *slog.Logger

	cli        *client.Client
	clientOnce sync.Once
	clientErr  error
}

// NewDocker constructs a DockerLauncher feeding the given registry.
func NewDocker(reg *registry.Registry, logger *slog.Logger) *DockerLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerLauncher{reg: reg, log: logger}
}

func (d *DockerLauncher) getClient() (*client.Client, error) {
	d.clientOnce.Do(func() {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			d.clientErr = err
			return
		}
		d.cli = cli
	})
	return d.cli, d.clientErr
}

// StartAgent creates and starts a container for the agent run, registers it
// as a sidecar under runID and begins streaming its logs into the registry.
func (d *DockerLauncher) StartAgent(ctx context.Context, runID, agentID int64, agentName string, spec ContainerSpec) error {
	if spec.Image == "" {
		return errors.New("launch: container image is required")
	}

	cli, err := d.getClient()
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}

	if err := ensureImage(ctx, cli, spec.Image); err != nil {
		return err
	}

	containerCfg, hostCfg, err := buildContainerConfigs(spec)
	if err != nil {
		return err
	}

	createResp, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return fmt.Errorf("container create: %w", err)
	}
	containerID := createResp.ID

	if err := cli.ContainerStart(ctx, containerID, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("container start: %w", err)
	}

	inspect, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return fmt.Errorf("container inspect: %w", err)
	}
	pid := inspect.State.Pid

	if err := d.reg.RegisterSidecarAgent(runID, agentID, agentName, pid, spec.Workdir, spec.Task, spec.Model); err != nil {
		_ = cli.ContainerKill(context.Background(), containerID, "SIGKILL")
		return err
	}

	d.log.Info("agent container started",
		"run_id", runID, "agent", agentName, "container_id", containerID[:12], "pid", pid)

	go d.streamLogs(runID, containerID)
	return nil
}

// streamLogs follows the container's demuxed log stream into the registry
// buffer. It ends when the container exits or the daemon drops the stream.
func (d *DockerLauncher) streamLogs(runID int64, containerID string) {
	cli, err := d.getClient()
	if err != nil {
		return
	}
	reader, err := cli.ContainerLogs(context.Background(), containerID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "all",
	})
	if err != nil {
		d.log.Warn("container log stream unavailable", "run_id", runID, "error", err)
		return
	}
	defer reader.Close()

	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, reader)
		pw.CloseWithError(copyErr)
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, scannerBufSize), scannerBufSize)
	for scanner.Scan() {
		d.reg.AppendOutput(runID, scanner.Text())
	}
}

func ensureImage(ctx context.Context, cli *client.Client, imageName string) error {
	_, _, err := cli.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}
	reader, err := cli.ImagePull(ctx, imageName, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func buildContainerConfigs(spec ContainerSpec) (*container.Config, *container.HostConfig, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, portSpec := range spec.Ports {
		mappings, err := nat.ParsePortSpec(portSpec)
		if err != nil {
			return nil, nil, fmt.Errorf("parse port %q: %w", portSpec, err)
		}
		for _, mapping := range mappings {
			exposed[mapping.Port] = struct{}{}
			bindings[mapping.Port] = append(bindings[mapping.Port], mapping.Binding)
		}
	}

	var cmd []string
	if len(spec.Command) > 0 {
		cmd = append([]string(nil), spec.Command...)
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          env,
		Cmd:          strslice.StrSlice(cmd),
		WorkingDir:   spec.Workdir,
		ExposedPorts: exposed,
	}
	host := &container.HostConfig{PortBindings: bindings}
	return cfg, host, nil
}
