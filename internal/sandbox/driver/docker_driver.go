package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

const (
	// sandboxLabel marks every container this driver creates, so a
	// restarted process can find and reap orphans left by a previous crash.
	sandboxLabel = "judgesandbox.managed"

	cpuPeriod = 100000
)

// dockerDriver implements Driver against the Docker Engine API.
type dockerDriver struct {
	cli *client.Client
}

// NewDockerDriver wraps an existing Docker client. The caller owns the
// client's lifetime (Close it at process shutdown).
func NewDockerDriver(cli *client.Client) Driver {
	return &dockerDriver{cli: cli}
}

func (d *dockerDriver) Create(ctx context.Context, image_ string, limits Limits) (Sandbox, error) {
	memBytes, err := parseMemory(limits.Memory)
	if err != nil {
		return Sandbox{}, fmt.Errorf("%w: %v", ErrArchiveIO, err)
	}

	cpu := limits.CPULimit
	if cpu <= 0 {
		cpu = 1.0
	}

	id := uuid.NewString()
	containerCfg := &container.Config{
		Image:  image_,
		Cmd:    []string{"sleep", "infinity"},
		Labels: map[string]string{sandboxLabel: "true", "judgesandbox.id": id},
	}
	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Privileged:  false,
		Resources: container.Resources{
			CPUQuota:  int64(cpuPeriod * cpu),
			CPUPeriod: cpuPeriod,
			Memory:    memBytes,
		},
	}

	if err := d.ensureImage(ctx, image_); err != nil {
		return Sandbox{}, err
	}

	resp, err := d.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return Sandbox{}, classifyRuntimeErr(err)
	}
	return Sandbox{ID: resp.ID}, nil
}

func (d *dockerDriver) ensureImage(ctx context.Context, name string) error {
	_, err := d.cli.ImageInspect(ctx, name)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return classifyRuntimeErr(err)
	}
	reader, pullErr := d.cli.ImagePull(ctx, name, image.PullOptions{})
	if pullErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrImageMissing, name, pullErr)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrImageMissing, name, err)
	}
	return nil
}

func (d *dockerDriver) Start(ctx context.Context, sb Sandbox) error {
	if err := d.cli.ContainerStart(ctx, sb.ID, container.StartOptions{}); err != nil {
		return classifyRuntimeErr(err)
	}
	return nil
}

func (d *dockerDriver) PutArchive(ctx context.Context, sb Sandbox, path string, tar io.Reader) error {
	if err := d.cli.CopyToContainer(ctx, sb.ID, path, tar, container.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveIO, classifyRuntimeErr(err))
	}
	return nil
}

func (d *dockerDriver) GetArchive(ctx context.Context, sb Sandbox, path string) (io.ReadCloser, error) {
	rc, _, err := d.cli.CopyFromContainer(ctx, sb.ID, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveIO, classifyRuntimeErr(err))
	}
	return rc, nil
}

func (d *dockerDriver) Exec(ctx context.Context, sb Sandbox, argv []string, workdir string) (ExecResult, error) {
	start := time.Now()

	execResp, err := d.cli.ContainerExecCreate(ctx, sb.ID, container.ExecOptions{
		Cmd:          argv,
		WorkingDir:   workdir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		// The exec itself never started: this is the driver-level
		// ExecFailure the engine's exit-code interpretation never sees,
		// since no container process ran to produce one.
		return ExecResult{}, &ExecFailure{ExitCode: -1, Err: classifyRuntimeErr(err)}
	}

	attach, err := d.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return ExecResult{}, &ExecFailure{ExitCode: -1, Err: classifyRuntimeErr(err)}
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copyDone <- copyErr
	}()

	select {
	case <-ctx.Done():
		return ExecResult{Wall: time.Since(start)}, fmt.Errorf("%w: %v", ErrDeadline, ctx.Err())
	case copyErr := <-copyDone:
		if copyErr != nil && !errors.Is(copyErr, io.EOF) {
			return ExecResult{Wall: time.Since(start)}, fmt.Errorf("%w: %v", ErrArchiveIO, copyErr)
		}
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return ExecResult{Wall: time.Since(start)}, classifyRuntimeErr(err)
	}

	return ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Wall:     time.Since(start),
	}, nil
}

func (d *dockerDriver) Stop(ctx context.Context, sb Sandbox, grace time.Duration) error {
	secs := int(grace.Seconds())
	if err := d.cli.ContainerStop(ctx, sb.ID, container.StopOptions{Timeout: &secs}); err != nil {
		return classifyRuntimeErr(err)
	}
	return nil
}

func (d *dockerDriver) Remove(ctx context.Context, sb Sandbox) error {
	err := d.cli.ContainerRemove(ctx, sb.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		return classifyRuntimeErr(err)
	}
	return nil
}

func classifyRuntimeErr(err error) error {
	if err == nil {
		return nil
	}
	if client.IsErrNotFound(err) {
		return fmt.Errorf("%w: %v", ErrImageMissing, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrDeadline, err)
	}
	return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
}

// parseMemory accepts a Docker-style memory cap ("128m", "1g", "512k") and
// returns bytes.
func parseMemory(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'k':
		mult = 1024
		s = s[:len(s)-1]
	case 'm':
		mult = 1024 * 1024
		s = s[:len(s)-1]
	case 'g':
		mult = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory limit %q: %w", s, err)
	}
	return n * mult, nil
}
