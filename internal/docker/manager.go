package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Manager exposes containers and their resource usage. A nil client means
// docker support is disabled and every listing is empty.
type Manager struct {
	client *Client
	log    *slog.Logger
}

func NewManager(client *Client, logger *slog.Logger) *Manager {
	return &Manager{client: client, log: logger}
}

func (m *Manager) Enabled() bool { return m.client != nil }

// Ping reports whether the engine answers. A disabled manager is always ready.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	return m.client.Ping(ctx)
}

func (m *Manager) Containers(ctx context.Context) ([]Container, error) {
	return m.list(ctx)
}

// ContainersWithIDs fetches only the named containers. Unknown ids are
// simply absent from the result.
func (m *Manager) ContainersWithIDs(ctx context.Context, ids []string) ([]Container, error) {
	if len(ids) == 0 {
		return []Container{}, nil
	}
	return m.list(ctx, ids...)
}

func (m *Manager) Container(ctx context.Context, id string) (Container, bool, error) {
	cs, err := m.ContainersWithIDs(ctx, []string{id})
	if err != nil {
		return Container{}, false, err
	}
	for _, c := range cs {
		if c.ID == id {
			return c, true, nil
		}
	}
	return Container{}, false, nil
}

func (m *Manager) StatsForContainer(ctx context.Context, id string) (ContainerMetrics, bool, error) {
	if !m.Enabled() {
		return ContainerMetrics{}, false, nil
	}
	s, err := m.client.Stats(ctx, id)
	if IsNotFound(err) {
		return ContainerMetrics{}, false, nil
	}
	if err != nil {
		return ContainerMetrics{}, false, fmt.Errorf("stats for %s: %w", id, err)
	}
	return NormalizeStats(id, s), true, nil
}

// ContainerStats reads stats for every running container.
func (m *Manager) ContainerStats(ctx context.Context) ([]ContainerMetrics, error) {
	cs, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ContainerMetrics, 0, len(cs))
	for _, c := range cs {
		if c.State != StateRunning {
			continue
		}
		stats, ok, err := m.StatsForContainer(ctx, c.ID)
		if err != nil {
			m.log.Warn("container stats", "container", c.ID, "err", err)
			continue
		}
		if ok {
			out = append(out, stats)
		}
	}
	return out, nil
}

func (m *Manager) list(ctx context.Context, ids ...string) ([]Container, error) {
	if !m.Enabled() {
		return []Container{}, nil
	}
	summaries, err := m.client.ListContainers(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, NormalizeContainer(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName() < out[j].DisplayName() })
	return out, nil
}
