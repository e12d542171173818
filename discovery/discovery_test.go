package discovery_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/coreos/etcd/embed"
	"github.com/stretchr/testify/assert"

	"github.com/latticeflow/psflow/discovery"
)

// startEmbeddedEtcd launches an in-process etcd server on the default
// endpoint, the same embed.StartEtcd pattern the teacher's master
// service test uses for an etcd-backed test.
func startEmbeddedEtcd(t *testing.T) func() {
	t.Helper()
	dir, err := os.MkdirTemp("", "psflow-discovery-test")
	assert.NoError(t, err)

	cfg := embed.NewConfig()
	cfg.Dir = dir
	e, err := embed.StartEtcd(cfg)
	assert.NoError(t, err)

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(60 * time.Second):
		e.Server.Stop()
		t.Fatal("embedded etcd took too long to start")
	}

	return func() {
		e.Close()
		os.RemoveAll(dir)
	}
}

func TestRegistryRegisterAndList(t *testing.T) {
	stop := startEmbeddedEtcd(t)
	defer stop()

	registry := discovery.NewRegistry("127.0.0.1:2379", 3*time.Second)
	defer registry.Close()

	assert.NoError(t, registry.DeclareDesired(discovery.TierServer, 2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, registry.Register(ctx, discovery.TierServer, 0, "127.0.0.1:30000"))
	assert.NoError(t, registry.Register(ctx, discovery.TierServer, 1, "127.0.0.1:30001"))

	lister := discovery.NewLister(registry)
	assert.Equal(t, 2, lister.Desired(discovery.TierServer))
	addrs := lister.List(discovery.TierServer, 2)
	assert.Equal(t, []string{"127.0.0.1:30000", "127.0.0.1:30001"}, addrs)
}
