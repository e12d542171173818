// Package discovery backs the distributed transport (ps.TransportDistributed):
// it registers a partition's (tier, index) -> address mapping in etcd and
// lets peers discover each other, the same registration and polling pattern
// the teacher's pserver uses for pserver registration, generalized to both
// tiers of the fabric.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/etcd/clientv3"
	"github.com/coreos/etcd/clientv3/concurrency"
	log "github.com/sirupsen/logrus"
)

// Tier names the two partition kinds registered in etcd.
type Tier string

const (
	TierWorker Tier = "worker"
	TierServer Tier = "server"
)

func desiredPath(tier Tier) string { return "/psflow/" + string(tier) + "/desired" }
func memberPath(tier Tier, idx int) string {
	return "/psflow/" + string(tier) + "/members/" + strconv.Itoa(idx)
}

// Registry registers this process's partition address in etcd and keeps
// its lease alive for as long as the process runs, mirroring
// EtcdClient.Register/registerPserverEtcd's STM-transaction pattern.
type Registry struct {
	cli     *clientv3.Client
	timeout time.Duration
}

// NewRegistry dials etcd at the given comma-separated endpoints. It
// retries indefinitely, the same "connect or sleep and retry" loop
// EtcdClient.Register uses, since a transient etcd outage at job start
// is not a fatal condition.
func NewRegistry(endpoints string, timeout time.Duration) *Registry {
	ep := strings.Split(endpoints, ",")
	var cli *clientv3.Client
	for {
		var err error
		cli, err = clientv3.New(clientv3.Config{Endpoints: ep, DialTimeout: timeout})
		if err != nil {
			log.WithError(err).Error("discovery: connect to etcd failed, retrying")
			time.Sleep(timeout)
			continue
		}
		break
	}
	return &Registry{cli: cli, timeout: timeout}
}

// Close releases the etcd client.
func (r *Registry) Close() error { return r.cli.Close() }

// DeclareDesired publishes the expected partition count for a tier, the
// way EtcdClient.initDesiredPsercers publishes /ps_desired, using an STM
// transaction so concurrently starting partitions don't race to set it.
func (r *Registry) DeclareDesired(tier Tier, count int) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_, err := concurrency.NewSTM(r.cli, func(c concurrency.STM) error {
		if c.Get(desiredPath(tier)) == "" {
			c.Put(desiredPath(tier), strconv.Itoa(count))
		}
		return nil
	}, concurrency.WithAbortContext(ctx), concurrency.WithIsolation(concurrency.RepeatableReads))
	return err
}

// Register writes this partition's address under its tier/index and
// keeps its lease alive in the background until ctx is cancelled, the
// same lease-and-keepalive pattern registerPserverEtcd uses so a crashed
// partition's entry expires instead of lingering stale.
func (r *Registry) Register(ctx context.Context, tier Tier, idx int, addr string) error {
	grant, err := r.cli.Grant(ctx, 10)
	if err != nil {
		return fmt.Errorf("discovery: grant lease: %w", err)
	}
	if _, err := r.cli.Put(ctx, memberPath(tier, idx), addr, clientv3.WithLease(grant.ID)); err != nil {
		return fmt.Errorf("discovery: register %s/%d: %w", tier, idx, err)
	}
	ch, err := r.cli.KeepAlive(ctx, grant.ID)
	if err != nil {
		return fmt.Errorf("discovery: keepalive %s/%d: %w", tier, idx, err)
	}
	go func() {
		for range ch {
			// Eat keepalive responses so etcd does not expire the lease;
			// the channel closes on ctx cancellation.
		}
	}()
	return nil
}

// Lister polls etcd for every member address of a tier, the same
// desired-count-then-poll-members loop pserverEtcdLister.List runs.
type Lister struct {
	cli     *clientv3.Client
	timeout time.Duration
}

// NewLister builds a Lister sharing a Registry's etcd client.
func NewLister(r *Registry) *Lister {
	return &Lister{cli: r.cli, timeout: r.timeout}
}

// Desired blocks until the tier's desired partition count has been
// published, then returns it.
func (l *Lister) Desired(tier Tier) int {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		resp, err := l.cli.Get(ctx, desiredPath(tier))
		cancel()
		if err != nil {
			log.WithError(err).Error("discovery: get desired count failed, retrying")
			time.Sleep(l.timeout)
			continue
		}
		if len(resp.Kvs) == 0 {
			time.Sleep(l.timeout)
			continue
		}
		n, err := strconv.Atoi(string(resp.Kvs[0].Value))
		if err != nil {
			log.WithError(err).Error("discovery: desired count not an int, retrying")
			time.Sleep(l.timeout)
			continue
		}
		return n
	}
}

// List blocks until every partition in [0, n) of tier has registered an
// address, then returns them in partition order.
func (l *Lister) List(tier Tier, n int) []string {
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
			resp, err := l.cli.Get(ctx, memberPath(tier, i))
			cancel()
			if err != nil || len(resp.Kvs) == 0 {
				time.Sleep(l.timeout)
				continue
			}
			addrs[i] = string(resp.Kvs[0].Value)
			break
		}
	}
	return addrs
}
