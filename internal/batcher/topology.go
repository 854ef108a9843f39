// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package batcher

import (
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jellydator/ttlcache/v3"
)

// Topology resolves the replicas that own a routing key.
type Topology interface {
	Replicas(keyspace string, routingKey []byte) (mapset.Set[string], error)
}

var ErrNoReplicas = errors.New("no replicas available")

// ReplicaSetID is the identity of a replica set: its sorted members.
func ReplicaSetID(replicas mapset.Set[string]) string {
	members := replicas.ToSlice()
	sort.Strings(members)
	return strings.Join(members, ",")
}

const defaultTopologyTTL = 5 * time.Minute

// RendezvousTopology places each routing key on the replicationFactor hosts
// with the highest rendezvous hash. Lookups are cached.
type RendezvousTopology struct {
	hosts             []string
	replicationFactor int
	cache             *ttlcache.Cache[string, mapset.Set[string]]
}

var _ Topology = (*RendezvousTopology)(nil)

// NewRendezvousTopology builds a topology over hosts. A replication factor
// outside [1, len(hosts)] is clamped.
func NewRendezvousTopology(hosts []string, replicationFactor int) *RendezvousTopology {
	hosts = slices.Clone(hosts)
	replicationFactor = max(1, min(replicationFactor, len(hosts)))
	return &RendezvousTopology{
		hosts:             hosts,
		replicationFactor: replicationFactor,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, mapset.Set[string]](defaultTopologyTTL),
			ttlcache.WithCapacity[string, mapset.Set[string]](100_000),
		),
	}
}

func (t *RendezvousTopology) Replicas(keyspace string, routingKey []byte) (mapset.Set[string], error) {
	if len(t.hosts) == 0 {
		return nil, ErrNoReplicas
	}
	cacheKey := keyspace + "\x00" + string(routingKey)
	if item := t.cache.Get(cacheKey); item != nil {
		return item.Value(), nil
	}
	ranked := t.rank(cacheKey)
	set := mapset.NewSet(ranked[:t.replicationFactor]...)
	t.cache.Set(cacheKey, set, ttlcache.DefaultTTL)
	return set, nil
}

// rank orders the hosts by rendezvous hash score, highest first.
func (t *RendezvousTopology) rank(key string) []string {
	type scored struct {
		host string
		hash uint64
	}
	candidates := make([]scored, len(t.hosts))
	for i, h := range t.hosts {
		candidates[i] = scored{host: h, hash: xxhash.Sum64String(key + h)}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].hash > candidates[j].hash })
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.host
	}
	return out
}
