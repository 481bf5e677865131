package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adminkit/warden/pkg/observability"
)

// cacheKey is the redis hash namespace holding the permission projection.
// The key schema inside it is stable across implementations:
// field "{userId}:{groupId}:{resourceName}", value JSON permission flags.
const cacheKey = "auth"

// hscanCount is the page size used when scanning the permission hash.
const hscanCount = 100

// rebuildWorkers bounds the concurrent inserts during a rebuild.
const rebuildWorkers = 16

// TupleSource supplies the flat permission tuples the cache is built
// from, one row per (user, group, resource) combination reachable
// through a non-blocked user and group.
type TupleSource interface {
	FetchAllPermissionTuples(ctx context.Context) ([]PermissionTuple, error)
}

// Cache maintains the denormalized permission projection in redis and
// answers the two lookup shapes the authorizer and the login flow need.
// It is shared process-wide; inject it as a dependency, never reach for
// a package-level instance.
type Cache struct {
	client  *redis.Client
	source  TupleSource
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewCache creates a permission cache on top of an established redis
// client. metrics may be nil.
func NewCache(client *redis.Client, source TupleSource, log *logrus.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		client:  client,
		source:  source,
		log:     log,
		metrics: metrics,
	}
}

// Connect dials redis and verifies connectivity.
func Connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Rebuild replaces the whole projection: it fetches every permission
// tuple in one pass, clears the namespace, then inserts each tuple as
// one hash field. Inserts run concurrently against redis with the
// first failure reported to the caller; a failed rebuild can leave the
// cache partially populated. Rebuild is not serialized against
// concurrent rebuilds or lookups, so readers may transiently observe
// an empty cache.
func (c *Cache) Rebuild(ctx context.Context) error {
	start := time.Now()
	c.log.Debug("loading authorization roles into cache")

	tuples, err := c.source.FetchAllPermissionTuples(ctx)
	if err != nil {
		c.metrics.ObserveCacheRebuild(time.Since(start), 0, err)
		return fmt.Errorf("fetch permission tuples: %w", err)
	}

	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.metrics.ObserveCacheRebuild(time.Since(start), 0, err)
		return fmt.Errorf("clear authorization cache: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildWorkers)
	for _, tuple := range tuples {
		tuple := tuple
		g.Go(func() error {
			field := fmt.Sprintf("%d:%d:%s", tuple.UserID, tuple.GroupID, tuple.Resource)
			value, err := json.Marshal(permissionFlags{
				Write:  tuple.Write,
				Update: tuple.Update,
				Delete: tuple.Delete,
			})
			if err != nil {
				return fmt.Errorf("marshal permission %s: %w", field, err)
			}
			if err := c.client.HSet(gctx, cacheKey, field, value).Err(); err != nil {
				c.log.WithError(err).WithFields(logrus.Fields{
					"user_id":  tuple.UserID,
					"group_id": tuple.GroupID,
					"resource": tuple.Resource,
				}).Error("failed to cache authorization role")
				return fmt.Errorf("cache permission %s: %w", field, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.metrics.ObserveCacheRebuild(time.Since(start), len(tuples), err)
		return fmt.Errorf("load authorization roles into cache: %w", err)
	}

	c.metrics.ObserveCacheRebuild(time.Since(start), len(tuples), nil)
	c.log.Debugf("%d authorization roles successfully cached", len(tuples))
	return nil
}

// Lookup returns the consolidated permission a user holds on a resource
// path, merging across every group that grants it. A nil result means
// no group grants the user any access to the resource and the caller
// must deny. The path is normalized before matching, so "/users/42"
// resolves against the "/users" grants.
func (c *Cache) Lookup(ctx context.Context, userID int64, resourcePath string) (*ResourcePermission, error) {
	resource := NormalizePath(resourcePath)

	flags, err := c.scan(ctx, fmt.Sprintf("%d:*%s", userID, resource))
	if err != nil {
		return nil, err
	}
	if len(flags) == 0 {
		return nil, nil
	}

	merged := ResourcePermission{Resource: resource}
	for _, f := range flags {
		merged.Merge(ResourcePermission{Write: f.Write, Update: f.Update, Delete: f.Delete})
	}
	return &merged, nil
}

// AllPermissions returns one consolidated entry per distinct resource
// the user can reach in any capacity. Used at login to embed the full
// permission set in the session payload.
func (c *Cache) AllPermissions(ctx context.Context, userID int64) ([]ResourcePermission, error) {
	merged := make(map[string]*ResourcePermission)

	err := c.scanFields(ctx, fmt.Sprintf("%d:*:*", userID), func(field string, f permissionFlags) {
		// The resource name starts at the first path separator of the
		// composite "{userId}:{groupId}:{resourceName}" field.
		idx := strings.Index(field, "/")
		if idx < 0 {
			return
		}
		resource := field[idx:]

		p, ok := merged[resource]
		if !ok {
			merged[resource] = &ResourcePermission{
				Resource: resource,
				Write:    f.Write,
				Update:   f.Update,
				Delete:   f.Delete,
			}
			return
		}
		p.Merge(ResourcePermission{Write: f.Write, Update: f.Update, Delete: f.Delete})
	})
	if err != nil {
		return nil, err
	}

	permissions := make([]ResourcePermission, 0, len(merged))
	for _, p := range merged {
		permissions = append(permissions, *p)
	}
	sort.Slice(permissions, func(i, j int) bool {
		return permissions[i].Resource < permissions[j].Resource
	})
	return permissions, nil
}

// scan collects the permission values of every hash field matching the
// pattern, walking the HSCAN cursor to completion.
func (c *Cache) scan(ctx context.Context, pattern string) ([]permissionFlags, error) {
	var flags []permissionFlags
	err := c.scanFields(ctx, pattern, func(_ string, f permissionFlags) {
		flags = append(flags, f)
	})
	return flags, err
}

func (c *Cache) scanFields(ctx context.Context, pattern string, fn func(field string, f permissionFlags)) error {
	var cursor uint64
	for {
		// HSCAN returns alternating field/value pairs per page.
		pairs, next, err := c.client.HScan(ctx, cacheKey, cursor, pattern, hscanCount).Result()
		if err != nil {
			return fmt.Errorf("scan authorization cache: %w", err)
		}

		for i := 0; i+1 < len(pairs); i += 2 {
			var f permissionFlags
			if err := json.Unmarshal([]byte(pairs[i+1]), &f); err != nil {
				return fmt.Errorf("unmarshal cached permission %s: %w", pairs[i], err)
			}
			fn(pairs[i], f)
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping verifies the cache backend is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
