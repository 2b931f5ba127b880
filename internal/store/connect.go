package store

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"bestcity-api/internal/config"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/description"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// StatusRecorder receives database link transitions.
type StatusRecorder interface {
	SetDBConnected(connected bool)
}

// Connect bootstraps the MongoDB client once. It never fails: without a URI,
// or with one the driver rejects, it returns an offline store so the process
// keeps serving and every store call reports ErrNotConnected. The initial ping
// runs in the background; reconnection is left to the driver.
func Connect(ctx context.Context, cfg config.MongoConfig, status StatusRecorder, logger *zap.Logger) Store {
	if cfg.URI == "" {
		logger.Warn("MongoDB URI not found in environment variables")
		logger.Warn("Please configure MONGO_URI in the environment or config file")
		status.SetDBConnected(false)
		return Offline(errors.New("MONGO_URI is not configured"))
	}

	opts := options.Client().ApplyURI(cfg.URI)
	database := databaseName(cfg)
	l := newLink(status, logger, strings.Join(opts.Hosts, ","), database)
	opts.SetServerMonitor(l.monitor())
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB Connection Error:", zap.Error(err))
		status.SetDBConnected(false)
		return Offline(err)
	}

	go func() {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			logger.Error("MongoDB Connection Error:", zap.Error(err))
			l.down(err)
			return
		}
		l.up()
	}()

	return NewMongoStore(client, database)
}

// databaseName prefers the database named in the URI path.
func databaseName(cfg config.MongoConfig) string {
	if u, err := url.Parse(cfg.URI); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return cfg.Database
}

type linkState int

const (
	linkPending linkState = iota
	linkUp
	linkDown
)

// link tracks the client's reachability from topology changes and reports
// transitions only. The deployment counts as up while any server is
// selectable, so one unreachable replica-set member does not flap the status.
type link struct {
	mu        sync.Mutex
	state     linkState
	connected bool
	status    StatusRecorder
	logger    *zap.Logger
	host      string
	database  string
}

func newLink(status StatusRecorder, logger *zap.Logger, host, database string) *link {
	return &link{status: status, logger: logger, host: host, database: database}
}

func (l *link) monitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		TopologyDescriptionChanged: func(e *event.TopologyDescriptionChangedEvent) {
			l.observe(e.NewDescription)
		},
	}
}

func (l *link) observe(topo description.Topology) {
	var lastErr error
	for _, srv := range topo.Servers {
		if selectable(srv.Kind) {
			l.up()
			return
		}
		if srv.LastError != nil {
			lastErr = srv.LastError
		}
	}
	if len(topo.Servers) == 0 {
		return
	}
	if lastErr == nil {
		lastErr = errors.New("no reachable servers")
	}
	l.down(lastErr)
}

func (l *link) up() {
	l.mu.Lock()
	prev := l.state
	first := !l.connected
	l.state = linkUp
	l.connected = true
	l.mu.Unlock()

	if prev == linkUp {
		return
	}
	if first {
		l.logger.Info("MongoDB Connected", zap.String("host", l.host), zap.String("database", l.database))
	} else {
		l.logger.Info("MongoDB reconnected")
	}
	l.status.SetDBConnected(true)
}

func (l *link) down(err error) {
	l.mu.Lock()
	prev := l.state
	l.state = linkDown
	l.mu.Unlock()

	if prev == linkDown {
		return
	}
	if prev == linkUp {
		l.logger.Warn("MongoDB disconnected", zap.Error(err))
	}
	l.status.SetDBConnected(false)
}

// selectable reports whether a server of this kind can serve operations.
func selectable(kind description.ServerKind) bool {
	switch kind {
	case description.Standalone, description.RSPrimary, description.RSSecondary,
		description.Mongos, description.LoadBalancer:
		return true
	}
	return false
}
