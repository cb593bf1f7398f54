package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
)

// HealthStatus represents the health status of a service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a health check result
type HealthCheck struct {
	Service      string        `json:"service"`
	Status       HealthStatus  `json:"status"`
	Message      string        `json:"message,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

// HealthChecker is one dependency probed by the health endpoints
type HealthChecker interface {
	CheckHealth(ctx context.Context) *HealthCheck
}

// Worst returns the most severe status among checks
func Worst(checks map[string]*HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		switch check.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

func newCheck(service string) *HealthCheck {
	return &HealthCheck{Service: service, Timestamp: time.Now()}
}

func (h *HealthCheck) finish(status HealthStatus, message string) *HealthCheck {
	h.Status = status
	h.Message = message
	h.ResponseTime = time.Since(h.Timestamp)
	return h
}

// Pinger is satisfied by the Solana account source
type Pinger interface {
	IsHealthy(ctx context.Context) error
}

// RPCHealthChecker probes the Solana RPC endpoint
type RPCHealthChecker struct {
	rpc Pinger
}

// NewRPCHealthChecker creates a health checker for the RPC endpoint
func NewRPCHealthChecker(rpc Pinger) *RPCHealthChecker {
	return &RPCHealthChecker{rpc: rpc}
}

// CheckHealth implements HealthChecker
func (r *RPCHealthChecker) CheckHealth(ctx context.Context) *HealthCheck {
	check := newCheck("solana_rpc")
	if err := r.rpc.IsHealthy(ctx); err != nil {
		return check.finish(HealthStatusUnhealthy, err.Error())
	}
	return check.finish(HealthStatusHealthy, "latest blockhash available")
}

// DatabaseHealthChecker provides health check functionality for MongoDB
type DatabaseHealthChecker struct {
	client *mongo.Client
	db     *mongo.Database
	config *config.MongoDBConfig
}

// NewDatabaseHealthChecker creates a database health checker over an open client
func NewDatabaseHealthChecker(client *mongo.Client, cfg *config.MongoDBConfig) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{
		client: client,
		db:     client.Database(cfg.Database),
		config: cfg,
	}
}

// CheckHealth checks connectivity, database commands and API key collection access
func (dhc *DatabaseHealthChecker) CheckHealth(ctx context.Context) *HealthCheck {
	check := newCheck("mongodb")

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := dhc.client.Ping(ctx, nil); err != nil {
		return check.finish(HealthStatusUnhealthy, fmt.Sprintf("ping failed: %v", err))
	}

	var stats bson.M
	if err := dhc.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&stats); err != nil {
		return check.finish(HealthStatusDegraded, fmt.Sprintf("database operations failed: %v", err))
	}

	if _, err := dhc.db.Collection(dhc.config.APIKeyCollection).EstimatedDocumentCount(ctx); err != nil {
		return check.finish(HealthStatusDegraded, fmt.Sprintf("collection access failed: %v", err))
	}

	return check.finish(HealthStatusHealthy, "all checks passed")
}

// CheckConnectionPool checks the health of the MongoDB connection pool
func (dhc *DatabaseHealthChecker) CheckConnectionPool(ctx context.Context) *HealthCheck {
	check := newCheck("mongodb_pool")

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result bson.M
	if err := dhc.db.RunCommand(ctx, bson.D{{Key: "serverStatus", Value: 1}}).Decode(&result); err != nil {
		return check.finish(HealthStatusUnhealthy, fmt.Sprintf("failed to get server status: %v", err))
	}

	connections, ok := result["connections"].(bson.M)
	if !ok {
		return check.finish(HealthStatusDegraded, "connection stats not available")
	}
	current, currentOk := connections["current"].(int32)
	available, availableOk := connections["available"].(int32)
	if !currentOk || !availableOk {
		return check.finish(HealthStatusDegraded, "unable to parse connection stats")
	}
	if available < 10 {
		return check.finish(HealthStatusDegraded,
			fmt.Sprintf("low available connections: %d current, %d available", current, available))
	}
	return check.finish(HealthStatusHealthy,
		fmt.Sprintf("connection pool healthy: %d current, %d available", current, available))
}

// RequiredIndexes are the API key collection indexes created by EnsureIndexes
var RequiredIndexes = []string{"key_1", "active_1", "key_1_active_1"}

// CheckIndexes verifies that required indexes exist
func (dhc *DatabaseHealthChecker) CheckIndexes(ctx context.Context) *HealthCheck {
	check := newCheck("mongodb_indexes")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := dhc.db.Collection(dhc.config.APIKeyCollection).Indexes().List(ctx)
	if err != nil {
		return check.finish(HealthStatusUnhealthy, fmt.Sprintf("failed to list indexes: %v", err))
	}
	defer cursor.Close(ctx)

	var indexes []bson.M
	if err := cursor.All(ctx, &indexes); err != nil {
		return check.finish(HealthStatusUnhealthy, fmt.Sprintf("failed to decode indexes: %v", err))
	}

	present := make(map[string]bool, len(indexes))
	for _, index := range indexes {
		if name, ok := index["name"].(string); ok {
			present[name] = true
		}
	}
	if missing := missingIndexes(present); len(missing) > 0 {
		return check.finish(HealthStatusDegraded, fmt.Sprintf("missing indexes: %v", missing))
	}
	return check.finish(HealthStatusHealthy, "all required indexes present")
}

func missingIndexes(present map[string]bool) []string {
	var missing []string
	for _, name := range RequiredIndexes {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// GetDetailedHealth returns comprehensive health information
func (dhc *DatabaseHealthChecker) GetDetailedHealth(ctx context.Context) map[string]*HealthCheck {
	return map[string]*HealthCheck{
		"connectivity":    dhc.CheckHealth(ctx),
		"connection_pool": dhc.CheckConnectionPool(ctx),
		"indexes":         dhc.CheckIndexes(ctx),
	}
}
