// Package di wires the application together.
package di

import (
	"net/http"

	"go.uber.org/zap"

	"labsos-backend/application/commands/bus"
	"labsos-backend/application/ports"
	querybus "labsos-backend/application/queries/bus"
	"labsos-backend/application/services"
	"labsos-backend/infrastructure/config"
	infraobs "labsos-backend/infrastructure/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Factory    ports.DataSourceFactory
	Tuning     *services.TuningStore
	Collector  *infraobs.Collector
	QueryBus   *querybus.QueryBus
	CommandBus *bus.CommandBus
	Router     http.Handler
}

// Close flushes buffered log entries
func (c *Container) Close() {
	_ = c.Logger.Sync()
}
