package supabase

import (
	"errors"
	"strings"

	"labsos-backend/application/ports"
)

// FactoryConfig locates a Supabase project
type FactoryConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
}

// Factory hands out data sources for one Supabase project.
type Factory struct {
	restURL string
	anonKey string
	service *DataSource
}

var _ ports.DataSourceFactory = (*Factory)(nil)

// NewFactory creates a factory. The service data source bypasses row level
// security and is shared; user data sources are built per request.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.URL == "" || cfg.AnonKey == "" || cfg.ServiceRoleKey == "" {
		return nil, errors.New("supabase URL, anon key and service role key are required")
	}
	restURL := strings.TrimRight(cfg.URL, "/") + "/rest/v1"
	return &Factory{
		restURL: restURL,
		anonKey: cfg.AnonKey,
		service: NewDataSource(restURL, cfg.ServiceRoleKey, ""),
	}, nil
}

// Service implements ports.DataSourceFactory
func (f *Factory) Service() ports.TreeDataSource {
	return f.service
}

// ForUser implements ports.DataSourceFactory
func (f *Factory) ForUser(accessToken string) (ports.TreeDataSource, error) {
	if accessToken == "" {
		return nil, errors.New("access token is required")
	}
	return NewDataSource(f.restURL, f.anonKey, accessToken), nil
}
