package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"labsos-backend/domain/search"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "gemini-2.0-flash", cfg.GenerationModel)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.False(t, cfg.UseSupabase())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_address: ":9090"
supabase_url: https://example.supabase.co
generation_timeout: 10s
cors_allowed_origins: [https://labsos.app]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.app, https://b.app")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ServerAddress, "env wins over file")
	assert.Equal(t, "https://example.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, 10*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, []string{"https://a.app", "https://b.app"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.UseSupabase())
}

func TestValidate_Production(t *testing.T) {
	cfg := Defaults()
	cfg.Environment = "production"
	assert.Error(t, cfg.Validate())

	cfg.SupabaseURL = "https://x.supabase.co"
	cfg.SupabaseAnonKey = "anon"
	cfg.SupabaseServiceRoleKey = "service"
	assert.NoError(t, cfg.Validate())

	cfg.Temperature = 3
	assert.Error(t, cfg.Validate())
}

func TestParseTuning(t *testing.T) {
	tuning, err := ParseTuning([]byte(`
small_tree_threshold: 80
simple_query:
  max_nodes: 10
  similarity_threshold: 0.75
`))
	require.NoError(t, err)

	assert.Equal(t, 80, tuning.SmallTreeThreshold)
	assert.Equal(t, 10, tuning.SimpleQuery.MaxNodes)
	assert.False(t, tuning.SimpleQuery.IncludeDependencies)
	assert.Equal(t, search.DefaultTuning().AmbiguousQuery, tuning.AmbiguousQuery, "untouched keys keep defaults")

	empty, err := ParseTuning(nil)
	require.NoError(t, err)
	assert.Equal(t, search.DefaultTuning(), empty)

	_, err = ParseTuning([]byte("small_tree_treshold: 10\n"))
	assert.Error(t, err, "unknown keys rejected")

	_, err = ParseTuning([]byte("simple_query:\n  max_nodes: 0\n"))
	assert.Error(t, err)
}

func TestTuningWatcher_Reloads(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte("small_tree_threshold: 50\n"), 0o600))

	updates := make(chan search.Tuning, 4)
	w, err := NewTuningWatcher(path, func(tu search.Tuning) error {
		select {
		case updates <- tu:
		default:
		}
		return nil
	}, zap.NewNop())
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond
	w.Start()

	// An invalid file is ignored
	require.NoError(t, os.WriteFile(path, []byte("small_tree_threshold: -1\n"), 0o600))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("small_tree_threshold: 75\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for seen := false; !seen; {
		select {
		case got := <-updates:
			assert.GreaterOrEqual(t, got.SmallTreeThreshold, 0)
			seen = got.SmallTreeThreshold == 75
		case <-deadline:
			t.Fatal("tuning change not observed")
		}
	}

	w.Stop()
	w.Stop()
}
