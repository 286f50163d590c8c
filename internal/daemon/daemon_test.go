package daemon

import (
	"testing"

	"go.uber.org/fx"

	"github.com/herosoft/wagate/internal/config"
)

// TestModuleGraph validates the dependency graph without starting the daemon.
func TestModuleGraph(t *testing.T) {
	cfg := config.Default()
	cfg.StorageDir = t.TempDir()

	if err := fx.ValidateApp(Module(cfg)); err != nil {
		t.Fatalf("fx.ValidateApp() error = %v", err)
	}
}
