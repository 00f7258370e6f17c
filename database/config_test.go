package database

import "testing"

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.MaxConns != 25 {
		t.Errorf("MaxConns = %d, want 25", cfg.MaxConns)
	}
	if cfg.MinConns != 2 {
		t.Errorf("MinConns = %d, want 2", cfg.MinConns)
	}
	if cfg.ConnMaxLifetime != "1h" {
		t.Errorf("ConnMaxLifetime = %q, want 1h", cfg.ConnMaxLifetime)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
}

func TestConfigApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{MaxConns: 50, MinConns: 10, MaxRetries: 1}
	cfg.ApplyDefaults()

	if cfg.MaxConns != 50 || cfg.MinConns != 10 || cfg.MaxRetries != 1 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled needs nothing", Config{}, false},
		{"enabled without dsn", Config{Enabled: true}, true},
		{"enabled with dsn", Config{Enabled: true, DSN: "postgres://localhost/app"}, false},
		{"bad lifetime", Config{Enabled: true, DSN: "postgres://localhost/app", ConnMaxLifetime: "soon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
