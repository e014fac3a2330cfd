package tracing

import "testing"

func TestConfigEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"both keys", Config{PublicKey: "pk", SecretKey: "sk"}, true},
		{"public only", Config{PublicKey: "pk"}, false},
		{"none", Config{}, false},
	}
	for _, tt := range tests {
		if got := tt.cfg.Enabled(); got != tt.want {
			t.Errorf("%s: Enabled() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	handler, flush := Setup(Config{})
	if handler != nil {
		t.Error("expected nil handler when tracing is not configured")
	}
	flush()
}
