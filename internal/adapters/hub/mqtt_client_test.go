package hub

import "testing"

func TestApplyDefaultsDerivesTopics(t *testing.T) {
	cfg := Config{BrokerURL: "tcp://hub:1883"}
	cfg.ApplyDefaults("jetson-nano-001")

	if cfg.ClientID != "jetson-nano-001" {
		t.Fatalf("client id: %q", cfg.ClientID)
	}
	if cfg.TelemetryTopic != "devices/jetson-nano-001/telemetry" {
		t.Fatalf("telemetry topic: %q", cfg.TelemetryTopic)
	}
	if cfg.MethodRequestFilter != "devices/jetson-nano-001/methods/req/+/+" {
		t.Fatalf("request filter: %q", cfg.MethodRequestFilter)
	}
	if cfg.MethodResponsePrefix != "devices/jetson-nano-001/methods/res" {
		t.Fatalf("response prefix: %q", cfg.MethodResponsePrefix)
	}
	if cfg.StateTopic != "devices/jetson-nano-001/state" {
		t.Fatalf("state topic: %q", cfg.StateTopic)
	}
	if cfg.ConnectTimeout <= 0 || cfg.PublishTimeout <= 0 {
		t.Fatal("timeouts not defaulted")
	}
}

func TestApplyDefaultsKeepsExplicitTopics(t *testing.T) {
	cfg := Config{
		BrokerURL:      "tcp://hub:1883",
		ClientID:       "custom",
		TelemetryTopic: "t/custom",
	}
	cfg.ApplyDefaults("jetson-nano-001")

	if cfg.ClientID != "custom" || cfg.TelemetryTopic != "t/custom" {
		t.Fatalf("explicit values clobbered: %+v", cfg)
	}
	if cfg.MethodRequestFilter != "devices/jetson-nano-001/methods/req/+/+" {
		t.Fatalf("filter should derive from the device id: %q", cfg.MethodRequestFilter)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing broker url")
	}
	cfg = Config{BrokerURL: "tcp://hub:1883"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing client id")
	}
	cfg.ClientID = "dev"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseMethodTopic(t *testing.T) {
	tests := []struct {
		topic   string
		method  string
		rid     string
		wantErr bool
	}{
		{"devices/dev1/methods/req/reboot/42", "reboot", "42", false},
		{"devices/dev1/methods/req/get_edge_analytics/abc-123", "get_edge_analytics", "abc-123", false},
		{"devices/dev1/methods/req/reboot", "", "", true},
		{"devices/dev1/methods/req/reboot/1/extra", "", "", true},
		{"devices/dev1/telemetry", "", "", true},
		{"devices/dev1/methods/req//42", "", "", true},
	}
	for _, tt := range tests {
		method, rid, err := parseMethodTopic(tt.topic)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.topic)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.topic, err)
			continue
		}
		if method != tt.method || rid != tt.rid {
			t.Errorf("%s: got (%s,%s), want (%s,%s)", tt.topic, method, rid, tt.method, tt.rid)
		}
	}
}

func TestResponseTopic(t *testing.T) {
	got := responseTopic("devices/dev1/methods/res", 404, "42")
	if got != "devices/dev1/methods/res/404/42" {
		t.Fatalf("unexpected topic %q", got)
	}
}
