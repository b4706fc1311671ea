package domain

import "testing"

func TestParseReminderConfig_ValidCustomRules(t *testing.T) {
	raw := []byte(`{
		"enabled": true,
		"useSystemDefaults": false,
		"customRules": [
			{"id": "r1", "type": "before", "days": 7, "tone": "friendly", "enabled": true},
			{"id": "r2", "type": "after", "days": 3, "enabled": true}
		]
	}`)

	cfg, err := ParseReminderConfig(raw)
	if err != nil {
		t.Fatalf("ParseReminderConfig returned error: %v", err)
	}
	if !cfg.Enabled || cfg.UseSystemDefaults {
		t.Fatalf("unexpected config flags: %+v", cfg)
	}
	if len(cfg.CustomRules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(cfg.CustomRules))
	}
	if cfg.CustomRules[0].Tone != ToneFriendly {
		t.Fatalf("expected friendly tone, got %q", cfg.CustomRules[0].Tone)
	}
}

func TestParseReminderConfig_DropsInvalidRules(t *testing.T) {
	raw := []byte(`{
		"enabled": true,
		"customRules": [
			{"id": "r1", "type": "before", "days": -2, "enabled": true},
			{"id": "r2", "type": "someday", "days": 3, "enabled": true},
			{"id": "r3", "type": "after", "days": 3, "tone": "shouty", "enabled": true}
		]
	}`)

	cfg, err := ParseReminderConfig(raw)
	if err != nil {
		t.Fatalf("ParseReminderConfig returned error: %v", err)
	}
	if len(cfg.CustomRules) != 1 {
		t.Fatalf("expected only the salvageable rule to survive, got %d", len(cfg.CustomRules))
	}
	if cfg.CustomRules[0].ID != "r3" {
		t.Fatalf("expected rule r3, got %q", cfg.CustomRules[0].ID)
	}
	if cfg.CustomRules[0].Tone != "" {
		t.Fatalf("expected invalid tone cleared, got %q", cfg.CustomRules[0].Tone)
	}
}

func TestParseReminderConfig_MalformedJSONReturnsError(t *testing.T) {
	if _, err := ParseReminderConfig([]byte(`{"enabled": tru`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseReminderConfig_EmptyBlobIsDisabled(t *testing.T) {
	cfg, err := ParseReminderConfig(nil)
	if err != nil {
		t.Fatalf("ParseReminderConfig returned error: %v", err)
	}
	if cfg.Enabled {
		t.Fatal("expected empty blob to parse as disabled config")
	}
}

func TestToneEscalationOrder(t *testing.T) {
	order := []Tone{ToneFriendly, TonePolite, ToneFirm, ToneUrgent}
	for i := 1; i < len(order); i++ {
		if order[i-1].Escalation() >= order[i].Escalation() {
			t.Fatalf("expected %s < %s in escalation order", order[i-1], order[i])
		}
	}
}

func TestParseTone_RejectsUnknownValues(t *testing.T) {
	if _, ok := ParseTone("shouty"); ok {
		t.Fatal("expected unknown tone to be rejected")
	}
	if tone, ok := ParseTone("urgent"); !ok || tone != ToneUrgent {
		t.Fatalf("expected urgent to parse, got %q ok=%v", tone, ok)
	}
}
