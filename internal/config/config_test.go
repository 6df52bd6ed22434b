package config

import (
	"testing"
	"time"
)

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_MinimalLocalConfig(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080, PublicBaseURL: "http://localhost:8080"},
		Auth: AuthConfig{JWTSecret: "secret", OperatorKey: "key"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Redis.OpTimeout != 2*time.Second {
		t.Fatalf("expected default op timeout, got %v", c.Redis.OpTimeout)
	}
	if c.Agent.BusinessName != "PostSavage.ai" {
		t.Fatalf("expected default business name, got %q", c.Agent.BusinessName)
	}
	if c.OpenAI.Model != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %q", c.OpenAI.Model)
	}
}

func TestValidate_ProductionRequiresIssuerAndAudience(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "production", Port: 8080, PublicBaseURL: "https://agent.example.com"},
		Auth: AuthConfig{JWTSecret: "secret", OperatorKey: "key"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without issuer/audience")
	}
}

func TestValidate_TwilioCredentialsRequirePhoneNumber(t *testing.T) {
	c := Config{
		App:    AppConfig{Env: "local", Port: 8080, PublicBaseURL: "http://localhost:8080"},
		Auth:   AuthConfig{JWTSecret: "secret", OperatorKey: "key"},
		Twilio: TwilioConfig{AccountSID: "AC123", AuthToken: "tok"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for twilio credentials without phone number")
	}
}

func TestValidate_RedisOptional(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080, PublicBaseURL: "http://localhost:8080"},
		Auth: AuthConfig{JWTSecret: "secret", OperatorKey: "key"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("redis must be optional: %v", err)
	}
	if c.RedisAddr() != "" {
		t.Fatalf("expected empty redis addr, got %q", c.RedisAddr())
	}
}
