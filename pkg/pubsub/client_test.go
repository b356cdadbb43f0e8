package pubsub

import (
	"context"
	"testing"

	"github.com/classbridge/billing-renewals/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "classbridge-prod"}
	cases := map[string]string{
		"renewal-summaries":                       "projects/classbridge-prod/topics/renewal-summaries",
		"  renewal-summaries ":                    "projects/classbridge-prod/topics/renewal-summaries",
		"projects/other/topics/renewal-summaries": "projects/other/topics/renewal-summaries",
		"": "",
	}
	for in, want := range cases {
		if got := c.topicResourceName(in); got != want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTopicResourceNameWithoutProject(t *testing.T) {
	c := &Client{}
	if got := c.topicResourceName("renewal-summaries"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, nil); err != errProjectIDRequired {
		t.Fatalf("expected errProjectIDRequired, got %v", err)
	}
}

func TestClientOptions(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected no options, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}); len(opts) != 1 {
		t.Fatalf("expected credentials option, got %d", len(opts))
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("topic") != nil {
		t.Fatal("expected nil publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
