package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/apollo3zehn/nexus-remote-agent/internal/auth"
	"github.com/apollo3zehn/nexus-remote-agent/internal/datasource"
	"github.com/apollo3zehn/nexus-remote-agent/internal/extension"
	"github.com/apollo3zehn/nexus-remote-agent/internal/packages"
)

func startTestServer(t *testing.T) (*Server, func()) {
	t.Helper()

	store, err := packages.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	registry := extension.NewRegistry()
	registry.MustRegister("local-files", func() (datasource.DataSource, error) { return nil, nil })

	server := NewServer("127.0.0.1:0", store, registry)
	server.SetAuthConfig(&auth.Config{Mode: auth.AuthModeNone})
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
	return server, cleanup
}

func TestHandleHealthz(t *testing.T) {
	server, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", server.Addr()))
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
}

func TestCreateListGetDeletePackageReference(t *testing.T) {
	server, cleanup := startTestServer(t)
	defer cleanup()

	base := fmt.Sprintf("http://%s/api/v1/packagereferences", server.Addr())

	body, _ := json.Marshal(PackageReferenceRequest{Provider: "local-files", Configuration: map[string]string{"path": "/data"}})
	resp, err := http.Post(base, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("got status %d, want 201", resp.StatusCode)
	}
	var created packages.Reference
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated id")
	}

	listResp, err := http.Get(base)
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	defer listResp.Body.Close()
	var list []packages.Reference
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("got %+v, want single entry with id %s", list, created.ID)
	}

	getResp, err := http.Get(fmt.Sprintf("%s/%s", base, created.ID))
	if err != nil {
		t.Fatalf("GET single: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", getResp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/%s", base, created.ID), nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", delResp.StatusCode)
	}
}

func TestCreatePackageReferenceRejectsUnknownProvider(t *testing.T) {
	server, cleanup := startTestServer(t)
	defer cleanup()

	base := fmt.Sprintf("http://%s/api/v1/packagereferences", server.Addr())
	body, _ := json.Marshal(PackageReferenceRequest{Provider: "nonexistent"})
	resp, err := http.Post(base, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
}

func TestAdminAPIRequiresAPIKeyWhenConfigured(t *testing.T) {
	store, err := packages.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	registry := extension.NewRegistry()

	server := NewServer("127.0.0.1:0", store, registry)
	server.SetAuthConfig(&auth.Config{
		Mode:    auth.AuthModeAPIKey,
		APIKeys: []string{"secret"},
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/packagereferences", server.Addr()))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401 without an API key", resp.StatusCode)
	}
}
