package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/llmtaskrunner/backend/config"
)

func testClient(apiBase, owner string) *Client {
	return NewClient(&config.Config{
		GitHub: config.GitHubConfig{
			APIBase: apiBase,
			Token:   "test-token",
			Owner:   owner,
		},
	})
}

func TestDoRequiresToken(t *testing.T) {
	client := testClient("https://api.example.com", "")
	client.Token = ""

	_, err := client.AuthenticatedUser(context.Background())
	if err == nil || !strings.Contains(err.Error(), "GITHUB_TOKEN") {
		t.Errorf("expected token error, got %v", err)
	}
}

func TestEnsureRepoReusesExisting(t *testing.T) {
	created := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token test-token" {
			t.Errorf("missing auth header")
		}
		switch {
		case r.Method == "GET" && r.URL.Path == "/repos/acme/landing-42":
			w.Write([]byte(`{"name":"landing-42","html_url":"https://github.com/acme/landing-42","owner":{"login":"acme"}}`))
		case r.Method == "POST":
			created = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(server.URL, "acme")
	repo, err := client.EnsureRepo(context.Background(), "landing-42", "brief")
	if err != nil {
		t.Fatalf("EnsureRepo() unexpected error: %v", err)
	}
	if repo.Owner.Login != "acme" || repo.Name != "landing-42" {
		t.Errorf("unexpected repo: %+v", repo)
	}
	if created {
		t.Error("expected existing repo to be reused, not created")
	}
}

func TestEnsureRepoOrgFallbackToUser(t *testing.T) {
	var orgTried, userTried bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/repos/"):
			w.WriteHeader(http.StatusNotFound)
		case r.Method == "POST" && r.URL.Path == "/orgs/acme/repos":
			orgTried = true
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"not an org admin"}`))
		case r.Method == "POST" && r.URL.Path == "/user/repos":
			userTried = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"name":"landing-42","html_url":"https://github.com/me/landing-42","owner":{"login":"me"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := testClient(server.URL, "acme")
	repo, err := client.EnsureRepo(context.Background(), "landing-42", "")
	if err != nil {
		t.Fatalf("EnsureRepo() unexpected error: %v", err)
	}
	if !orgTried || !userTried {
		t.Errorf("expected org endpoint first then user fallback, org=%v user=%v", orgTried, userTried)
	}
	if repo.Owner.Login != "me" {
		t.Errorf("unexpected owner %s", repo.Owner.Login)
	}
}

func TestCreateRepoFailureIncludesLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/user":
			w.Write([]byte(`{"login":"octo"}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"name already exists"}`))
		}
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	_, err := client.CreateRepo(context.Background(), "landing-42", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "as octo") {
		t.Errorf("expected authenticated login in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("expected status code in error, got %v", err)
	}
}

func TestGetRefNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	_, err := client.GetRef(context.Background(), "acme", "repo", "round-2")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRefReturnsSHA(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/repo/git/refs/heads/main" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"ref":"refs/heads/main","object":{"sha":"abc123"}}`))
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	sha, err := client.GetRef(context.Background(), "acme", "repo", "main")
	if err != nil {
		t.Fatalf("GetRef() unexpected error: %v", err)
	}
	if sha != "abc123" {
		t.Errorf("expected sha abc123, got %s", sha)
	}
}

func TestCreateRef(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["ref"] != "refs/heads/round-2" || payload["sha"] != "abc123" {
			t.Errorf("unexpected payload %v", payload)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	if err := client.CreateRef(context.Background(), "acme", "repo", "refs/heads/round-2", "abc123"); err != nil {
		t.Fatalf("CreateRef() unexpected error: %v", err)
	}
}

func TestGetFileDecodesContent(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("<html>hi</html>"))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("expected ref=main, got %s", r.URL.Query().Get("ref"))
		}
		// Contents API 的 base64 带换行
		wrapped := encoded[:8] + "\n" + encoded[8:]
		json.NewEncoder(w).Encode(map[string]string{"content": wrapped, "sha": "f00"})
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	content, sha, err := client.GetFile(context.Background(), "acme", "repo", "index.html", "main")
	if err != nil {
		t.Fatalf("GetFile() unexpected error: %v", err)
	}
	if string(content) != "<html>hi</html>" {
		t.Errorf("unexpected content %q", content)
	}
	if sha != "f00" {
		t.Errorf("expected sha f00, got %s", sha)
	}
}

func TestCreateOrUpdateFileIncludesSHAOnUpdate(t *testing.T) {
	var putPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			json.NewEncoder(w).Encode(map[string]string{
				"content": base64.StdEncoding.EncodeToString([]byte("old")),
				"sha":     "oldsha",
			})
		case "PUT":
			json.NewDecoder(r.Body).Decode(&putPayload)
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	err := client.CreateOrUpdateFile(context.Background(), "acme", "repo", "index.html", []byte("new"), "update", "main")
	if err != nil {
		t.Fatalf("CreateOrUpdateFile() unexpected error: %v", err)
	}

	if putPayload["sha"] != "oldsha" {
		t.Errorf("expected fetched sha in payload, got %v", putPayload["sha"])
	}
	decoded, _ := base64.StdEncoding.DecodeString(putPayload["content"].(string))
	if string(decoded) != "new" {
		t.Errorf("expected base64 content, got %v", putPayload["content"])
	}
	if putPayload["branch"] != "main" {
		t.Errorf("expected branch main, got %v", putPayload["branch"])
	}
}

func TestCreateOrUpdateFileFirstWrite(t *testing.T) {
	var putPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			w.WriteHeader(http.StatusNotFound)
		case "PUT":
			json.NewDecoder(r.Body).Decode(&putPayload)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	client := testClient(server.URL, "")
	err := client.CreateOrUpdateFile(context.Background(), "acme", "repo", "LICENSE", []byte("mit"), "add", "main")
	if err != nil {
		t.Fatalf("CreateOrUpdateFile() unexpected error: %v", err)
	}
	if _, ok := putPayload["sha"]; ok {
		t.Errorf("expected no sha on first write, got %v", putPayload["sha"])
	}
}
