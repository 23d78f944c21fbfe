package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dataplatform/utils"
)

type fakeEnv map[string]string

func (e fakeEnv) get(key string) string { return e[key] }

// newTestResolver points the metadata probe at url (or nowhere if empty).
func newTestResolver(env fakeEnv, url string) *Resolver {
	return &Resolver{
		Getenv:       env.get,
		HTTPClient:   &http.Client{},
		MetadataURL:  url,
		ProbeTimeout: 200 * time.Millisecond,
		Logger:       utils.Discard(),
	}
}

func metadataServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Metadata-Flavor") != "Google" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProjectIDOverrideWins(t *testing.T) {
	srv := metadataServer(t, http.StatusOK, "from-metadata")
	r := newTestResolver(fakeEnv{
		"GCP_PROJECT_ID":       "explicit",
		"GOOGLE_CLOUD_PROJECT": "standard",
		"GCP_PROJECT":          "other",
	}, srv.URL)

	if got := r.ProjectID(); got != "explicit" {
		t.Errorf("ProjectID: got %q, want %q", got, "explicit")
	}

	tests := []struct {
		override string
		want     string
	}{
		{" my-proj ", " my-proj "},
		{"   ", "   "},
	}
	for _, tt := range tests {
		r := newTestResolver(fakeEnv{"GCP_PROJECT_ID": tt.override, "GOOGLE_CLOUD_PROJECT": "std"}, srv.URL)
		if got := r.ProjectID(); got != tt.want {
			t.Errorf("ProjectID(override %q) = %q; want %q", tt.override, got, tt.want)
		}
	}
}

func TestProjectIDStandardVarOrder(t *testing.T) {
	tests := []struct {
		env  fakeEnv
		want string
	}{
		{fakeEnv{"GOOGLE_CLOUD_PROJECT": "a", "GCP_PROJECT": "b", "GCLOUD_PROJECT": "c"}, "a"},
		{fakeEnv{"GCP_PROJECT": "b", "GCLOUD_PROJECT": "c"}, "b"},
		{fakeEnv{"GCLOUD_PROJECT": "c"}, "c"},
		{fakeEnv{"GOOGLE_CLOUD_PROJECT": "", "GCLOUD_PROJECT": "c"}, "c"},
	}

	for _, tt := range tests {
		r := newTestResolver(tt.env, "")
		if got := r.ProjectID(); got != tt.want {
			t.Errorf("ProjectID(%v) = %q; want %q", tt.env, got, tt.want)
		}
	}
}

func TestProjectIDFromMetadata(t *testing.T) {
	srv := metadataServer(t, http.StatusOK, "cloud-project\n")
	r := newTestResolver(fakeEnv{}, srv.URL)

	if got := r.ProjectID(); got != "cloud-project" {
		t.Errorf("ProjectID: got %q, want %q", got, "cloud-project")
	}
}

func TestProjectIDMetadataNonOKFallsBack(t *testing.T) {
	srv := metadataServer(t, http.StatusNotFound, "nope")
	r := newTestResolver(fakeEnv{}, srv.URL)

	if got := r.ProjectID(); got != LocalProjectID {
		t.Errorf("ProjectID: got %q, want %q", got, LocalProjectID)
	}
}

func TestProjectIDMetadataEmptyBodyFallsBack(t *testing.T) {
	srv := metadataServer(t, http.StatusOK, "  ")
	r := newTestResolver(fakeEnv{}, srv.URL)

	if got := r.ProjectID(); got != LocalProjectID {
		t.Errorf("ProjectID: got %q, want %q", got, LocalProjectID)
	}
}

func TestProjectIDMetadataTimeoutFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	r := newTestResolver(fakeEnv{}, srv.URL)
	r.ProbeTimeout = 50 * time.Millisecond

	start := time.Now()
	got := r.ProjectID()
	if got != LocalProjectID {
		t.Errorf("ProjectID: got %q, want %q", got, LocalProjectID)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("probe took %v, expected it to give up after the timeout", elapsed)
	}
}

func TestProjectIDMetadataUnreachableFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := newTestResolver(fakeEnv{}, url)
	if got := r.ProjectID(); got != LocalProjectID {
		t.Errorf("ProjectID: got %q, want %q", got, LocalProjectID)
	}
}

func TestProjectIDMalformedMetadataURLFallsBack(t *testing.T) {
	r := newTestResolver(fakeEnv{}, "::not a url")
	if got := r.ProjectID(); got != LocalProjectID {
		t.Errorf("ProjectID: got %q, want %q", got, LocalProjectID)
	}
}

func TestResolverCachesValues(t *testing.T) {
	env := fakeEnv{"GCP_PROJECT_ID": "first", "BACKEND_URL": "http://a", "PORT": "9000"}
	r := newTestResolver(env, "")

	if got := r.ProjectID(); got != "first" {
		t.Fatalf("ProjectID: got %q, want %q", got, "first")
	}
	r.BackendURL()
	r.Port()
	r.IsProduction()

	env["GCP_PROJECT_ID"] = "second"
	env["BACKEND_URL"] = "http://b"
	env["PORT"] = "9999"
	env["K_SERVICE"] = "svc"

	if got := r.ProjectID(); got != "first" {
		t.Errorf("ProjectID after env change: got %q, want %q", got, "first")
	}
	if got := r.BackendURL(); got != "http://a" {
		t.Errorf("BackendURL after env change: got %q, want %q", got, "http://a")
	}
	if got := r.Port(); got != 9000 {
		t.Errorf("Port after env change: got %d, want 9000", got)
	}
	if r.IsProduction() {
		t.Error("IsProduction should stay false after env change")
	}
}

func TestBackendURL(t *testing.T) {
	r := newTestResolver(fakeEnv{"BACKEND_URL": "https://backend.example.com"}, "")
	if got := r.BackendURL(); got != "https://backend.example.com" {
		t.Errorf("BackendURL: got %q", got)
	}

	r = newTestResolver(fakeEnv{}, "")
	if got := r.BackendURL(); got != "http://localhost:8080" {
		t.Errorf("BackendURL fallback: got %q, want %q", got, "http://localhost:8080")
	}
}

func TestPort(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultPort},
		{"9090", 9090},
		{"abc", DefaultPort},
		{"80.5", DefaultPort},
		{" 3000 ", 3000},
	}

	for _, tt := range tests {
		r := newTestResolver(fakeEnv{"PORT": tt.raw}, "")
		if got := r.Port(); got != tt.want {
			t.Errorf("Port(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env  fakeEnv
		want bool
	}{
		{fakeEnv{}, false},
		{fakeEnv{"K_SERVICE": "backend-mvp"}, true},
		{fakeEnv{"GAE_ENV": "standard"}, true},
		{fakeEnv{"K_SERVICE": ""}, false},
		{fakeEnv{"K_SERVICE": " "}, true},
		{fakeEnv{"GAE_ENV": "false"}, true},
	}

	for _, tt := range tests {
		r := newTestResolver(tt.env, "")
		if got := r.IsProduction(); got != tt.want {
			t.Errorf("IsProduction(%v) = %v; want %v", tt.env, got, tt.want)
		}
	}
}

func TestFromResolverDefaults(t *testing.T) {
	cfg := FromResolver(newTestResolver(fakeEnv{"CREDENTIALS_FILE": filepath.Join(t.TempDir(), "missing.json")}, ""))

	if cfg.ProjectID != LocalProjectID {
		t.Errorf("ProjectID: got %q, want %q", cfg.ProjectID, LocalProjectID)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port: got %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.CredentialsMode != CredentialsFromDefault {
		t.Errorf("CredentialsMode: got %q, want %q", cfg.CredentialsMode, CredentialsFromDefault)
	}
	want := LocalProjectID + ".test_auto_create.processed_table"
	if got := cfg.AnalyticsTable().String(); got != want {
		t.Errorf("AnalyticsTable: got %q, want %q", got, want)
	}
}

func TestCredentialsFileDetected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := FromResolver(newTestResolver(fakeEnv{"CREDENTIALS_FILE": path}, ""))
	if cfg.CredentialsMode != CredentialsFromFile {
		t.Errorf("CredentialsMode: got %q, want %q", cfg.CredentialsMode, CredentialsFromFile)
	}
}

func TestDSN(t *testing.T) {
	cfg := FromResolver(newTestResolver(fakeEnv{"POSTGRES_HOST": "db", "POSTGRES_DB": "wh"}, ""))
	dsn := cfg.DSN()
	if !strings.Contains(dsn, "host=db") || !strings.Contains(dsn, "dbname=wh") {
		t.Errorf("DSN: got %q", dsn)
	}

	cfg = FromResolver(newTestResolver(fakeEnv{"WAREHOUSE_DSN": "postgres://x"}, ""))
	if got := cfg.DSN(); got != "postgres://x" {
		t.Errorf("DSN override: got %q, want %q", got, "postgres://x")
	}
}

func TestSummaryOmitsSecrets(t *testing.T) {
	cfg := FromResolver(newTestResolver(fakeEnv{"POSTGRES_PASSWORD": "s3cret"}, ""))
	out, err := cfg.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if strings.Contains(string(out), "s3cret") {
		t.Error("summary must not contain the warehouse password")
	}
	if !strings.Contains(string(out), "environment: local") {
		t.Errorf("summary missing environment line:\n%s", out)
	}
}
