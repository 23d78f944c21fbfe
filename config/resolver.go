package config

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"dataplatform/utils"
)

const (
	// DefaultPort is used when PORT is absent or not an integer.
	DefaultPort = 8080
	// LocalProjectID is the last fallback of the project id chain.
	LocalProjectID = "local-development-project"
	// MetadataURL answers with the project id inside the managed cloud only.
	MetadataURL = "http://metadata.google.internal/computeMetadata/v1/project/project-id"
	// DefaultProbeTimeout bounds the metadata probe.
	DefaultProbeTimeout = 2 * time.Second
)

// Checked in this order after GCP_PROJECT_ID.
var standardProjectVars = []string{"GOOGLE_CLOUD_PROJECT", "GCP_PROJECT", "GCLOUD_PROJECT"}

// Set by the managed platforms we deploy to.
var productionMarkers = []string{"K_SERVICE", "GAE_ENV"}

// Resolver resolves deployment identity values through prioritized fallback
// chains. Every value is resolved at most once per Resolver; later changes to
// the environment are not observed.
type Resolver struct {
	Getenv       func(string) string
	HTTPClient   *http.Client
	MetadataURL  string
	ProbeTimeout time.Duration
	Logger       *utils.Logger

	projectOnce sync.Once
	projectID   string

	backendOnce sync.Once
	backendURL  string

	portOnce sync.Once
	port     int

	prodOnce   sync.Once
	production bool
}

// NewResolver returns a Resolver reading the process environment and probing
// the real metadata endpoint.
func NewResolver(logger *utils.Logger) *Resolver {
	return &Resolver{
		Getenv:       os.Getenv,
		HTTPClient:   http.DefaultClient,
		MetadataURL:  MetadataURL,
		ProbeTimeout: DefaultProbeTimeout,
		Logger:       logger,
	}
}

// ProjectID never fails and never returns an empty string.
func (r *Resolver) ProjectID() string {
	r.projectOnce.Do(func() {
		r.projectID = r.resolveProjectID()
	})
	return r.projectID
}

func (r *Resolver) resolveProjectID() string {
	if id := r.env("GCP_PROJECT_ID"); id != "" {
		r.log().Debug("[config] project id from GCP_PROJECT_ID")
		return id
	}

	for _, key := range standardProjectVars {
		if id := r.env(key); id != "" {
			r.log().Debug("[config] project id from %s", key)
			return id
		}
	}

	if id, ok := r.probeMetadata(); ok {
		r.log().Debug("[config] project id from metadata server")
		return id
	}

	r.log().Debug("[config] project id falling back to %s", LocalProjectID)
	return LocalProjectID
}

// probeMetadata asks the metadata endpoint for the project id. Network
// failures, timeouts and non-200 replies mean "not on the managed cloud" and
// are skipped quietly; anything else is logged before being skipped.
func (r *Resolver) probeMetadata() (string, bool) {
	if r.MetadataURL == "" {
		return "", false
	}

	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.MetadataURL, nil)
	if err != nil {
		r.log().Warn("[config] metadata probe: build request: %v", err)
		return "", false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if isNetworkError(err) {
			r.log().Debug("[config] metadata server unreachable: %v", err)
		} else {
			r.log().Warn("[config] metadata probe failed: %v", err)
		}
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.log().Debug("[config] metadata server answered %d", resp.StatusCode)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		if isNetworkError(err) {
			r.log().Debug("[config] metadata read interrupted: %v", err)
		} else {
			r.log().Warn("[config] metadata probe: read body: %v", err)
		}
		return "", false
	}

	id := strings.TrimSpace(string(body))
	if id == "" {
		return "", false
	}
	return id, true
}

func isNetworkError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// *url.Error satisfies net.Error itself, so look at what it wraps.
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// BackendURL returns BACKEND_URL or the localhost default.
func (r *Resolver) BackendURL() string {
	r.backendOnce.Do(func() {
		if u := r.env("BACKEND_URL"); u != "" {
			r.backendURL = u
			return
		}
		r.backendURL = "http://localhost:" + strconv.Itoa(DefaultPort)
	})
	return r.backendURL
}

// Port returns PORT as an integer, or DefaultPort when it is absent or
// unparseable.
func (r *Resolver) Port() int {
	r.portOnce.Do(func() {
		r.port = DefaultPort
		if val := strings.TrimSpace(r.env("PORT")); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				r.port = n
			}
		}
	})
	return r.port
}

// IsProduction reports whether any managed platform marker is set.
func (r *Resolver) IsProduction() bool {
	r.prodOnce.Do(func() {
		for _, key := range productionMarkers {
			if r.env(key) != "" {
				r.production = true
				return
			}
		}
	})
	return r.production
}

func (r *Resolver) env(key string) string {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return getenv(key)
}

func (r *Resolver) log() *utils.Logger {
	if r.Logger == nil {
		return utils.Discard()
	}
	return r.Logger
}
