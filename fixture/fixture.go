package fixture

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/rvdebug/errors"
)

// Resource names inside a fixture directory.
const (
	PrefixFile     = "testprefix.S"
	CasesFile      = "testcases.json"
	AssignmentFile = "assignment.md"
)

// Case is one test input and its expected output.
type Case struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// Set is a loaded test suite.
type Set struct {
	Prefix     string
	Cases      []Case
	Assignment string
}

// Fetcher retrieves a named fixture resource.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// DirFetcher reads resources from a file system.
type DirFetcher struct {
	FS fs.FS
}

// Fetch reads name from the file system.
func (d DirFetcher) Fetch(_ context.Context, name string) ([]byte, error) {
	return fs.ReadFile(d.FS, name)
}

// HTTPFetcher fetches resources relative to a base URL.
type HTTPFetcher struct {
	BaseURL string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Fetch issues a GET for BaseURL/name. Non-2xx responses are errors.
func (h HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	u, err := url.JoinPath(h.BaseURL, name)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Load fetches the three fixture resources. All of them are attempted; the
// returned error aggregates every failure and the Set holds whatever
// loaded.
func Load(ctx context.Context, f Fetcher) (*Set, error) {
	var result *multierror.Error
	set := &Set{}

	fetch := func(name string) ([]byte, bool) {
		b, err := f.Fetch(ctx, name)
		if err != nil {
			Logger().Warn("fixture fetch failed", zap.String("resource", name), zap.Error(err))
			result = multierror.Append(result, errors.Fixture(name, err))
			return nil, false
		}
		return b, true
	}

	if b, ok := fetch(PrefixFile); ok {
		set.Prefix = string(b)
	}
	if b, ok := fetch(CasesFile); ok {
		cases, err := ParseCases(b)
		if err != nil {
			result = multierror.Append(result, errors.Fixture(CasesFile, err))
		}
		set.Cases = cases
	}
	if b, ok := fetch(AssignmentFile); ok {
		set.Assignment = strings.TrimSpace(string(b))
	}

	Logger().Debug("fixtures loaded", zap.Int("cases", len(set.Cases)))
	return set, result.ErrorOrNil()
}

// ParseCases decodes a JSON or YAML list of {input, output} objects.
func ParseCases(data []byte) ([]Case, error) {
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, errors.Wrap(errors.PhaseFixture, errors.KindInvalidData, err, "decode test cases")
	}
	return cases, nil
}
