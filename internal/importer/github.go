package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	githubAPI = "https://api.github.com"
	githubRaw = "https://raw.githubusercontent.com"
)

// githubClient is a minimal contents-API client. Only the endpoints the
// import walk needs are implemented.
type githubClient struct {
	token      string
	httpClient *http.Client
	apiBase    string
	rawBase    string
	logger     *zap.Logger
}

func newGitHubClient(token string, logger *zap.Logger) *githubClient {
	return &githubClient{
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    githubAPI,
		rawBase:    githubRaw,
		logger:     logger,
	}
}

// repoItem is one entry of a contents listing.
type repoItem struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
	HTMLURL     string `json:"html_url"`
}

func (gh *githubClient) get(ctx context.Context, url string, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if gh.token != "" {
		req.Header.Set("Authorization", "token "+gh.token)
	}

	resp, err := gh.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github returned status %d for %s", resp.StatusCode, url)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// listContents lists the repository root.
func (gh *githubClient) listContents(ctx context.Context, owner, repo string) ([]repoItem, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents", gh.apiBase, owner, repo)
	return gh.listURL(ctx, url)
}

// listURL lists a directory by its API URL, as returned in a parent
// listing.
func (gh *githubClient) listURL(ctx context.Context, url string) ([]repoItem, error) {
	body, err := gh.get(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		return nil, err
	}
	var items []repoItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding contents listing: %w", err)
	}
	return items, nil
}

// fetchJSON downloads and decodes one raw template file. A file that is
// not valid JSON returns an error; the caller skips it.
func (gh *githubClient) fetchJSON(ctx context.Context, downloadURL string) (map[string]any, []byte, error) {
	body, err := gh.get(ctx, downloadURL, "")
	if err != nil {
		return nil, nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("decoding template file: %w", err)
	}
	return payload, body, nil
}

// fetchReadme downloads the repository README from the raw host.
func (gh *githubClient) fetchReadme(ctx context.Context, owner, repo string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/main/README.md", gh.rawBase, owner, repo)
	body, err := gh.get(ctx, url, "")
	if err != nil {
		return "", err
	}
	return string(body), nil
}
