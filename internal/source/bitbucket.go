package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/statusdoc/statusdoc/internal/daterange"
)

const (
	bitbucketAPIBase = "https://api.bitbucket.org/2.0"
	bitbucketWebBase = "https://bitbucket.org"

	maxFetchRetries = 3
	fetchBaseDelay  = 1 * time.Second
	fetchTimeout    = 30 * time.Second
)

// BitbucketSource fetches commits from a Bitbucket Cloud repository using
// the v2 commits endpoint with app-password basic auth.
type BitbucketSource struct {
	HTTP      *http.Client
	BaseURL   string // API base, overridable for tests
	WebURL    string // web base used for commit links
	Workspace string
	RepoSlug  string
	Username  string
	Password  string // app password
	Logger    *slog.Logger

	retryDelay time.Duration
}

// NewBitbucketSource creates a BitbucketSource for one repository.
func NewBitbucketSource(workspace, repoSlug, username, password string, logger *slog.Logger) *BitbucketSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BitbucketSource{
		HTTP:      &http.Client{Timeout: fetchTimeout},
		BaseURL:   bitbucketAPIBase,
		WebURL:    bitbucketWebBase,
		Workspace: workspace,
		RepoSlug:  repoSlug,
		Username:  username,
		Password:  password,
		Logger:    logger,

		retryDelay: fetchBaseDelay,
	}
}

// Bitbucket commit list payload. Pagination follows the "next" URL until it
// is absent.
type bitbucketCommitsPage struct {
	Values []bitbucketCommit `json:"values"`
	Next   string            `json:"next"`
}

type bitbucketCommit struct {
	Hash    string `json:"hash"`
	Date    string `json:"date"`
	Message string `json:"message"`
	Author  struct {
		Raw  string `json:"raw"`
		User struct {
			Username string `json:"username"`
		} `json:"user"`
	} `json:"author"`
}

// Commits pages through the repository's commit history newest-first,
// keeping commits that fall inside the window and belong to an allowed
// contributor. Merge commits are skipped. Pagination stops once a page
// contains commits older than the window start, since everything after
// them is older still. An empty result is a valid outcome, not an error.
func (s *BitbucketSource) Commits(ctx context.Context, window daterange.Window, filter Filter) ([]Commit, error) {
	url := fmt.Sprintf("%s/repositories/%s/%s/commits", s.BaseURL, s.Workspace, s.RepoSlug)

	var commits []Commit
	page := 0

	for url != "" {
		page++
		s.Logger.Debug("Fetching commits page", "page", page, "url", url)

		body, err := s.get(ctx, url)
		if err != nil {
			return nil, err
		}

		var payload bitbucketCommitsPage
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &FetchError{Err: fmt.Errorf("failed to decode commits page: %w", err)}
		}

		sawOlder := false
		for _, raw := range payload.Values {
			// Bitbucket timestamps carry a numeric offset.
			ts, err := time.Parse("2006-01-02T15:04:05-07:00", raw.Date)
			if err != nil {
				// Some responses use Z instead of an explicit offset.
				ts, err = time.Parse(time.RFC3339, raw.Date)
				if err != nil {
					return nil, &FetchError{Err: fmt.Errorf("failed to parse commit date %q: %w", raw.Date, err)}
				}
			}

			if ts.Before(window.Start) {
				sawOlder = true
				continue
			}
			if !window.Contains(ts) {
				continue // future commit, outside the window end
			}
			if !filter.Matches(raw.Author.Raw, raw.Author.User.Username) {
				continue
			}
			if IsMergeCommit(raw.Message) {
				continue
			}

			commits = append(commits, Commit{
				Hash:      raw.Hash,
				AuthorRaw: raw.Author.Raw,
				Username:  raw.Author.User.Username,
				Message:   raw.Message,
				Timestamp: ts,
				URL:       fmt.Sprintf("%s/%s/%s/commits/%s", s.WebURL, s.Workspace, s.RepoSlug, raw.Hash),
			})
		}

		// Commits arrive newest-first, so once a page reaches past the
		// window start there is nothing left to fetch. The full page was
		// still scanned above in case ordering is ever violated mid-page.
		if sawOlder {
			break
		}

		url = payload.Next
	}

	s.Logger.Debug("Commit fetch completed", "pages", page, "commits", len(commits))
	return commits, nil
}

// get performs one authenticated GET with bounded retries for transient
// failures. Authorization and not-found responses surface immediately.
func (s *BitbucketSource) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxFetchRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(s.retryDelay) * math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
			s.Logger.Debug("Commit fetch retry backoff", "attempt", attempt, "delay", delay+jitter)
			select {
			case <-ctx.Done():
				return nil, &FetchError{Err: ctx.Err()}
			case <-time.After(delay + jitter):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, &FetchError{Err: err}
		}
		req.SetBasicAuth(s.Username, s.Password)
		req.Header.Set("Accept", "application/json")

		resp, err := s.HTTP.Do(req)
		if err != nil {
			// Network-level failure, retry with backoff.
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusNotFound:
			// Credential or repository problems will not improve on retry.
			return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
		case resp.StatusCode >= 500:
			lastErr = &FetchError{StatusCode: resp.StatusCode, Transient: true, Body: string(body)}
			continue
		default:
			return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
		}
	}

	if fe, ok := lastErr.(*FetchError); ok {
		return nil, fe
	}
	return nil, &FetchError{Transient: true, Err: fmt.Errorf("request failed after %d attempts: %w", maxFetchRetries, lastErr)}
}
