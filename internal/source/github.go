package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/statusdoc/statusdoc/internal/daterange"
	"golang.org/x/oauth2"
)

const githubUserAgent = "statusdoc/1.0"

// GitHubSource fetches commits from a GitHub repository. It exists for
// teams whose code lives on GitHub rather than Bitbucket; the rest of the
// pipeline is provider-agnostic.
type GitHubSource struct {
	Client *github.Client
	Owner  string
	Repo   string
	Logger *slog.Logger

	transport *retryTransport
}

// NewGitHubSource creates a GitHubSource with OAuth2 token authentication.
// Transient API failures are retried at the transport level, so every call
// through the client shares the same retry budget per request.
func NewGitHubSource(ctx context.Context, owner, repo, token string, logger *slog.Logger) *GitHubSource {
	if logger == nil {
		logger = slog.Default()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	transport := &retryTransport{
		base: &oauth2.Transport{
			Source: ts,
			Base:   http.DefaultTransport,
		},
		delay: fetchBaseDelay,
	}
	httpClient := &http.Client{
		Timeout:   fetchTimeout,
		Transport: transport,
	}

	client := github.NewClient(httpClient)
	client.UserAgent = githubUserAgent

	return &GitHubSource{
		Client: client,
		Owner:  owner,
		Repo:   repo,
		Logger: logger,

		transport: transport,
	}
}

// Commits lists repository commits inside the window and keeps those from
// allowed contributors. The GitHub API filters by Since/Until server-side;
// the window check is repeated locally because Until is inclusive while the
// window end is exclusive.
func (s *GitHubSource) Commits(ctx context.Context, window daterange.Window, filter Filter) ([]Commit, error) {
	opts := &github.CommitsListOptions{
		Since: window.Start,
		Until: window.End,
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var commits []Commit

	for {
		s.Logger.Debug("Fetching commits page", "owner", s.Owner, "repo", s.Repo, "page", opts.Page)

		page, resp, err := s.Client.Repositories.ListCommits(ctx, s.Owner, s.Repo, opts)
		if err != nil {
			return nil, githubFetchError(err)
		}

		for _, rc := range page {
			ts := rc.GetCommit().GetAuthor().GetDate().Time
			if !window.Contains(ts) {
				continue
			}

			authorRaw := fmt.Sprintf("%s <%s>",
				rc.GetCommit().GetAuthor().GetName(),
				rc.GetCommit().GetAuthor().GetEmail())
			username := rc.GetAuthor().GetLogin()

			if !filter.Matches(authorRaw, username) {
				continue
			}
			message := rc.GetCommit().GetMessage()
			if IsMergeCommit(message) {
				continue
			}

			commits = append(commits, Commit{
				Hash:      rc.GetSHA(),
				AuthorRaw: authorRaw,
				Username:  username,
				Message:   message,
				Timestamp: ts,
				URL:       rc.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	s.Logger.Debug("Commit fetch completed", "commits", len(commits))
	return commits, nil
}

// retryTransport retries transient GitHub API failures below the go-github
// client: 5xx responses and network errors get jittered exponential backoff,
// rate-limited 403s honor Retry-After. Authorization and not-found responses
// pass straight through.
type retryTransport struct {
	base  http.RoundTripper
	delay time.Duration
}

func (rt *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := rt.base.RoundTrip(req.Clone(req.Context()))

		if err == nil && !retryableResponse(resp) {
			return resp, nil
		}
		if attempt >= maxFetchRetries-1 {
			// Budget exhausted: surface the last response or error so the
			// caller sees the real status.
			return resp, err
		}

		wait := time.Duration(float64(rt.delay) * math.Pow(2, float64(attempt)))
		wait += time.Duration(rand.Float64() * float64(wait) * 0.1)
		if err == nil {
			if after := retryAfterDelay(resp); after > 0 {
				wait = after
			}
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
	}
}

// retryableResponse reports whether a response is worth retrying. A 403
// carrying Retry-After is a rate limit, not an authorization failure.
func retryableResponse(resp *http.Response) bool {
	if resp.StatusCode >= 500 {
		return true
	}
	return resp.StatusCode == http.StatusForbidden && resp.Header.Get("Retry-After") != ""
}

// retryAfterDelay returns the server-requested wait, if any.
func retryAfterDelay(resp *http.Response) time.Duration {
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// githubFetchError maps go-github errors onto the shared FetchError
// taxonomy. Transient failures reaching here have already exhausted the
// transport's retry budget.
func githubFetchError(err error) *FetchError {
	if ghErr, ok := err.(*github.ErrorResponse); ok && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		return &FetchError{
			StatusCode: code,
			Transient:  code >= 500,
			Body:       ghErr.Message,
			Err:        err,
		}
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &FetchError{StatusCode: http.StatusForbidden, Transient: true, Err: err}
	}

	return &FetchError{Transient: true, Err: err}
}
