package source

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

func newTestGitHubSource() *GitHubSource {
	// httpmock replaces http.DefaultTransport, which the source picks up as
	// the base of its OAuth2 transport.
	src := NewGitHubSource(context.Background(), "acme", "widgets", "test-token", testLogger())
	src.transport.delay = time.Millisecond
	return src
}

func TestGitHubCommitsFiltersByWindowAndAuthor(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://api.github.com/repos/acme/widgets/commits",
		httpmock.NewStringResponder(200, `[
			{
				"sha": "c1",
				"html_url": "https://github.com/acme/widgets/commit/c1",
				"commit": {
					"message": "Implement session store",
					"author": {"name": "Author A", "email": "a@example.com", "date": "2024-01-02T10:00:00Z"}
				},
				"author": {"login": "authora"}
			},
			{
				"sha": "c2",
				"html_url": "https://github.com/acme/widgets/commit/c2",
				"commit": {
					"message": "Unrelated work",
					"author": {"name": "Author B", "email": "b@example.com", "date": "2024-01-03T10:00:00Z"}
				},
				"author": {"login": "authorb"}
			},
			{
				"sha": "c3",
				"html_url": "https://github.com/acme/widgets/commit/c3",
				"commit": {
					"message": "Merge pull request #7",
					"author": {"name": "Author A", "email": "a@example.com", "date": "2024-01-04T10:00:00Z"}
				},
				"author": {"login": "authora"}
			},
			{
				"sha": "c4",
				"html_url": "https://github.com/acme/widgets/commit/c4",
				"commit": {
					"message": "Exactly at the window end",
					"author": {"name": "Author A", "email": "a@example.com", "date": "2024-01-08T00:00:00Z"}
				},
				"author": {"login": "authora"}
			}
		]`))

	src := newTestGitHubSource()
	filter := NewFilter(nil, []string{"authora"})

	commits, err := src.Commits(context.Background(), testWindow(), filter)
	if err != nil {
		t.Fatalf("Commits returned error: %v", err)
	}

	// c2 fails the author filter, c3 is a merge commit, c4 sits on the
	// exclusive end boundary.
	if len(commits) != 1 {
		t.Fatalf("got %d commits, want 1", len(commits))
	}
	if commits[0].Hash != "c1" {
		t.Errorf("Hash = %q, want c1", commits[0].Hash)
	}
	if commits[0].Username != "authora" {
		t.Errorf("Username = %q, want authora", commits[0].Username)
	}
}

func TestGitHubCommitsRetriesTransientErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var requests atomic.Int32
	httpmock.RegisterResponder("GET", "https://api.github.com/repos/acme/widgets/commits",
		func(r *http.Request) (*http.Response, error) {
			if requests.Add(1) < 3 {
				return httpmock.NewStringResponse(http.StatusBadGateway, `{"message": "Bad Gateway"}`), nil
			}
			return httpmock.NewStringResponse(200, `[]`), nil
		})

	src := newTestGitHubSource()

	commits, err := src.Commits(context.Background(), testWindow(), NewFilter(nil, []string{"authora"}))
	if err != nil {
		t.Fatalf("Commits returned error after retries: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("got %d commits, want 0", len(commits))
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("got %d requests, want 3 (two failures then success)", n)
	}
}

func TestGitHubCommitsRetryBudgetExhausted(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var requests atomic.Int32
	httpmock.RegisterResponder("GET", "https://api.github.com/repos/acme/widgets/commits",
		func(r *http.Request) (*http.Response, error) {
			requests.Add(1)
			return httpmock.NewStringResponse(http.StatusBadGateway, `{"message": "Bad Gateway"}`), nil
		})

	src := newTestGitHubSource()

	_, err := src.Commits(context.Background(), testWindow(), NewFilter(nil, []string{"authora"}))
	if err == nil {
		t.Fatal("expected error, got none")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error type = %T, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", fetchErr.StatusCode)
	}
	if !fetchErr.Transient {
		t.Error("exhausted 5xx retries should surface as transient")
	}
	if n := requests.Load(); n != maxFetchRetries {
		t.Errorf("got %d requests, want %d", n, maxFetchRetries)
	}
}

func TestGitHubCommitsTerminalError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://api.github.com/repos/acme/widgets/commits",
		httpmock.NewStringResponder(404, `{"message": "Not Found"}`))

	src := newTestGitHubSource()

	_, err := src.Commits(context.Background(), testWindow(), NewFilter(nil, []string{"authora"}))
	if err == nil {
		t.Fatal("expected error, got none")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error type = %T, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fetchErr.StatusCode)
	}
	if fetchErr.Transient {
		t.Error("404 reported as transient")
	}
}
