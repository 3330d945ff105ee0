package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// LatestCommit returns the commit a ref (branch, tag, or SHA) points at.
func (c *Client) LatestCommit(ctx context.Context, ref string) (*Commit, error) {
	urlStr := c.buildURL(c.repoPath()+"/commits/"+url.PathEscape(ref), nil)
	respBody, _, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commit %s: %w", ref, err)
	}

	var commit Commit
	if err := json.Unmarshal(respBody, &commit); err != nil {
		return nil, fmt.Errorf("failed to parse commit response: %w", err)
	}
	return &commit, nil
}

// ListCommits returns one page of a branch's history, newest first. more
// reports whether GitHub advertised a following page.
func (c *Client) ListCommits(ctx context.Context, opts CommitListOptions) (commits []Commit, more bool, err error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 || perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	params := map[string]string{
		"per_page": strconv.Itoa(perPage),
		"page":     strconv.Itoa(page),
	}
	if opts.Branch != "" {
		params["sha"] = opts.Branch
	}
	if !opts.Since.IsZero() {
		params["since"] = opts.Since.UTC().Format(time.RFC3339)
	}

	urlStr := c.buildURL(c.repoPath()+"/commits", params)
	respBody, headers, err := c.doRequest(ctx, urlStr)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list commits on %s: %w", opts.Branch, err)
	}

	if err := json.Unmarshal(respBody, &commits); err != nil {
		return nil, false, fmt.Errorf("failed to parse commits response: %w", err)
	}
	_, more = hasNextPage(headers)
	return commits, more, nil
}

// PullRequestCommits returns every commit of a pull request, oldest first.
func (c *Client) PullRequestCommits(ctx context.Context, number int) ([]Commit, error) {
	var all []Commit
	page := 1

	for {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		params := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}
		urlStr := c.buildURL(c.repoPath()+"/pulls/"+strconv.Itoa(number)+"/commits", params)
		respBody, headers, err := c.doRequest(ctx, urlStr)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch commits of pull request #%d: %w", number, err)
		}

		var commits []Commit
		if err := json.Unmarshal(respBody, &commits); err != nil {
			return nil, fmt.Errorf("failed to parse pull request commits: %w", err)
		}
		all = append(all, commits...)

		if _, ok := hasNextPage(headers); !ok {
			break
		}
		page++

		if page > MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}

	return all, nil
}
