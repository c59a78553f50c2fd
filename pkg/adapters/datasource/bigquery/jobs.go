package bigquery

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Wire types for the subset of the jobs API this client uses.

type jobInsertRequest struct {
	Configuration jobConfiguration `json:"configuration"`
}

type jobConfiguration struct {
	Query jobQueryConfig `json:"query"`
}

type jobQueryConfig struct {
	Query           string           `json:"query"`
	UseLegacySQL    bool             `json:"useLegacySql"`
	ParameterMode   string           `json:"parameterMode,omitempty"`
	QueryParameters []queryParameter `json:"queryParameters,omitempty"`
}

type queryParameter struct {
	ParameterType  queryParameterType  `json:"parameterType"`
	ParameterValue queryParameterValue `json:"parameterValue"`
}

type queryParameterType struct {
	Type string `json:"type"`
}

type queryParameterValue struct {
	Value string `json:"value"`
}

type jobResponse struct {
	JobReference jobReference `json:"jobReference"`
	Status       jobStatus    `json:"status"`
}

type jobReference struct {
	JobID    string `json:"jobId"`
	Location string `json:"location,omitempty"`
}

type jobStatus struct {
	State       string    `json:"state"`
	ErrorResult *jobError `json:"errorResult,omitempty"`
}

type jobError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type tableSchema struct {
	Fields []tableField `json:"fields"`
}

type tableField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type tableRow struct {
	F []tableCell `json:"f"`
}

type tableCell struct {
	V any `json:"v"`
}

type queryResultsResponse struct {
	JobComplete bool        `json:"jobComplete"`
	Schema      tableSchema `json:"schema"`
	Rows        []tableRow  `json:"rows"`
	TotalRows   string      `json:"totalRows"`
}

// insertJob submits a query job and returns its reference.
func (c *Client) insertJob(ctx context.Context, sql string, params []any) (*jobReference, error) {
	queryParams, err := buildQueryParameters(params)
	if err != nil {
		return nil, err
	}

	req := &jobInsertRequest{
		Configuration: jobConfiguration{
			Query: jobQueryConfig{
				Query:        sql,
				UseLegacySQL: false,
			},
		},
	}
	if len(queryParams) > 0 {
		req.Configuration.Query.ParameterMode = "POSITIONAL"
		req.Configuration.Query.QueryParameters = queryParams
	}

	endpoint := fmt.Sprintf("%s/projects/%s/jobs", c.baseURL, url.PathEscape(c.projectID))

	var resp jobResponse
	if err := c.doJSON(ctx, "POST", endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to submit query job: %w", err)
	}
	if resp.JobReference.JobID == "" {
		return nil, fmt.Errorf("warehouse returned no job reference")
	}
	return &resp.JobReference, nil
}

// waitForJob polls the job until it reports DONE, backing off exponentially
// up to the configured cap. A job error or poll timeout fails the wait.
func (c *Client) waitForJob(ctx context.Context, ref *jobReference) error {
	deadline := time.Now().Add(c.pollTimeout)
	delay := c.pollInitialDelay

	for {
		endpoint := fmt.Sprintf("%s/projects/%s/jobs/%s", c.baseURL,
			url.PathEscape(c.projectID), url.PathEscape(ref.JobID))
		if ref.Location != "" {
			endpoint += "?location=" + url.QueryEscape(ref.Location)
		}

		var resp jobResponse
		if err := c.doJSON(ctx, "GET", endpoint, nil, &resp); err != nil {
			return fmt.Errorf("failed to poll job %s: %w", ref.JobID, err)
		}

		if resp.Status.State == "DONE" {
			if resp.Status.ErrorResult != nil {
				return fmt.Errorf("job %s failed (%s): %s",
					ref.JobID, resp.Status.ErrorResult.Reason, resp.Status.ErrorResult.Message)
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("job %s did not complete within %s", ref.JobID, c.pollTimeout)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > c.pollMaxDelay {
			delay = c.pollMaxDelay
		}
	}
}

// fetchResultsPage retrieves one page of query results by row offset.
func (c *Client) fetchResultsPage(ctx context.Context, ref *jobReference, startIndex uint64, maxResults int) (*queryResultsResponse, error) {
	endpoint := fmt.Sprintf("%s/projects/%s/queries/%s", c.baseURL,
		url.PathEscape(c.projectID), url.PathEscape(ref.JobID))

	query := url.Values{}
	query.Set("startIndex", strconv.FormatUint(startIndex, 10))
	query.Set("maxResults", strconv.Itoa(maxResults))
	if ref.Location != "" {
		query.Set("location", ref.Location)
	}

	var resp queryResultsResponse
	if err := c.doJSON(ctx, "GET", endpoint+"?"+query.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch results page at %d: %w", startIndex, err)
	}
	return &resp, nil
}

// buildQueryParameters maps bound Go values to positional job parameters.
func buildQueryParameters(params []any) ([]queryParameter, error) {
	out := make([]queryParameter, 0, len(params))
	for i, p := range params {
		var paramType, value string
		switch v := p.(type) {
		case string:
			paramType, value = "STRING", v
		case bool:
			paramType, value = "BOOL", strconv.FormatBool(v)
		case int:
			paramType, value = "INT64", strconv.FormatInt(int64(v), 10)
		case int32:
			paramType, value = "INT64", strconv.FormatInt(int64(v), 10)
		case int64:
			paramType, value = "INT64", strconv.FormatInt(v, 10)
		case float32:
			paramType, value = "FLOAT64", strconv.FormatFloat(float64(v), 'g', -1, 64)
		case float64:
			paramType, value = "FLOAT64", strconv.FormatFloat(v, 'g', -1, 64)
		case time.Time:
			paramType, value = "TIMESTAMP", v.UTC().Format(time.RFC3339Nano)
		default:
			return nil, fmt.Errorf("unsupported parameter type %T at position %d", p, i)
		}
		out = append(out, queryParameter{
			ParameterType:  queryParameterType{Type: paramType},
			ParameterValue: queryParameterValue{Value: value},
		})
	}
	return out, nil
}
