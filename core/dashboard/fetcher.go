package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/incident"
)

type (
	Query struct {
		Filter   incident.QueryFilter
		Ordering []core.DBOrdering
	}

	// Fetcher loads incident snapshots for widgets.
	Fetcher interface {
		FetchIncidents(ctx context.Context, q Query) ([]incident.Incident, error)
	}

	// ServiceFetcher reads straight from the incident service (same process).
	ServiceFetcher struct {
		svc *incident.Service
	}

	// APIFetcher reads from the HTTP API of a remote server.
	APIFetcher struct {
		baseURL string
		headers map[string]string
	}
)

var (
	_ Fetcher = (*ServiceFetcher)(nil)
	_ Fetcher = (*APIFetcher)(nil)

	// mockable
	sendRequestFunc = rest.SendWithContext
)

func NewServiceFetcher(svc *incident.Service) *ServiceFetcher {
	return &ServiceFetcher{svc: svc}
}

func (f *ServiceFetcher) FetchIncidents(ctx context.Context, q Query) ([]incident.Incident, error) {
	filter := q.Filter // Query cleans the filter in place
	return f.svc.Query(ctx, &filter, q.Ordering)
}

// NewAPIFetcher targets the API served at baseURL (eg. "http://localhost:8000").
func NewAPIFetcher(baseURL string, headers map[string]string) *APIFetcher {
	return &APIFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
	}
}

func (f *APIFetcher) FetchIncidents(ctx context.Context, q Query) ([]incident.Incident, error) {
	req := rest.Request{
		Method:      rest.Get,
		BaseURL:     f.baseURL + "/v1/incidents",
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: queryParams(q),
	}
	for k, v := range f.headers {
		req.Headers[k] = v
	}

	resp, err := sendRequestFunc(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching incidents")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching incidents: %d %s", resp.StatusCode, resp.Body)
	}

	var incidents []incident.Incident
	if err := json.Unmarshal([]byte(resp.Body), &incidents); err != nil {
		return nil, errors.Wrap(err, "decoding incidents")
	}
	return incidents, nil
}

func queryParams(q Query) map[string]string {
	params := make(map[string]string)
	set := func(key, val string) {
		if val != "" {
			params[key] = val
		}
	}
	set("search", q.Filter.Search)
	set("status", string(q.Filter.Status))
	set("severity", string(q.Filter.Severity))
	set("room", q.Filter.Room)
	if q.Filter.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Filter.Limit)
	}
	if len(q.Ordering) > 0 {
		fields := make([]string, 0, len(q.Ordering))
		for _, o := range q.Ordering {
			if o.Ascending {
				fields = append(fields, o.Field)
			} else {
				fields = append(fields, "-"+o.Field)
			}
		}
		params["ordering"] = strings.Join(fields, ",")
	}
	return params
}
