package httpapi

import (
	"context"
	"net/url"

	"hermannm.dev/mabexplorer/dataset"
	"hermannm.dev/wrap"
)

type tableResponse struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

// Tables lists the datasets the API serves. Tables without a known selector are skipped.
func (client *Client) Tables(ctx context.Context) ([]dataset.TableInfo, error) {
	var response struct {
		Tables []tableResponse `json:"tables"`
	}
	if err := client.get(ctx, "/tables", nil, &response); err != nil {
		return nil, wrap.Error(err, "failed to list tables")
	}

	tables := make([]dataset.TableInfo, 0, len(response.Tables))
	for _, table := range response.Tables {
		selector, err := dataset.ParseSelector(table.Name)
		if err != nil {
			continue
		}
		tables = append(tables, dataset.TableInfo{Name: selector, Rows: table.Rows})
	}
	return tables, nil
}

func (client *Client) Studies(
	ctx context.Context,
	selector dataset.Selector,
	antibody string,
) ([]string, error) {
	var response struct {
		Studies []any `json:"studies"`
	}
	query := url.Values{"table": {selector.String()}, "antibody": {antibody}}
	if err := client.get(ctx, "/studies", query, &response); err != nil {
		return nil, wrap.Errorf(err, "failed to list studies of '%s'", antibody)
	}
	return nonEmpty(labels(response.Studies)), nil
}

func (client *Client) Targets(ctx context.Context, selector dataset.Selector) ([]string, error) {
	var response struct {
		Targets []any `json:"targets"`
	}
	query := url.Values{"table": {selector.String()}}
	if err := client.get(ctx, "/targets", query, &response); err != nil {
		return nil, wrap.Errorf(err, "failed to list targets of %s", selector)
	}
	return nonEmpty(labels(response.Targets)), nil
}

func (client *Client) OverlappingAntibodies(ctx context.Context) ([]string, error) {
	var response struct {
		Antibodies []any `json:"antibodies"`
	}
	if err := client.get(ctx, "/overlapping-antibodies", nil, &response); err != nil {
		return nil, wrap.Error(err, "failed to list overlapping antibodies")
	}
	return nonEmpty(labels(response.Antibodies)), nil
}

func (client *Client) AntibodiesWithComparator(
	ctx context.Context,
	selector dataset.Selector,
) ([]string, error) {
	var response struct {
		Antibodies []any `json:"antibodies"`
	}
	query := url.Values{"table": {selector.String()}}
	if err := client.get(ctx, "/antibodies-with-comparator", query, &response); err != nil {
		return nil, wrap.Errorf(err, "failed to list antibodies with comparator in %s", selector)
	}
	return nonEmpty(labels(response.Antibodies)), nil
}

// ExportURL returns the CSV export link for the filtered dataset. It performs no request.
func (client *Client) ExportURL(
	selector dataset.Selector,
	filters dataset.FilterSet,
	search string,
) (string, error) {
	query := url.Values{"table": {selector.String()}}
	if err := filterQuery(query, filters, search); err != nil {
		return "", err
	}
	return client.baseURL + "/export?" + query.Encode(), nil
}

func nonEmpty(values []string) []string {
	filtered := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			filtered = append(filtered, value)
		}
	}
	return filtered
}
