package usgs

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/quake-report/internal/domain"
)

// BuildRequestURL assembles the feed query URL for q:
//
//	<endpoint>?format=geojson&limit=<n>&minmag=<m>&orderby=<key>
//
// It fails with an invalid-URL *domain.FetchError if the endpoint is not an
// absolute http(s) URL or q does not validate.
func BuildRequestURL(endpoint string, q domain.Query) (string, error) {
	u, err := parseRequestURL(endpoint)
	if err != nil {
		return "", err
	}
	if err := q.Validate(); err != nil {
		return "", domain.NewFetchError(domain.KindInvalidURL, err)
	}

	order, _ := domain.ParseOrderBy(string(q.OrderBy))

	params := u.Query()
	params.Set("format", "geojson")
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("minmag", strings.TrimSpace(q.MinMagnitude))
	params.Set("orderby", string(order))
	u.RawQuery = params.Encode()

	return u.String(), nil
}
