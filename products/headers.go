package products

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storesdk/paginate"
)

// paginationFromHeaders reads WooCommerce pagination metadata: totals from
// the X-WP-Total / X-WP-TotalPages headers, the next page number from the
// RFC 8288 Link header's rel="next" target.
func paginationFromHeaders(h http.Header) paginate.Pagination {
	return paginate.Pagination{
		Total:      headerInt(h, "X-WP-Total"),
		TotalPages: headerInt(h, "X-WP-TotalPages"),
		Next:       linkNextPage(h.Get("Link")),
	}
}

func headerInt(h http.Header, key string) int {
	v, err := strconv.Atoi(h.Get(key))
	if err != nil {
		return 0
	}
	return v
}

// linkNextPage extracts the page query parameter from the rel="next" link,
// e.g. `<https://shop.example.com/wp-json/wc/v3/products?page=3>; rel="next"`.
// Returns 0 when no next link is present or its page is unreadable.
func linkNextPage(header string) int {
	for _, part := range strings.Split(header, ",") {
		section := strings.Split(part, ";")
		if len(section) < 2 {
			continue
		}
		if !strings.Contains(section[1], `rel="next"`) {
			continue
		}
		target := strings.Trim(strings.TrimSpace(section[0]), "<>")
		u, err := url.Parse(target)
		if err != nil {
			return 0
		}
		page, err := strconv.Atoi(u.Query().Get("page"))
		if err != nil {
			return 0
		}
		return page
	}
	return 0
}
