// Package products is the catalog listing service. It exists to exercise
// the shared pipeline and the pagination loop the way every paged resource
// method does; the full per-resource CRUD surface lives outside this core.
package products

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"storesdk/model"
	"storesdk/paginate"
	"storesdk/pipeline"
)

// DefaultNamespace is the WooCommerce REST namespace for catalog resources.
const DefaultNamespace = "/wp-json/wc/v3"

// Product is the subset of WooCommerce product fields the SDK surfaces.
type Product struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	SKU          string `json:"sku"`
	Status       string `json:"status"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
	StockStatus  string `json:"stock_status"`
}

// Service lists and fetches products through the shared pipeline.
type Service struct {
	pipe      *pipeline.Client
	namespace string
}

// New creates a Service. An empty namespace means DefaultNamespace.
func New(pipe *pipeline.Client, namespace string) *Service {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Service{pipe: pipe, namespace: namespace}
}

// List fetches a single page of products. Params take arbitrary
// WooCommerce query filters (per_page, search, status, page, ...).
func (s *Service) List(ctx context.Context, params map[string]any) paginate.Result[Product] {
	return s.page(ctx, params)
}

// ListAll drains every page of a product listing into one slice using the
// shared pagination loop.
func (s *Service) ListAll(ctx context.Context, params map[string]any, opts paginate.Options[Product]) paginate.Result[Product] {
	return paginate.Loop(ctx, s.page, params, opts)
}

// Get fetches one product by ID.
func (s *Service) Get(ctx context.Context, id int) (*Product, error) {
	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method:      http.MethodGet,
		Path:        fmt.Sprintf("%s/products/%d", s.namespace, id),
		AttachToken: true,
		RetryOn401:  true,
	})
	if err != nil {
		return nil, err
	}

	var p Product
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, model.NewTransportError(err)
	}
	return &p, nil
}

// page is the paginate.PageFunc for product listings.
func (s *Service) page(ctx context.Context, params map[string]any) paginate.Result[Product] {
	q := url.Values{}
	for key, value := range params {
		if value == nil {
			continue
		}
		q.Set(key, model.QueryValue(value))
	}

	resp, err := s.pipe.Do(ctx, &pipeline.Request{
		Method:      http.MethodGet,
		Path:        s.namespace + "/products",
		Query:       q,
		AttachToken: true,
		RetryOn401:  true,
	})
	if err != nil {
		return paginate.Result[Product]{Err: err}
	}

	data, err := decodeList(resp.Body)
	if err != nil {
		return paginate.Result[Product]{Err: err}
	}

	return paginate.Result[Product]{
		Data:       data,
		Pagination: paginationFromHeaders(resp.Header),
	}
}

// decodeList parses a listing body. A single-object body counts as a
// one-item page, matching how some endpoints answer filtered queries.
func decodeList(body []byte) ([]Product, error) {
	if len(body) == 0 {
		return nil, nil
	}

	var list []Product
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var one Product
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, model.NewTransportError(err)
	}
	return []Product{one}, nil
}
