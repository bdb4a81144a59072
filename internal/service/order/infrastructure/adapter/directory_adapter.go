package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/pkg/logger"
	"orderflow/internal/pkg/redis"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// Directory lookups are hot during validation (every order touches the
// customer and each product several times), so they go through a short-lived
// Redis read-through cache with singleflight collapsing concurrent misses.
const directoryCacheTTL = 30 * time.Second

// DirectoryAdapter implements port.CustomerDirectory and port.ProductDirectory
// against the customer and product services.
type DirectoryAdapter struct {
	client      *httpclient.Client
	cache       *redis.Client
	customerURL string
	productURL  string
	group       singleflight.Group
}

func NewDirectoryAdapter(client *httpclient.Client, cache *redis.Client, customerURL, productURL string) *DirectoryAdapter {
	return &DirectoryAdapter{
		client:      client,
		cache:       cache,
		customerURL: customerURL,
		productURL:  productURL,
	}
}

func (a *DirectoryAdapter) GetCustomer(ctx context.Context, id string) (*port.Customer, error) {
	key := "directory:customer:" + id

	var cached port.Customer
	if err := a.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if err != redis.ErrCacheMiss {
		logger.Ctx(ctx).Warn().Err(err).Msg("customer cache read failed")
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		var customer port.Customer
		err := a.client.GetJSON(ctx, fmt.Sprintf("%s/customers/%s", a.customerURL, id), &customer)
		if err == httpclient.ErrNotFound {
			return nil, &domain.NotFoundError{Resource: "customer", ID: id}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "fetch customer %s", id)
		}
		if err := a.cache.SetJSON(ctx, key, &customer, directoryCacheTTL); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("customer cache write failed")
		}
		return &customer, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*port.Customer), nil
}

func (a *DirectoryAdapter) GetProduct(ctx context.Context, id string) (*port.Product, error) {
	key := "directory:product:" + id

	var cached port.Product
	if err := a.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if err != redis.ErrCacheMiss {
		logger.Ctx(ctx).Warn().Err(err).Msg("product cache read failed")
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		var product port.Product
		err := a.client.GetJSON(ctx, fmt.Sprintf("%s/products/%s", a.productURL, id), &product)
		if err == httpclient.ErrNotFound {
			return nil, &domain.NotFoundError{Resource: "product", ID: id}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "fetch product %s", id)
		}
		if err := a.cache.SetJSON(ctx, key, &product, directoryCacheTTL); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("product cache write failed")
		}
		return &product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*port.Product), nil
}
