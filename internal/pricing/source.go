package pricing

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"

    "github.com/voyago/booking-core/internal/model"
)

// HTTPSource re-quotes offers against the search and normalization
// service over HTTP.  One GET per line; the verifier's own timeout
// bounds the whole run.
type HTTPSource struct {
    baseURL string
    client  *http.Client
}

// NewHTTPSource returns an HTTPSource rooted at baseURL.  A nil client
// falls back to http.DefaultClient.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
    if client == nil {
        client = http.DefaultClient
    }
    return &HTTPSource{baseURL: baseURL, client: client}
}

// Quote fetches the live price for one cart item.  A 404 or 410 means
// the offer is gone, which is ErrOfferUnavailable, not a failure of the
// run.
func (s *HTTPSource) Quote(ctx context.Context, item model.CartItem) (Quote, error) {
    u := fmt.Sprintf("%s/offers/%s/quote", s.baseURL, url.PathEscape(item.OfferRef))
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
    if err != nil {
        return Quote{}, err
    }
    resp, err := s.client.Do(req)
    if err != nil {
        return Quote{}, fmt.Errorf("quote %s: %w", item.OfferRef, err)
    }
    defer resp.Body.Close()

    switch resp.StatusCode {
    case http.StatusOK:
        var body struct {
            OfferRef string  `json:"offer_ref"`
            Price    float64 `json:"price"`
            Currency string  `json:"currency"`
        }
        if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
            return Quote{}, fmt.Errorf("quote %s: decode: %w", item.OfferRef, err)
        }
        return Quote{OfferRef: body.OfferRef, Price: body.Price, Currency: body.Currency}, nil
    case http.StatusNotFound, http.StatusGone:
        return Quote{}, ErrOfferUnavailable
    }
    return Quote{}, fmt.Errorf("quote %s: unexpected status %d", item.OfferRef, resp.StatusCode)
}

// SnapshotSource echoes back each item's frozen price.  Used in local
// development when no upstream quote service is running; prices then
// never move and checkout always sails through review.
type SnapshotSource struct{}

// Quote returns the item's snapshot price unchanged.
func (SnapshotSource) Quote(_ context.Context, item model.CartItem) (Quote, error) {
    return Quote{
        OfferRef: item.OfferRef,
        Price:    float64(item.SnapshotPriceCents) / 100,
    }, nil
}
