package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/valyala/fastjson"

	"vehicle-sense/gateway/internal/domain"
	"vehicle-sense/gateway/internal/routing"
)

// Backend bodies beyond this are treated as malformed.
const maxResponseBytes = 1 << 20

// Client performs one-shot calls against the configured predictor
// endpoints. There are no retries: a failed call is surfaced immediately
// and failure policy belongs to the gateway.
type Client struct {
	httpClient *http.Client
	parsers    fastjson.ParserPool
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict posts the shaped reading to the route's endpoint and extracts the
// decision from the route's decision field. The raw body is preserved
// unchanged for forwarding to the caller.
func (c *Client) Predict(ctx context.Context, route routing.RouteSpec, reading domain.Reading) (*domain.PredictionResult, error) {
	payload, err := json.Marshal(reading.Values)
	if err != nil {
		return nil, &domain.BackendError{Category: route.Category, Kind: domain.BackendBadBody, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, route.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.BackendError{Category: route.Category, Kind: domain.BackendConnection, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.BackendError{Category: route.Category, Kind: classify(err), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.BackendError{Category: route.Category, Kind: classify(err), Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.BackendError{
			Category: route.Category,
			Kind:     domain.BackendStatus,
			Cause:    fmt.Errorf("predictor returned status %d", resp.StatusCode),
		}
	}

	parser := c.parsers.Get()
	defer c.parsers.Put(parser)

	v, err := parser.ParseBytes(body)
	if err != nil {
		return nil, &domain.BackendError{Category: route.Category, Kind: domain.BackendBadBody, Cause: err}
	}
	if v.Type() != fastjson.TypeObject {
		return nil, &domain.BackendError{
			Category: route.Category,
			Kind:     domain.BackendBadBody,
			Cause:    fmt.Errorf("predictor body is %s, want object", v.Type()),
		}
	}

	decision, err := extractDecision(v, route.DecisionField)
	if err != nil {
		return nil, &domain.BackendError{Category: route.Category, Kind: domain.BackendNoDecision, Cause: err}
	}

	return &domain.PredictionResult{
		Category: route.Category,
		Decision: decision,
		Raw:      json.RawMessage(body),
	}, nil
}

// extractDecision reads the decision field as a bool or a number. The
// original predictors answer 0/1 integers for the boolean categories, so
// numbers are accepted everywhere.
func extractDecision(v *fastjson.Value, field string) (any, error) {
	dv := v.Get(field)
	if dv == nil {
		return nil, fmt.Errorf("decision field %q missing from predictor response", field)
	}
	switch dv.Type() {
	case fastjson.TypeTrue:
		return true, nil
	case fastjson.TypeFalse:
		return false, nil
	case fastjson.TypeNumber:
		return dv.Float64()
	default:
		return nil, fmt.Errorf("decision field %q has type %s, want bool or number", field, dv.Type())
	}
}

func classify(err error) domain.BackendErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.BackendTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.BackendTimeout
	}
	return domain.BackendConnection
}
