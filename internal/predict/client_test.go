package predict

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-sense/gateway/internal/domain"
	"vehicle-sense/gateway/internal/routing"
)

func accidentRoute(url string) routing.RouteSpec {
	return routing.RouteSpec{
		Category:      domain.CategoryAccident,
		EndpointURL:   url,
		Fields:        []string{"x_accel", "y_accel", "z_accel", "gps_speed"},
		DecisionField: "collision_detected",
	}
}

func accidentReading() domain.Reading {
	return domain.Reading{
		Category: domain.CategoryAccident,
		Values:   map[string]float64{"x_accel": 0.1, "y_accel": 0.2, "z_accel": 9.8, "gps_speed": 12.5},
	}
}

func TestPredictSuccessBoolDecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 9.8, body["z_accel"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"collision_detected": false, "message": "all clear"}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	result, err := client.Predict(context.Background(), accidentRoute(server.URL), accidentReading())

	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAccident, result.Category)
	assert.Equal(t, false, result.Decision)
	assert.JSONEq(t, `{"collision_detected": false, "message": "all clear"}`, string(result.Raw))
}

func TestPredictSuccessNumericDecision(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"battery_used": 14.25}`))
	}))
	defer server.Close()

	route := routing.RouteSpec{
		Category:      domain.CategoryBattery,
		EndpointURL:   server.URL,
		Fields:        []string{"speed", "distance", "temperature"},
		DecisionField: "battery_used",
	}
	reading := domain.Reading{
		Category: domain.CategoryBattery,
		Values:   map[string]float64{"speed": 60, "distance": 120, "temperature": 31},
	}

	client := NewClient(5 * time.Second)
	result, err := client.Predict(context.Background(), route, reading)

	require.NoError(t, err)
	assert.Equal(t, 14.25, result.Decision)
}

func TestPredictIntegerDecisionAcceptedAsNumber(t *testing.T) {
	// The original predictors answer 0/1 for the boolean categories.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"collision_detected": 1}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	result, err := client.Predict(context.Background(), accidentRoute(server.URL), accidentReading())

	require.NoError(t, err)
	assert.Equal(t, float64(1), result.Decision)
}

func TestPredictMissingDecisionField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Predict(context.Background(), accidentRoute(server.URL), accidentReading())

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.BackendNoDecision, be.Kind)
	assert.Equal(t, domain.CategoryAccident, be.Category)
}

func TestPredictNon2xxStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Predict(context.Background(), accidentRoute(server.URL), accidentReading())

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.BackendStatus, be.Kind)
}

func TestPredictMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"collision_detected":`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	_, err := client.Predict(context.Background(), accidentRoute(server.URL), accidentReading())

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.BackendBadBody, be.Kind)
}

func TestPredictTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"collision_detected": false}`))
	}))
	defer server.Close()

	client := NewClient(50 * time.Millisecond)
	_, err := client.Predict(context.Background(), accidentRoute(server.URL), accidentReading())

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.BackendTimeout, be.Kind)
}

func TestPredictConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(time.Second)
	_, err := client.Predict(context.Background(), accidentRoute(url), accidentReading())

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, domain.BackendConnection, be.Kind)
}

func TestPredictCallerSafeMessageOmitsCause(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(time.Second)
	_, err := client.Predict(context.Background(), accidentRoute(url), accidentReading())

	var be *domain.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "accident backend unavailable (connection)", be.Message())
	assert.NotContains(t, be.Message(), url)
}
