package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestClient_Do(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	var gotHeader http.Header
	var gotBody map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		switch r.URL.Path {
		case "/v1/me/payouts":
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"ID": 7, "Amount": gotBody["amount"]})
		case "/v1/roles/bob":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "caller is not authorized for this operation"})
		}
	}))
	defer srv.Close()

	c := NewClient(tp.Tracer("test"), srv.URL+"/", "alice")

	var out struct {
		ID     uint64
		Amount int64
	}
	require.NoError(t, c.Post(context.Background(), "/v1/me/payouts", map[string]int{"amount": 250}, &out))
	assert.Equal(t, uint64(7), out.ID)
	assert.Equal(t, int64(250), out.Amount)
	assert.Equal(t, 250, gotBody["amount"])
	assert.Equal(t, "alice", gotHeader.Get(PrincipalHeader))
	assert.NotEmpty(t, gotHeader.Get("Traceparent"))

	require.NoError(t, c.Do(context.Background(), http.MethodPut, "/v1/roles/bob", map[string]string{"role": "admin"}, &out))

	err := c.Get(context.Background(), "/v1/payouts", nil)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Code)
	assert.Equal(t, "caller is not authorized for this operation", statusErr.Message)
}
