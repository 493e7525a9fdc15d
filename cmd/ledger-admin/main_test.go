package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"associate-ledger/internal/pkg/httpclient"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestRun(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, r.Method+" "+r.URL.Path+" "+string(body))
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}))
	defer srv.Close()

	c := httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), srv.URL, "ops")
	ctx := context.Background()

	out, err := run(ctx, c, []string{"approve", "3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"path": "/v1/payouts/3/process"}, out)

	_, err = run(ctx, c, []string{"set-balance", "bob", "1200"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /v1/payouts/3/process {\"approved\":true}",
		"PUT /v1/wallets/bob {\"amount\":1200}",
	}, calls)

	for _, args := range [][]string{nil, {"approve"}, {"set-role", "bob"}, {"unknown"}} {
		_, err := run(ctx, c, args)
		assert.True(t, errors.Is(err, errUsage), "%v", args)
	}
	_, err = run(ctx, c, []string{"reject", "x"})
	assert.Error(t, err)
}
