package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eternalabs/order-execution-engine/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDexRouter_Execute(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantErr   bool
		errString string
	}{
		{
			name: "successful swap",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/swap", r.URL.Path)

				var req swapRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "USDC", req.TokenIn)
				assert.Equal(t, "SOL", req.TokenOut)

				json.NewEncoder(w).Encode(swapResponse{TxHash: "0xdeadbeef", AmountOut: 4.87})
			},
		},
		{
			name: "router rejects swap",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				json.NewEncoder(w).Encode(swapResponse{Error: "slippage exceeded"})
			},
			wantErr:   true,
			errString: "slippage exceeded",
		},
		{
			name: "router error without detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{}`))
			},
			wantErr:   true,
			errString: "returned status 500",
		},
		{
			name: "missing transaction hash",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(swapResponse{AmountOut: 4.87})
			},
			wantErr:   true,
			errString: "no transaction hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			router := NewDexRouter(&DexConfig{
				Endpoint:       server.URL,
				RequestTimeout: 2 * time.Second,
			}, logger.NewDefault().Logger)

			result, err := router.Execute(context.Background(), testOrder())

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				require.NotNil(t, result)
				assert.Equal(t, "0xdeadbeef", result.TxHash)
				assert.Equal(t, 4.87, result.AmountOut)
			}
		})
	}
}

func TestDexRouter_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	router := NewDexRouter(&DexConfig{
		Endpoint:       server.URL,
		RequestTimeout: 5 * time.Second,
	}, logger.NewDefault().Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := router.Execute(ctx, testOrder())
	require.Error(t, err)
}
