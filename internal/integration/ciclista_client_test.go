package integration_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/bike-rental/billing-service/internal/integration"
)

func TestLookupCardFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ciclistas/1", r.URL.Path)
		w.Write([]byte(`{"nomeTitular":"João Silva","numero":"4509953566233704","validade":"2030-12-01","cvv":"123"}`))
	}))
	defer srv.Close()

	client := integration.NewCyclistClient(srv.URL+"/ciclistas/", srv.Client())
	lookup, err := client.LookupCard(context.Background(), 1)

	require.NoError(t, err)
	require.True(t, lookup.Found)
	assert.Equal(t, "João Silva", lookup.Card.HolderName)
	assert.Equal(t, "2030-12-01", lookup.Card.Expiry)
}

func TestLookupCardNonOKIsNotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := integration.NewCyclistClient(srv.URL, srv.Client())
		lookup, err := client.LookupCard(context.Background(), 999)

		require.NoError(t, err)
		assert.False(t, lookup.Found)
		assert.Equal(t, integration.MsgCyclistNotFound, lookup.Message)
		srv.Close()
	}
}

func TestLookupCardUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := integration.NewCyclistClient(url, http.DefaultClient)
	lookup, err := client.LookupCard(context.Background(), 1)

	require.NoError(t, err)
	assert.False(t, lookup.Found)
	assert.Equal(t, integration.MsgDirectoryUnreachable, lookup.Message)
}

func TestLookupCardMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := integration.NewCyclistClient(srv.URL, srv.Client())
	_, err := client.LookupCard(context.Background(), 1)
	assert.Error(t, err)
}
