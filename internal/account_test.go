package internal

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreate_Existing(t *testing.T) {
	fake, srv := newFakeGrafana(t)
	fake.accounts = []serviceAccount{{ID: 123, Name: "test-sa"}}
	client := newTestGrafanaClient(srv, nil)

	sa, res, err := client.resolveOrCreate(t.Context(), "test-sa", "Admin", 10)
	require.NoError(t, err)

	assert.Equal(t, accountExisting, res)
	assert.Equal(t, int64(123), sa.ID)
	assert.Equal(t, "test-sa", sa.Name)
	_, creates, _ := fake.counts()
	assert.Equal(t, 0, creates)
}

func TestResolveOrCreate_Creates(t *testing.T) {
	fake, srv := newFakeGrafana(t)
	client := newTestGrafanaClient(srv, nil)

	sa, res, err := client.resolveOrCreate(t.Context(), "test-sa", "Admin", 10)
	require.NoError(t, err)

	assert.Equal(t, accountCreated, res)
	assert.Equal(t, int64(123), sa.ID)
	require.Len(t, fake.created, 1)
	assert.Equal(t, createServiceAccountRequest{Name: "test-sa", Role: "Admin"}, fake.created[0])
}

func TestResolveOrCreate_RequiresExactName(t *testing.T) {
	fake, srv := newFakeGrafana(t)
	fake.accounts = []serviceAccount{
		{ID: 1, Name: "test-sa-old"},
		{ID: 2, Name: "my-test-sa"},
	}
	client := newTestGrafanaClient(srv, nil)

	sa, res, err := client.resolveOrCreate(t.Context(), "test-sa", "Viewer", 10)
	require.NoError(t, err)

	assert.Equal(t, accountCreated, res)
	assert.Equal(t, "test-sa", sa.Name)
	assert.Equal(t, "Viewer", fake.created[0].Role)
}

func TestResolveOrCreate_SearchesAllPages(t *testing.T) {
	fake, srv := newFakeGrafana(t)
	for i := range 25 {
		fake.accounts = append(fake.accounts, serviceAccount{ID: int64(i + 1), Name: "test-sa-" + strconv.Itoa(i)})
	}
	fake.accounts = append(fake.accounts, serviceAccount{ID: 99, Name: "test-sa"})
	client := newTestGrafanaClient(srv, nil)

	sa, res, err := client.resolveOrCreate(t.Context(), "test-sa", "Admin", 10)
	require.NoError(t, err)

	assert.Equal(t, accountExisting, res)
	assert.Equal(t, int64(99), sa.ID)
	searches, creates, _ := fake.counts()
	assert.Equal(t, 3, searches)
	assert.Equal(t, 0, creates)
}

func TestResolveOrCreate_StopsAtLastPage(t *testing.T) {
	fake, srv := newFakeGrafana(t)
	for i := range 20 {
		fake.accounts = append(fake.accounts, serviceAccount{ID: int64(i + 1), Name: "test-sa-" + strconv.Itoa(i)})
	}
	client := newTestGrafanaClient(srv, nil)

	_, res, err := client.resolveOrCreate(t.Context(), "test-sa", "Admin", 10)
	require.NoError(t, err)

	assert.Equal(t, accountCreated, res)
	searches, creates, _ := fake.counts()
	assert.Equal(t, 2, searches)
	assert.Equal(t, 1, creates)
}

func TestResolveOrCreate_CreateNotFound(t *testing.T) {
	fake, srv := newFakeGrafana(t)
	fake.createStatus = http.StatusNotFound
	client := newTestGrafanaClient(srv, nil)

	_, _, err := client.resolveOrCreate(t.Context(), "test-sa", "Admin", 10)
	require.Error(t, err)

	assert.True(t, isNotFound(err))
	assert.False(t, isConnectionError(err))
}

func TestResolveOrCreate_SearchServerError(t *testing.T) {
	fake, srv := newFakeGrafana(t)
	fake.searchStatus = http.StatusInternalServerError
	client := newTestGrafanaClient(srv, nil)

	_, _, err := client.resolveOrCreate(t.Context(), "test-sa", "Admin", 10)
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.False(t, isNotFound(err))
	assert.False(t, isConnectionError(err))
	assert.Contains(t, err.Error(), "searching service accounts")
}

func TestResolveOrCreate_ConnectionError(t *testing.T) {
	_, srv := newFakeGrafana(t)
	transport := &flakyTransport{failures: 1, next: srv.Client().Transport}
	client := newTestGrafanaClient(srv, transport)

	_, _, err := client.resolveOrCreate(t.Context(), "test-sa", "Admin", 10)
	require.Error(t, err)

	assert.True(t, isConnectionError(err))
	assert.False(t, isNotFound(err))
}
