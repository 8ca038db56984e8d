//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hadijannat/titan-aas/model"
)

const (
	testPostgresUser     = "titan"
	testPostgresPassword = "titan"
	testPostgresDB       = "titan_test"
)

// setupPostgresContainer starts a disposable Postgres container and
// returns a connection string plus a teardown function (grounded on the
// teacher's setupMinIOContainer in storage/s3aws_integration_test.go,
// adapted from MinIO to Postgres).
func setupPostgresContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     testPostgresUser,
			"POSTGRES_PASSWORD": testPostgresPassword,
			"POSTGRES_DB":       testPostgresDB,
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		testPostgresUser, testPostgresPassword, host, port.Port(), testPostgresDB)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}
	return connString, cleanup
}

func TestPutAgainstRealPostgresRoundTrips(t *testing.T) {
	connString, cleanup := setupPostgresContainer(t)
	defer cleanup()

	ctx := context.Background()
	st, err := New(ctx, connString)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Migrate(ctx))

	rec := Record{
		ID:         "urn:ex:shell:1",
		IDToken:    "dG9rZW4",
		DocBytes:   []byte(`{"id":"urn:ex:shell:1","idShort":"Shell1"}`),
		ETag:       "abc123",
		Kind:       model.KindShell,
		IDShort:    "Shell1",
		AssetIDs:   []string{"urn:ex:asset:1"},
	}

	// Before the `doc` column fix, this Put fails with a not-null
	// constraint violation against entities.doc.
	require.NoError(t, st.Put(ctx, rec, ""))

	docBytes, etag, err := st.Get(ctx, model.KindShell, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ETag, etag)
	require.JSONEq(t, string(rec.DocBytes), string(docBytes))

	ids, err := st.LookupShellsByAssetID(ctx, "urn:ex:asset:1")
	require.NoError(t, err)
	require.Contains(t, ids, rec.ID)

	// A second Put for the same (kind, id) exercises the ON CONFLICT
	// path, which also writes to doc.
	rec.DocBytes = []byte(`{"id":"urn:ex:shell:1","idShort":"Shell1Updated"}`)
	rec.ETag = "def456"
	rec.IDShort = "Shell1Updated"
	require.NoError(t, st.Put(ctx, rec, "abc123"))

	docBytes, etag, err = st.Get(ctx, model.KindShell, rec.ID)
	require.NoError(t, err)
	require.Equal(t, "def456", etag)
	require.JSONEq(t, string(rec.DocBytes), string(docBytes))
}
