package storage

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/condaops/conda-mirror/channel"
	errorpkg "github.com/condaops/conda-mirror/error"
)

func TestNewClientDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	fileRef, err := channel.ParseRef(t.TempDir())
	assert.NilError(t, err)
	store, err := NewClient(ctx, fileRef, nil, nil)
	assert.NilError(t, err)
	if _, ok := store.(*Filesystem); !ok {
		t.Errorf("expected a Filesystem store, got %T", store)
	}
}

func TestNewClientRejectsHTTPDestination(t *testing.T) {
	t.Parallel()

	ref, err := channel.ParseRef("https://conda.example.com/channel")
	assert.NilError(t, err)

	_, err = NewClient(context.Background(), ref, nil, nil)
	if !errors.Is(err, errorpkg.ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got %v", err)
	}
}
