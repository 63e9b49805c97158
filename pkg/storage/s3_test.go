package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportKey(t *testing.T) {
	id := NewExportID()
	key, err := ExportKey("set-1", id)
	require.NoError(t, err)
	assert.Equal(t, "exports/set-1/"+id+".json", key)

	_, err = ExportKey("set-1", "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidExportID)
}

func TestExportCreatedAt(t *testing.T) {
	before := time.Now().Add(-time.Second)
	at, err := ExportCreatedAt(NewExportID())
	require.NoError(t, err)
	assert.True(t, at.After(before.Truncate(time.Second)), "ksuid time is close to now")

	_, err = ExportCreatedAt("nope")
	assert.ErrorIs(t, err, ErrInvalidExportID)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NotFound{}))
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("timeout")))
}
