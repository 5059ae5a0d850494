package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "adm-1/cv.pdf", bytes.NewBufferString("content"), 7, "application/pdf"))
	rc, err := store.Open(ctx, "adm-1/cv.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "content", string(body))

	require.NoError(t, store.Delete(ctx, "adm-1/cv.pdf"))
	_, err = store.Open(ctx, "adm-1/cv.pdf")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, "adm-1/cv.pdf"))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	err = store.Put(context.Background(), "../outside.txt", bytes.NewBufferString("x"), 1, "")
	require.Error(t, err)
	_, err = store.Open(context.Background(), "/etc/passwd")
	require.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoragePrefixesKeys(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := newS3Storage(fake, "bucket", "admissions/")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "adm-1/cv.pdf", bytes.NewBufferString("pdf"), 3, "application/pdf"))
	require.Contains(t, fake.objects, "admissions/adm-1/cv.pdf")

	rc, err := store.Open(ctx, "adm-1/cv.pdf")
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, store.Delete(ctx, "adm-1/cv.pdf"))
	_, err = store.Open(ctx, "adm-1/cv.pdf")
	require.ErrorIs(t, err, ErrNotFound)
}
