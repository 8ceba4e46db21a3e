package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/contacts-service/internal/config"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestUploadAvatar(t *testing.T) {
	client := &fakeS3{}
	store := newS3AvatarStore(client, config.StorageConfig{
		Bucket:       "avatars",
		Region:       "eu-central-1",
		AvatarPrefix: "RestApp/",
	}, nil)

	url, err := store.UploadAvatar(context.Background(), "alice", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://avatars.s3.eu-central-1.amazonaws.com/RestApp/alice", url)
	assert.Equal(t, "RestApp/alice", aws.ToString(client.input.Key))
	assert.Equal(t, "image/png", aws.ToString(client.input.ContentType))
	assert.Equal(t, int64(9), aws.ToInt64(client.input.ContentLength))
	assert.Equal(t, "png-bytes", client.body)
}

func TestUploadAvatarError(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	store := newS3AvatarStore(client, config.StorageConfig{Bucket: "avatars"}, nil)

	_, err := store.UploadAvatar(context.Background(), "alice", strings.NewReader("x"), 1, "image/png")
	assert.ErrorContains(t, err, "access denied")
}

func TestPublicBaseURL(t *testing.T) {
	cases := []struct {
		cfg  config.StorageConfig
		want string
	}{
		{config.StorageConfig{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
		{config.StorageConfig{Bucket: "b", Endpoint: "http://minio:9000", UsePathStyle: true}, "http://minio:9000/b"},
		{config.StorageConfig{Bucket: "b", Endpoint: "https://s3.example.com"}, "https://b.s3.example.com"},
		{config.StorageConfig{Bucket: "b", Region: "us-east-1"}, "https://b.s3.us-east-1.amazonaws.com"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, publicBaseURL(tc.cfg))
	}
}

func TestNewS3AvatarStoreRequiresBucket(t *testing.T) {
	_, err := NewS3AvatarStore(context.Background(), config.StorageConfig{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
