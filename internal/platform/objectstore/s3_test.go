package objectstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/yungbote/studyport-backend/internal/platform/logger"
)

type recordingTransport struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if req.Method == http.MethodPut {
		body, _ := io.ReadAll(req.Body)
		rt.puts[req.URL.Path] = body
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Etag": []string{`"etag"`}},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func TestS3SinkUploadsUnderExportKey(t *testing.T) {
	rt := &recordingTransport{puts: map[string][]byte{}}
	sink, err := newS3(context.Background(), Config{
		S3Bucket:    "exports-bucket",
		S3Endpoint:  "https://mock.s3.local",
		S3PathStyle: true,
	}, logger.Nop(), &http.Client{Transport: rt},
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	if err != nil {
		t.Fatalf("newS3: %v", err)
	}
	key := ExportKey("abc-123", "/tmp/demo.zip")
	url, err := sink.Upload(context.Background(), key, bytes.NewReader([]byte("zipdata")), "application/zip")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://mock.s3.local/exports-bucket/exports/abc-123/demo.zip" {
		t.Fatalf("url: got=%q", url)
	}
	if _, ok := rt.puts["/exports-bucket/exports/abc-123/demo.zip"]; !ok {
		t.Fatalf("expected PUT to object path, got %v", rt.puts)
	}
	if sink.Kind() != KindS3 {
		t.Fatalf("Kind: got=%q", sink.Kind())
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{Kind: "ftp"}, logger.Nop()); err == nil {
		t.Fatalf("expected error for unknown sink")
	}
	sink, err := New(context.Background(), Config{Kind: "none"}, logger.Nop())
	if err != nil || sink != nil {
		t.Fatalf("none sink: sink=%v err=%v", sink, err)
	}
	if _, err := New(context.Background(), Config{Kind: KindS3}, logger.Nop()); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestObjectURLs(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"gcs default", gcsObjectURL("", "", "b", "/exports/x/a.zip"), "https://storage.googleapis.com/b/exports/x/a.zip"},
		{"gcs public base", gcsObjectURL("http://cdn.local", "", "b", "k.zip"), "http://cdn.local/b/k.zip"},
		{"gcs emulator", gcsObjectURL("", "http://fake-gcs:4443", "b", "exports/a.zip"), "http://fake-gcs:4443/storage/v1/b/b/o/exports%2Fa.zip?alt=media"},
		{"s3 aws", s3ObjectURL("", "eu-west-1", "b", "k.zip"), "https://b.s3.eu-west-1.amazonaws.com/k.zip"},
		{"s3 endpoint", s3ObjectURL("http://minio:9000", "us-east-1", "b", "k.zip"), "http://minio:9000/b/k.zip"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: want=%q got=%q", tc.name, tc.want, tc.got)
		}
	}
}
