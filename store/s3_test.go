package store

import (
	"context"
	"encoding/base64"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pulto-io/sift/types"
)

// fakeS3 records PutObject calls.
type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Config_Validate(t *testing.T) {
	cfg := &S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing bucket")
	}
	cfg.Bucket = "charts"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"charts", "charts", ""},
		{"charts/extracts", "charts", "extracts"},
		{"charts/deep/prefix", "charts", "deep/prefix"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)",
				tt.path, bucket, prefix, tt.bucket, tt.prefix)
		}
	}
}

func TestS3Store_Keys(t *testing.T) {
	fake := &fakeS3{}
	s := &S3Store{
		config: S3Config{Bucket: "charts", Prefix: "extracts"},
		client: fake,
	}

	if err := s.WriteNotebook(t.Context(), testMeta(), []byte(`{}`)); err != nil {
		t.Fatalf("WriteNotebook: %v", err)
	}

	png := base64.StdEncoding.EncodeToString([]byte("img"))
	charts := &types.ChartSet{
		Records: []types.ChartRecord{{CellIndex: 1, Images: []string{png}}},
	}
	if err := s.WriteCharts(t.Context(), testMeta(), charts); err != nil {
		t.Fatalf("WriteCharts: %v", err)
	}

	wantKeys := []string{
		"extracts/notebook=demo.ipynb/day=2026-08-30/extract_id=ex-001/notebook.ipynb",
		"extracts/notebook=demo.ipynb/day=2026-08-30/extract_id=ex-001/charts/chartKey_001_0.png",
	}
	for _, key := range wantKeys {
		if _, ok := fake.objects[key]; !ok {
			t.Errorf("missing object %q (have %v)", key, keysOf(fake.objects))
		}
	}
	if string(fake.objects[wantKeys[1]]) != "img" {
		t.Error("chart bytes not decoded from base64")
	}
}

func keysOf(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
