package storage

import "testing"

func TestNewPhotoStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing endpoint", Options{AccessKey: "a", SecretKey: "s", Bucket: "photos"}},
		{"missing credentials", Options{Endpoint: "minio:9000", Bucket: "photos"}},
		{"missing bucket", Options{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPhotoStore(tt.opts); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewPhotoStore_Valid(t *testing.T) {
	store, err := NewPhotoStore(Options{
		Endpoint:  "minio:9000",
		AccessKey: "a",
		SecretKey: "s",
		Bucket:    "photos",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestPhotoKey(t *testing.T) {
	if got := PhotoKey(42); got != "users/42/photo.jpg" {
		t.Errorf("unexpected photo key: %s", got)
	}
}
